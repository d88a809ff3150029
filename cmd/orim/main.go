package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:           "orim",
	Short:         "Collaborative whiteboard server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		setupLogging(os.Getenv("ORIM_LOG_LEVEL"), os.Getenv("ORIM_LOG_FORMAT"))
	},
}

func init() { //nolint:gochecknoinits // cobra registration
	rootCmd.AddCommand(serveCmd, migrateCmd, watchCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("orim failed")
	}
}

// setupLogging configures the global zerolog logger. Unknown levels fall back
// to info; format "text" switches to the console writer.
func setupLogging(levelName, format string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
