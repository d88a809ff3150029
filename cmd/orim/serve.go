package main

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/orim/internal/agent"
	"github.com/gosuda/orim/internal/config"
	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/notify"
	"github.com/gosuda/orim/internal/server"
	"github.com/gosuda/orim/internal/store/postgres"
	redisstore "github.com/gosuda/orim/internal/store/redis"
)

var serveCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:   "serve",
	Short: "Run the HTTP API and board hub",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}
	return postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	agents, closeAgents, err := buildAgents(cfg)
	if err != nil {
		return err
	}
	defer closeAgents()

	var assets fs.FS
	if cfg.Server.StaticDir != "" {
		assets = os.DirFS(cfg.Server.StaticDir)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(ctx, cfg, server.Deps{
		Store:    store,
		Broker:   pubsub,
		Presence: redisstore.NewPresence(pubsub, cfg.Realtime.PresenceTTL),
		Agents:   agents,
		Notifier: buildNotifier(cfg),
		Assets:   assets,
	})

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

// buildAgents registers the SDK service and, when the Docker daemon is
// reachable, the containerised agent.
func buildAgents(cfg *config.Config) (*agent.Registry, func(), error) {
	registry := agent.NewRegistry(cfg.Agent.DefaultBackend)
	registry.Register(string(domain.AgentBackendSDK),
		agent.NewServiceAdapter(string(domain.AgentBackendSDK), cfg.Agent.ServiceURL, agent.WithHealthTimeout(cfg.Agent.HealthTimeout)))

	probe, err := agent.NewDockerProbe(cfg.Docker.Host)
	if err != nil {
		log.Warn().Err(err).Msg("docker agent backend disabled")
		return registry, func() {}, nil
	}
	registry.Register(string(domain.AgentBackendDocker),
		agent.NewDockerAdapter(cfg.Agent.DockerURL, cfg.Agent.Container, probe, agent.WithHealthTimeout(cfg.Agent.HealthTimeout)))

	return registry, func() { _ = probe.Close() }, nil
}

func buildNotifier(cfg *config.Config) *notify.Multi {
	notifiers := []notify.Notifier{notify.LogNotifier{}}
	if cfg.Slack.BotToken != "" && cfg.Slack.InviteChannel != "" {
		notifiers = append(notifiers, notify.NewSlackNotifierFromToken(cfg.Slack.BotToken, cfg.Slack.InviteChannel))
	}
	return notify.NewMulti(notifiers...)
}
