package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gosuda/orim/internal/auth"
)

var tokenCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:   "token",
	Short: "Mint a development access token",
	Long: `Mint an HS256 access token signed with ORIM_AUTH_JWT_SECRET.

Production tokens come from the identity provider; this command exists for
local development and for driving the watch command.`,
	RunE: runToken,
}

func init() { //nolint:gochecknoinits // cobra flags
	f := tokenCmd.Flags()
	f.String("user", "", "user ID (random when empty)")
	f.String("email", "", "email claim")
	f.String("name", "", "display name claim")
	f.Bool("superuser", false, "mark the token as superuser")
	f.Duration("ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("email")
}

func runToken(cmd *cobra.Command, _ []string) error {
	secret := os.Getenv("ORIM_AUTH_JWT_SECRET")
	if secret == "" {
		return errors.New("ORIM_AUTH_JWT_SECRET is required")
	}

	f := cmd.Flags()
	rawID, _ := f.GetString("user")
	email, _ := f.GetString("email")
	name, _ := f.GetString("name")
	superuser, _ := f.GetBool("superuser")
	ttl, _ := f.GetDuration("ttl")

	id := uuid.New()
	if rawID != "" {
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		id = parsed
	}

	tok, err := auth.IssueToken(secret, auth.Identity{UserID: id, Email: email, DisplayName: name, Superuser: superuser}, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}
