package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/boardsync"
	"github.com/gosuda/orim/internal/client"
)

var watchCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:   "watch",
	Short: "Join a board and log its live events",
	RunE:  runWatch,
}

func init() { //nolint:gochecknoinits // cobra flags
	f := watchCmd.Flags()
	f.String("server", "http://localhost:8080", "server base URL")
	f.String("board", "", "board ID")
	f.String("token", "", "access token")
	f.Float64("x", 0, "viewport left edge")
	f.Float64("y", 0, "viewport top edge")
	f.Float64("width", 0, "viewport width; zero reports every object")
	f.Float64("height", 0, "viewport height")
	_ = watchCmd.MarkFlagRequired("board")
	_ = watchCmd.MarkFlagRequired("token")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	base, _ := f.GetString("server")
	rawBoard, _ := f.GetString("board")
	token, _ := f.GetString("token")
	var vp boardsync.Viewport
	vp.X, _ = f.GetFloat64("x")
	vp.Y, _ = f.GetFloat64("y")
	vp.Width, _ = f.GetFloat64("width")
	vp.Height, _ = f.GetFloat64("height")

	boardID, err := uuid.Parse(rawBoard)
	if err != nil {
		return fmt.Errorf("invalid --board: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := client.Dial(ctx, base, boardID, token)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck // best effort on exit

	session := client.NewSession(conn)
	visible := func() int {
		if vp.Width <= 0 || vp.Height <= 0 {
			return len(session.Objects())
		}
		return len(session.Visible(vp))
	}

	log.Info().Str("board_id", boardID.String()).Msg("watching board")
	err = client.Pump(ctx, conn, session, func(ev ws.BoardEvent) {
		e := log.Info().Str("type", string(ev.Type)).Int("visible", visible())
		switch ev.Type {
		case ws.EventCreate, ws.EventUpdate:
			if ev.Object != nil {
				e = e.Str("object_id", ev.Object.ID).Str("object_type", string(ev.Object.Type))
			}
		case ws.EventDelete:
			e = e.Str("object_id", ev.ID)
		case ws.EventCursor:
			if ev.Cursor != nil {
				e = e.Str("user", ev.Cursor.UserName).Float64("x", ev.Cursor.X).Float64("y", ev.Cursor.Y)
			}
		case ws.EventLeave:
			e = e.Str("user_id", ev.UserID.String())
		case ws.EventSync:
			e = e.Int("cursors", len(ev.Cursors))
		case ws.EventRename:
			e = e.Str("name", ev.Name)
		case ws.EventError:
			e = e.Str("message", ev.Message)
		}
		e.Msg("board event")
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

