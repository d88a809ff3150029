package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/server/middleware"
)

func callerID(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error401Unauthorized("authentication required")
	}
	return userID, nil
}

// boardAccess maps domain.ResolveAccess onto HTTP errors.
func boardAccess(ctx context.Context, store DataStore, boardID, userID uuid.UUID) (*domain.Board, domain.Role, error) {
	board, role, err := domain.ResolveAccess(ctx, store.Boards(), store.Members(), boardID, userID)
	switch {
	case err == nil:
		return board, role, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, "", huma.Error404NotFound("board not found")
	case errors.Is(err, domain.ErrForbidden):
		return nil, "", huma.Error403Forbidden("no access to this board")
	default:
		return nil, "", huma.Error500InternalServerError("failed to check board access", err)
	}
}

func requireEditor(ctx context.Context, store DataStore, boardID uuid.UUID) (*domain.Board, uuid.UUID, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	board, role, err := boardAccess(ctx, store, boardID, userID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !role.CanEdit() {
		return nil, uuid.Nil, huma.Error403Forbidden("read-only access")
	}
	return board, userID, nil
}

func requireSuperuser(ctx context.Context) error {
	if _, err := callerID(ctx); err != nil {
		return err
	}
	if !middleware.SuperuserFromContext(ctx) {
		return huma.Error403Forbidden("superuser required")
	}
	return nil
}

// publish delivers ev best-effort. The mutation has already been persisted,
// so a broker failure is logged rather than returned.
func publish(ctx context.Context, events Broadcaster, boardID uuid.UUID, ev ws.BoardEvent) {
	if events == nil {
		return
	}
	if err := events.PublishBoard(ctx, boardID, ev); err != nil {
		log.Warn().Err(err).Str("board_id", boardID.String()).Str("event", string(ev.Type)).Msg("publish board event")
	}
}
