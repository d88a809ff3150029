package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/agent"
	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/notify"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Boards() domain.BoardRepository
	Members() domain.MemberRepository
	Objects() domain.ObjectRepository
	Profiles() domain.ProfileRepository
	AppConfig() domain.AppConfigRepository
}

// Broadcaster publishes board events to connected clients.
// *ws.Hub satisfies this interface.
type Broadcaster interface {
	PublishBoard(ctx context.Context, boardID uuid.UUID, ev ws.BoardEvent) error
}

// AgentRegistry resolves the adapter for an agent backend.
// *agent.Registry satisfies this interface.
type AgentRegistry interface {
	Resolve(backend string) agent.Adapter
}

// Notifier is re-exported so callers wiring handlers need not import notify.
type Notifier = notify.Notifier
