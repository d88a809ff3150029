package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/presence"
	"github.com/gosuda/orim/internal/server/middleware"
	redisstore "github.com/gosuda/orim/internal/store/redis"
)

// Broker is the Redis pub/sub surface the hub needs.
// *redisstore.PubSub satisfies this interface.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error)
}

// PresenceStore keeps the live cursor table of a board.
// *redisstore.Presence satisfies this interface.
type PresenceStore interface {
	Track(ctx context.Context, boardID uuid.UUID, cur domain.CursorPosition) error
	Untrack(ctx context.Context, boardID, userID uuid.UUID) error
	List(ctx context.Context, boardID uuid.UUID) ([]domain.CursorPosition, error)
}

// Store is the subset of repositories a board connection touches.
// *postgres.Store satisfies this interface.
type Store interface {
	Boards() domain.BoardRepository
	Members() domain.MemberRepository
	Objects() domain.ObjectRepository
}

// Options tunes per-connection behaviour.
type Options struct {
	IdleTimeout    time.Duration
	CursorThrottle time.Duration
	// MessageRate and MessageBurst bound inbound client messages per
	// connection.
	MessageRate    float64
	MessageBurst   int
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.CursorThrottle <= 0 {
		o.CursorThrottle = presence.DefaultThrottleInterval
	}
	if o.MessageRate <= 0 {
		o.MessageRate = 60
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 120
	}
	return o
}

// Hub manages board WebSocket connections backed by Redis pub/sub.
type Hub struct {
	broker   Broker
	presence PresenceStore
	store    Store
	opts     Options
}

// NewHub creates a new WebSocket hub.
func NewHub(broker Broker, presence PresenceStore, store Store, opts Options) *Hub {
	return &Hub{
		broker:   broker,
		presence: presence,
		store:    store,
		opts:     opts.withDefaults(),
	}
}

// ServeBoard handles WebSocket connections for a board. The caller must be
// the owner or an accepted member. The connection receives a sync snapshot
// first, then every event published on the board and cursor channels.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	boardID, err := uuid.Parse(chi.URLParam(r, "boardID"))
	if err != nil {
		http.Error(w, `{"title":"Bad Request","status":400,"detail":"invalid board id"}`, http.StatusBadRequest)
		return
	}

	_, role, err := domain.ResolveAccess(r.Context(), h.store.Boards(), h.store.Members(), boardID, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, `{"title":"Not Found","status":404,"detail":"board not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, `{"title":"Forbidden","status":403,"detail":"no access to this board"}`, http.StatusForbidden)
		return
	case err != nil:
		log.Error().Err(err).Str("board_id", boardID.String()).Msg("websocket access check")
		http.Error(w, `{"title":"Internal Server Error","status":500}`, http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	s, err := newSession(h, conn, boardID, userID, middleware.DisplayNameFromContext(r.Context()), role)
	if err != nil {
		log.Error().Err(err).Msg("websocket session")
		_ = conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	s.run(r.Context())
}

// Publish sends an event payload to a Redis channel.
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := h.broker.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("ws.Hub.Publish: %w", err)
	}
	return nil
}

// PublishBoard publishes ev on the board's object channel, or on its cursor
// channel for cursor and leave events.
func (h *Hub) PublishBoard(ctx context.Context, boardID uuid.UUID, ev BoardEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("ws.Hub.PublishBoard: %w", err)
	}
	channel := redisstore.BoardChannel(boardID)
	if ev.Type == EventCursor || ev.Type == EventLeave {
		channel = redisstore.CursorChannel(boardID)
	}
	return h.Publish(ctx, channel, payload)
}
