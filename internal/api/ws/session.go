package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/idle"
	"github.com/gosuda/orim/internal/presence"
	redisstore "github.com/gosuda/orim/internal/store/redis"
)

const (
	readLimit    = 1 << 20
	writeTimeout = 5 * time.Second
	leaveTimeout = 5 * time.Second
)

// session is one WebSocket connection to one board.
type session struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string
	boardID uuid.UUID
	userID  uuid.UUID
	name    string
	color   string
	role    domain.Role
	limiter *rate.Limiter
	idle    *idle.Scheduler
	cursor  *presence.Throttle[domain.CursorPosition]

	mu   sync.Mutex
	last *domain.CursorPosition
}

func newSession(h *Hub, conn *websocket.Conn, boardID, userID uuid.UUID, name string, role domain.Role) (*session, error) {
	sched, err := idle.New(idle.WithTimeout(h.opts.IdleTimeout))
	if err != nil {
		return nil, fmt.Errorf("ws.newSession: %w", err)
	}
	conn.SetReadLimit(readLimit)

	return &session{
		hub:     h,
		conn:    conn,
		id:      uuid.NewString(),
		boardID: boardID,
		userID:  userID,
		name:    presence.DisplayName(name),
		color:   presence.Color(userID.String()),
		role:    role,
		limiter: rate.NewLimiter(rate.Limit(h.opts.MessageRate), h.opts.MessageBurst),
		idle:    sched,
	}, nil
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	messages, cleanup, err := s.hub.broker.Subscribe(ctx,
		redisstore.BoardChannel(s.boardID),
		redisstore.CursorChannel(s.boardID),
	)
	if err != nil {
		log.Error().Err(err).Str("board_id", s.boardID.String()).Msg("websocket subscribe")
		_ = s.conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	if err := s.sendSnapshot(ctx); err != nil {
		log.Debug().Err(err).Str("board_id", s.boardID.String()).Msg("websocket snapshot")
		return
	}

	s.cursor = presence.NewThrottle(s.hub.opts.CursorThrottle, func(cur domain.CursorPosition) {
		s.broadcastCursor(ctx, cur)
	})
	s.idle.OnChange(func(a idle.Animation, active bool) {
		s.animate(ctx, a, active)
	})

	var wg sync.WaitGroup
	wg.Go(func() { s.idle.Run(ctx) })
	wg.Go(func() { s.readLoop(ctx, cancel) })

	log.Debug().Str("board_id", s.boardID.String()).Str("user_id", s.userID.String()).Msg("board connection opened")

	s.pump(ctx, messages)

	cancel()
	wg.Wait()
	s.cursor.Stop()
	s.leave(parent)
}

// pump forwards channel messages to the client until ctx ends or the
// subscription closes.
func (s *session) pump(ctx context.Context, messages <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, ok := <-messages:
			if !ok {
				_ = s.conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if s.ownEvent(msg) {
				continue
			}
			if err := s.write(ctx, msg); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				log.Debug().Err(err).Str("board_id", s.boardID.String()).Msg("websocket read")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if !s.limiter.Allow() {
			s.send(ctx, ErrorEvent("rate limit exceeded"))
			continue
		}

		ev, err := Decode(data)
		if err != nil {
			s.send(ctx, ErrorEvent("malformed message"))
			continue
		}

		s.idle.Reset()
		s.handle(ctx, ev)
	}
}

func (s *session) handle(ctx context.Context, ev BoardEvent) {
	switch ev.Type {
	case EventCursor:
		if ev.Cursor == nil {
			s.send(ctx, ErrorEvent("cursor event without position"))
			return
		}
		cur := domain.CursorPosition{
			UserID:   s.userID,
			UserName: s.name,
			X:        ev.Cursor.X,
			Y:        ev.Cursor.Y,
			Color:    s.color,
		}
		s.setLast(cur)
		s.cursor.Call(cur)
	case EventCreate, EventUpdate:
		s.upsert(ctx, ev)
	case EventDelete:
		s.remove(ctx, ev.ID)
	default:
		s.send(ctx, ErrorEvent(fmt.Sprintf("unsupported event %q", ev.Type)))
	}
}

// upsert persists a client write with last-writer-wins. A write that loses is
// answered with the stored copy so the client converges.
func (s *session) upsert(ctx context.Context, ev BoardEvent) {
	if !s.role.CanEdit() {
		s.send(ctx, ErrorEvent("read-only access"))
		return
	}
	if ev.Object == nil || ev.Object.ID == "" {
		s.send(ctx, ErrorEvent("object event without object"))
		return
	}

	o := ev.Object.Clone()
	o.BoardID = s.boardID
	if !o.Type.Valid() {
		s.send(ctx, ErrorEvent(fmt.Sprintf("unknown object type %q", o.Type)))
		return
	}

	// Creator and defaults follow whether the object exists, not the event
	// type the client chose.
	existing, err := s.hub.store.Objects().Get(ctx, s.boardID, o.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		existing = nil
		o.ApplyDefaults()
		creator := s.userID
		o.CreatedBy = &creator
	case err != nil:
		log.Error().Err(err).Str("board_id", s.boardID.String()).Str("object_id", o.ID).Msg("websocket lookup")
		s.send(ctx, ErrorEvent("failed to save object"))
		return
	default:
		o.CreatedBy = existing.CreatedBy
	}
	if o.UpdatedAt == "" {
		o.UpdatedAt = domain.Timestamp(time.Now())
	}

	applied, err := s.hub.store.Objects().Upsert(ctx, &o)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			s.send(ctx, ErrorEvent("invalid object"))
			return
		}
		log.Error().Err(err).Str("board_id", s.boardID.String()).Str("object_id", o.ID).Msg("websocket upsert")
		s.send(ctx, ErrorEvent("failed to save object"))
		return
	}

	if !applied {
		current, getErr := s.hub.store.Objects().Get(ctx, s.boardID, o.ID)
		if getErr == nil {
			s.send(ctx, ObjectEvent(EventUpdate, *current))
		}
		return
	}

	typ := EventUpdate
	if existing == nil {
		typ = EventCreate
	}
	out := ObjectEvent(typ, o)
	out.Origin = s.id
	if err := s.hub.PublishBoard(ctx, s.boardID, out); err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("websocket publish")
	}
}

func (s *session) remove(ctx context.Context, id string) {
	if !s.role.CanEdit() {
		s.send(ctx, ErrorEvent("read-only access"))
		return
	}
	if id == "" {
		s.send(ctx, ErrorEvent("delete event without id"))
		return
	}

	if err := s.hub.store.Objects().Delete(ctx, s.boardID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		log.Error().Err(err).Str("board_id", s.boardID.String()).Str("object_id", id).Msg("websocket delete")
		s.send(ctx, ErrorEvent("failed to delete object"))
		return
	}

	out := DeleteEvent(id)
	out.Origin = s.id
	if err := s.hub.PublishBoard(ctx, s.boardID, out); err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("websocket publish")
	}
}

func (s *session) sendSnapshot(ctx context.Context) error {
	objects, err := s.hub.store.Objects().ListByBoard(ctx, s.boardID)
	if err != nil {
		return fmt.Errorf("ws.session.sendSnapshot: %w", err)
	}

	cursors, err := s.hub.presence.List(ctx, s.boardID)
	if err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("presence list")
		cursors = nil
	}

	payload, err := Encode(SyncEvent(objects, cursors))
	if err != nil {
		return fmt.Errorf("ws.session.sendSnapshot: %w", err)
	}
	return s.write(ctx, payload)
}

func (s *session) broadcastCursor(ctx context.Context, cur domain.CursorPosition) {
	if ctx.Err() != nil {
		return
	}
	if err := s.hub.presence.Track(ctx, s.boardID, cur); err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("presence track")
	}
	ev := CursorEvent(cur)
	ev.Origin = s.id
	if err := s.hub.PublishBoard(ctx, s.boardID, ev); err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("cursor publish")
	}
}

// animate re-broadcasts the last known cursor with or without the idle
// animation token.
func (s *session) animate(ctx context.Context, a idle.Animation, active bool) {
	cur, ok := s.lastCursor()
	if !ok {
		return
	}
	cur.Animation = ""
	if active {
		cur.Animation = a.Token()
	}
	s.setLast(cur)
	s.broadcastCursor(ctx, cur)
}

func (s *session) leave(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), leaveTimeout)
	defer cancel()

	if err := s.hub.presence.Untrack(ctx, s.boardID, s.userID); err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("presence untrack")
	}
	ev := LeaveEvent(s.userID)
	ev.Origin = s.id
	if err := s.hub.PublishBoard(ctx, s.boardID, ev); err != nil {
		log.Warn().Err(err).Str("board_id", s.boardID.String()).Msg("leave publish")
	}
	log.Debug().Str("board_id", s.boardID.String()).Str("user_id", s.userID.String()).Msg("board connection closed")
}

func (s *session) setLast(cur domain.CursorPosition) {
	s.mu.Lock()
	s.last = &cur
	s.mu.Unlock()
}

func (s *session) lastCursor() (domain.CursorPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.CursorPosition{}, false
	}
	return *s.last, true
}

func (s *session) ownEvent(msg []byte) bool {
	var probe struct {
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return probe.Origin == s.id
}

func (s *session) send(ctx context.Context, ev BoardEvent) {
	payload, err := Encode(ev)
	if err != nil {
		return
	}
	if err := s.write(ctx, payload); err != nil {
		log.Debug().Err(err).Msg("websocket write")
	}
}

func (s *session) write(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("ws.session.write: %w", err)
	}
	return nil
}
