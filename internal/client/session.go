// Package client is a headless board participant. It keeps a local replica of
// a board, applies edits optimistically with undo/redo, and reconciles remote
// events with last-writer-wins.
package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/boardsync"
	"github.com/gosuda/orim/internal/domain"
)

// ErrUnknownObject is returned when an edit names an object the replica does
// not hold.
var ErrUnknownObject = errors.New("client: unknown object") //nolint:gochecknoglobals // sentinel error

// Transport delivers local edits to the board hub.
// *Conn satisfies this interface.
type Transport interface {
	Send(ctx context.Context, ev ws.BoardEvent) error
}

type Option func(*Session)

func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.history = boardsync.NewHistory(n) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithUser records the local user as creator of new objects.
func WithUser(id uuid.UUID) Option {
	return func(s *Session) { s.userID = id }
}

// Session is safe for concurrent use: remote events typically arrive on a
// reader goroutine while edits come from the caller.
type Session struct {
	transport Transport
	now       func() time.Time
	userID    uuid.UUID

	mu        sync.Mutex
	replica   *boardsync.Replica
	history   *boardsync.History
	cursors   map[uuid.UUID]domain.CursorPosition
	boardName string
	lastStamp time.Time
	lastError string
}

func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		now:       time.Now,
		replica:   boardsync.NewReplica(),
		history:   boardsync.NewHistory(boardsync.DefaultHistoryLimit),
		cursors:   make(map[uuid.UUID]domain.CursorPosition),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds o locally, records it for undo and sends it. A missing ID is
// generated; missing size and fill come from the type defaults.
func (s *Session) Create(ctx context.Context, o domain.BoardObject) (domain.BoardObject, error) {
	if !o.Type.Valid() {
		return domain.BoardObject{}, fmt.Errorf("client.Session.Create: type %q: %w", o.Type, domain.ErrInvalidInput)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.ApplyDefaults()
	if o.CreatedBy == nil && s.userID != uuid.Nil {
		creator := s.userID
		o.CreatedBy = &creator
	}

	s.mu.Lock()
	action := boardsync.CreateAction(o)
	changes := boardsync.Apply(s.replica, action, s.stamp())
	s.history.Push(action)
	s.mu.Unlock()

	if err := s.sendChanges(ctx, changes, ws.EventCreate); err != nil {
		return domain.BoardObject{}, fmt.Errorf("client.Session.Create: %w", err)
	}
	return *changes[0].Object, nil
}

// Update patches object id. Keys follow boardsync.Patch: geometry keys set
// fields, everything else lands in data.
func (s *Session) Update(ctx context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	current, ok := s.replica.Get(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("client.Session.Update: %s: %w", id, ErrUnknownObject)
	}
	action := boardsync.UpdateAction(id, boardsync.Fields(current, patch), maps.Clone(patch))
	changes := boardsync.Apply(s.replica, action, s.stamp())
	s.history.Push(action)
	s.mu.Unlock()

	if err := s.sendChanges(ctx, changes, ws.EventUpdate); err != nil {
		return fmt.Errorf("client.Session.Update: %w", err)
	}
	return nil
}

func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	current, ok := s.replica.Get(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("client.Session.Delete: %s: %w", id, ErrUnknownObject)
	}
	action := boardsync.DeleteAction(current)
	changes := boardsync.Apply(s.replica, action, s.stamp())
	s.history.Push(action)
	s.mu.Unlock()

	if err := s.sendChanges(ctx, changes, ws.EventUpdate); err != nil {
		return fmt.Errorf("client.Session.Delete: %w", err)
	}
	return nil
}

// Undo reverts the most recent action. It reports false when there is
// nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	a, ok := s.history.Undo()
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	changes := boardsync.Apply(s.replica, boardsync.Invert(a), s.stamp())
	s.mu.Unlock()

	if err := s.sendChanges(ctx, changes, ws.EventUpdate); err != nil {
		return true, fmt.Errorf("client.Session.Undo: %w", err)
	}
	return true, nil
}

// Redo reapplies the most recently undone action.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	a, ok := s.history.Redo()
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	changes := boardsync.Apply(s.replica, a, s.stamp())
	s.mu.Unlock()

	if err := s.sendChanges(ctx, changes, ws.EventUpdate); err != nil {
		return true, fmt.Errorf("client.Session.Redo: %w", err)
	}
	return true, nil
}

// MoveCursor reports the local pointer position. The hub assigns colour and
// name.
func (s *Session) MoveCursor(ctx context.Context, x, y float64) error {
	if err := s.transport.Send(ctx, ws.CursorEvent(domain.CursorPosition{X: x, Y: y})); err != nil {
		return fmt.Errorf("client.Session.MoveCursor: %w", err)
	}
	return nil
}

// HandleEvent feeds a hub event into the session. Object events go through
// the reconciler, so late or duplicated deliveries are harmless.
func (s *Session) HandleEvent(ev ws.BoardEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case ws.EventSync:
		s.replica.Reset(ev.Objects)
		s.cursors = make(map[uuid.UUID]domain.CursorPosition, len(ev.Cursors))
		for _, c := range ev.Cursors {
			s.cursors[c.UserID] = c
		}
	case ws.EventCreate, ws.EventUpdate:
		if ev.Object != nil {
			s.replica.ApplyRemote(*ev.Object)
		}
	case ws.EventDelete:
		s.replica.ApplyDelete(ev.ID)
	case ws.EventCursor:
		if ev.Cursor != nil {
			s.cursors[ev.Cursor.UserID] = *ev.Cursor
		}
	case ws.EventLeave:
		delete(s.cursors, ev.UserID)
	case ws.EventRename:
		s.boardName = ev.Name
	case ws.EventError:
		s.lastError = ev.Message
	}
}

// Visible returns the objects intersecting vp in paint order.
func (s *Session) Visible(vp boardsync.Viewport) []domain.BoardObject {
	return boardsync.Cull(s.Objects(), vp)
}

// Objects returns every object in paint order.
func (s *Session) Objects() []domain.BoardObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replica.Snapshot()
}

func (s *Session) Object(id string) (domain.BoardObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replica.Get(id)
}

// Cursors returns the live cursors ordered by user ID.
func (s *Session) Cursors() []domain.CursorPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CursorPosition, 0, len(s.cursors))
	for _, c := range s.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out
}

func (s *Session) BoardName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardName
}

// LastError is the most recent error message sent by the hub.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// stamp returns a write timestamp strictly later than the previous one so
// consecutive local edits never tie under last-writer-wins. Callers hold s.mu.
func (s *Session) stamp() string {
	// Stored timestamps keep microseconds, so compare at that precision.
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = t
	return domain.Timestamp(t)
}

// sendChanges turns backend writes into hub events. upsert is the event type
// used for upserts.
func (s *Session) sendChanges(ctx context.Context, changes []boardsync.Change, upsert ws.EventType) error {
	for _, c := range changes {
		var ev ws.BoardEvent
		switch c.Op {
		case boardsync.ChangeUpsert:
			ev = ws.ObjectEvent(upsert, *c.Object)
		case boardsync.ChangeDelete:
			ev = ws.DeleteEvent(c.ObjectID)
		default:
			continue
		}
		if err := s.transport.Send(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
