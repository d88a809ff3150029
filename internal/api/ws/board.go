package ws

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/domain"
)

type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	EventCursor EventType = "cursor"
	EventLeave  EventType = "leave"
	EventSync   EventType = "sync"
	EventRename EventType = "rename"
	EventError  EventType = "error"
)

// BoardEvent is the single envelope used in both directions on a board
// connection and on the board's Redis channels. Only the fields relevant to
// Type are set.
type BoardEvent struct {
	Type    EventType               `json:"type"`
	Object  *domain.BoardObject     `json:"object,omitempty"`
	ID      string                  `json:"id,omitempty"`
	Cursor  *domain.CursorPosition  `json:"cursor,omitempty"`
	UserID  uuid.UUID               `json:"user_id,omitzero"`
	Objects []domain.BoardObject    `json:"objects,omitempty"`
	Cursors []domain.CursorPosition `json:"cursors,omitempty"`
	Name    string                  `json:"name,omitempty"`
	Message string                  `json:"message,omitempty"`
	// Origin identifies the connection that caused the event so the hub does
	// not echo it back.
	Origin string `json:"origin,omitempty"`
}

func ObjectEvent(typ EventType, o domain.BoardObject) BoardEvent {
	return BoardEvent{Type: typ, Object: &o}
}

func DeleteEvent(id string) BoardEvent {
	return BoardEvent{Type: EventDelete, ID: id}
}

func CursorEvent(cur domain.CursorPosition) BoardEvent {
	return BoardEvent{Type: EventCursor, Cursor: &cur}
}

func LeaveEvent(userID uuid.UUID) BoardEvent {
	return BoardEvent{Type: EventLeave, UserID: userID}
}

func RenameEvent(name string) BoardEvent {
	return BoardEvent{Type: EventRename, Name: name}
}

func SyncEvent(objects []domain.BoardObject, cursors []domain.CursorPosition) BoardEvent {
	return BoardEvent{Type: EventSync, Objects: objects, Cursors: cursors}
}

func ErrorEvent(msg string) BoardEvent {
	return BoardEvent{Type: EventError, Message: msg}
}

// Encode marshals ev for the wire.
func Encode(ev BoardEvent) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("ws.Encode: %w", err)
	}
	return b, nil
}

// Decode parses a wire message and rejects unknown event types.
func Decode(data []byte) (BoardEvent, error) {
	var ev BoardEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BoardEvent{}, fmt.Errorf("ws.Decode: %w", err)
	}
	switch ev.Type {
	case EventCreate, EventUpdate, EventDelete, EventCursor, EventLeave, EventSync, EventRename, EventError:
		return ev, nil
	default:
		return BoardEvent{}, fmt.Errorf("ws.Decode: unknown event type %q: %w", ev.Type, domain.ErrInvalidInput)
	}
}
