package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/api/ws"
)

// readLimit matches the hub's inbound limit; sync snapshots of large boards
// exceed the library default.
const readLimit = 8 << 20

// Conn is a WebSocket connection to one board.
type Conn struct {
	conn *websocket.Conn
}

// BoardURL derives the board socket URL from the server base URL, mapping
// http(s) to ws(s).
func BoardURL(baseURL string, boardID uuid.UUID) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("client.BoardURL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client.BoardURL: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/boards/" + boardID.String()
	return u.String(), nil
}

// Dial connects to a board. The token is sent as a bearer header.
func Dial(ctx context.Context, baseURL string, boardID uuid.UUID, token string) (*Conn, error) {
	target, err := BoardURL(baseURL, boardID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	c, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client.Dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	c.SetReadLimit(readLimit)
	return &Conn{conn: c}, nil
}

func (c *Conn) Send(ctx context.Context, ev ws.BoardEvent) error {
	payload, err := ws.Encode(ev)
	if err != nil {
		return fmt.Errorf("client.Conn.Send: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("client.Conn.Send: %w", err)
	}
	return nil
}

func (c *Conn) Receive(ctx context.Context) (ws.BoardEvent, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return ws.BoardEvent{}, fmt.Errorf("client.Conn.Receive: %w", err)
	}
	ev, err := ws.Decode(data)
	if err != nil {
		return ws.BoardEvent{}, fmt.Errorf("client.Conn.Receive: %w", err)
	}
	return ev, nil
}

func (c *Conn) Close() error {
	if err := c.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		return fmt.Errorf("client.Conn.Close: %w", err)
	}
	return nil
}

// Receiver yields hub events.
// *Conn satisfies this interface.
type Receiver interface {
	Receive(ctx context.Context) (ws.BoardEvent, error)
}

// Pump feeds events from src into s until ctx ends or the connection fails.
// onEvent, when non-nil, runs after each event has been applied. A normal
// closure or a cancelled ctx returns nil.
func Pump(ctx context.Context, src Receiver, s *Session, onEvent func(ws.BoardEvent)) error {
	for {
		ev, err := src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("client.Pump: %w", err)
		}
		s.HandleEvent(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}
}
