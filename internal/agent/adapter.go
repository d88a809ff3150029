// Package agent dispatches board chat requests to an external AI agent
// service. The agent itself runs elsewhere; this package only speaks its HTTP
// contract.
package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when the selected agent backend fails its health
// check.
var ErrUnavailable = errors.New("agent: backend is not available") //nolint:gochecknoglobals // sentinel error

// ErrInvalidRequest is returned for chat requests missing a board or messages.
var ErrInvalidRequest = errors.New("agent: invalid chat request") //nolint:gochecknoglobals // sentinel error

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	BoardID  uuid.UUID     `json:"board_id"`
	Verbose  bool          `json:"verbose"`
	Model    string        `json:"model,omitempty"`
}

// Validate rejects requests the agent service would refuse.
func (r ChatRequest) Validate() error {
	if r.BoardID == uuid.Nil || len(r.Messages) == 0 {
		return ErrInvalidRequest
	}
	return nil
}

// ChatResponse is the agent's reply. The service streams text; the adapter
// collects it.
type ChatResponse struct {
	Backend     string `json:"backend"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Adapter is one way of reaching an agent.
type Adapter interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	HealthCheck(ctx context.Context) bool
}
