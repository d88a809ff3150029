package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultHealthTimeout = 3 * time.Second
	maxReplyBytes        = 1 << 20
)

// ServiceAdapter talks to an agent service exposing POST /chat and GET
// /health.
type ServiceAdapter struct {
	name          string
	baseURL       string
	client        *http.Client
	healthTimeout time.Duration
}

// ServiceOption configures a ServiceAdapter.
type ServiceOption func(*ServiceAdapter)

func WithHTTPClient(c *http.Client) ServiceOption {
	return func(a *ServiceAdapter) { a.client = c }
}

func WithHealthTimeout(d time.Duration) ServiceOption {
	return func(a *ServiceAdapter) {
		if d > 0 {
			a.healthTimeout = d
		}
	}
}

func NewServiceAdapter(name, baseURL string, opts ...ServiceOption) *ServiceAdapter {
	a := &ServiceAdapter{
		name:          name,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: 60 * time.Second},
		healthTimeout: DefaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ServiceAdapter) Name() string { return a.name }

// HealthCheck reports whether GET /health answers 2xx within the health
// timeout.
func (a *ServiceAdapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Chat refuses with ErrUnavailable when the service is unhealthy, then
// forwards the request to POST /chat.
func (a *ServiceAdapter) Chat(ctx context.Context, chat ChatRequest) (*ChatResponse, error) {
	if err := chat.Validate(); err != nil {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: %w", err)
	}
	if !a.HealthCheck(ctx) {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat(%s): %w", a.name, ErrUnavailable)
	}
	return a.forward(ctx, chat)
}

func (a *ServiceAdapter) forward(ctx context.Context, chat ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: read: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("agent.ServiceAdapter.Chat: status %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}

	return &ChatResponse{
		Backend:     a.name,
		ContentType: resp.Header.Get("Content-Type"),
		Content:     string(reply),
	}, nil
}
