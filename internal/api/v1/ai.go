package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orim/internal/agent"
	"github.com/gosuda/orim/internal/domain"
)

type ChatInput struct {
	Body struct {
		BoardID  uuid.UUID           `json:"board_id" doc:"Board the conversation is about"`
		Messages []agent.ChatMessage `json:"messages" doc:"Conversation so far, oldest first"`
		Verbose  bool                `json:"verbose,omitempty" doc:"Ask the agent to narrate tool use"`
	}
}

type ChatOutput struct {
	Body *agent.ChatResponse
}

// loadAgentConfig reads the selected backend and model, falling back to
// defaultBackend when nothing has been configured.
func loadAgentConfig(ctx context.Context, store DataStore, defaultBackend domain.AgentBackend) (domain.AppConfig, error) {
	cfg := domain.AppConfig{AgentBackend: defaultBackend}

	backend, err := store.AppConfig().Get(ctx, domain.AppConfigAgentBackend)
	switch {
	case err == nil:
		if b := domain.AgentBackend(backend); b.Valid() {
			cfg.AgentBackend = b
		}
	case !errors.Is(err, domain.ErrNotFound):
		return cfg, err
	}

	model, err := store.AppConfig().Get(ctx, domain.AppConfigAgentModel)
	switch {
	case err == nil:
		cfg.AgentModel = model
	case !errors.Is(err, domain.ErrNotFound):
		return cfg, err
	}

	return cfg, nil
}

func RegisterAIRoutes(api huma.API, store DataStore, agents AgentRegistry, defaultBackend domain.AgentBackend) {
	huma.Register(api, huma.Operation{
		OperationID: "ai-chat",
		Method:      http.MethodPost,
		Path:        "/ai/chat",
		Summary:     "Send a board conversation to the configured AI agent",
		Tags:        []string{"AI"},
	}, func(ctx context.Context, input *ChatInput) (*ChatOutput, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return nil, err
		}
		if input.Body.BoardID == uuid.Nil {
			return nil, huma.Error400BadRequest("board_id is required")
		}
		if len(input.Body.Messages) == 0 {
			return nil, huma.Error400BadRequest("messages are required")
		}
		if _, _, err := boardAccess(ctx, store, input.Body.BoardID, userID); err != nil {
			return nil, err
		}

		cfg, err := loadAgentConfig(ctx, store, defaultBackend)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load agent config", err)
		}

		adapter := agents.Resolve(string(cfg.AgentBackend))
		if adapter == nil {
			return nil, huma.Error503ServiceUnavailable("no agent backend configured")
		}

		resp, err := adapter.Chat(ctx, agent.ChatRequest{
			Messages: input.Body.Messages,
			BoardID:  input.Body.BoardID,
			Verbose:  input.Body.Verbose,
			Model:    cfg.AgentModel,
		})
		if err != nil {
			if errors.Is(err, agent.ErrUnavailable) {
				return nil, huma.Error503ServiceUnavailable(adapter.Name() + " agent is not available")
			}
			log.Error().Err(err).Str("backend", adapter.Name()).Str("board_id", input.Body.BoardID.String()).Msg("agent chat failed")
			return nil, huma.Error502BadGateway("agent request failed")
		}

		return &ChatOutput{Body: resp}, nil
	})
}
