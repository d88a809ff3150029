package domain

import (
	"context"
	"slices"
)

type AgentBackend string

const (
	AgentBackendSDK    AgentBackend = "sdk"
	AgentBackendDocker AgentBackend = "docker"
)

const (
	AppConfigAgentBackend = "agent_backend"
	AppConfigAgentModel   = "agent_model"
)

// AgentModels lists the models the admin panel may select.
var AgentModels = []string{"claude-sonnet-4-5", "claude-haiku-4-5"} //nolint:gochecknoglobals // allow-list

// Valid reports whether b names a known backend.
func (b AgentBackend) Valid() bool {
	return b == AgentBackendSDK || b == AgentBackendDocker
}

// ValidAgentModel reports whether model is on the allow-list.
func ValidAgentModel(model string) bool {
	return slices.Contains(AgentModels, model)
}

type AppConfig struct {
	AgentBackend AgentBackend `json:"agent_backend"`
	AgentModel   string       `json:"agent_model"`
}

type AppConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
