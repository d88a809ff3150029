package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/domain"
)

type AdminRoutesConfig struct {
	// PermanentSuperuserEmail cannot have its superuser flag changed.
	PermanentSuperuserEmail string
	DefaultBackend          domain.AgentBackend
}

type AgentConfigOutput struct {
	Body struct {
		domain.AppConfig
		Models []string `json:"models" doc:"Models that may be selected"`
	}
}

type UpdateAgentConfigInput struct {
	Body struct {
		Backend domain.AgentBackend `json:"backend" enum:"sdk,docker" doc:"Agent backend"`
		Model   string              `json:"model,omitempty" doc:"Model name; left unchanged when empty"`
	}
}

type AgentHealthInput struct {
	Backend string `query:"backend" doc:"Backend to probe; defaults to the configured one"`
}

type AgentHealthOutput struct {
	Body struct {
		Backend string `json:"backend"`
		Healthy bool   `json:"healthy"`
		Name    string `json:"name,omitempty" doc:"Adapter that answered the probe"`
	}
}

type ListUsersOutput struct {
	Body []*domain.Profile
}

type SetSuperuserInput struct {
	UserID uuid.UUID `path:"userID" doc:"Profile ID"`
	Body   struct {
		Superuser bool `json:"is_superuser"`
	}
}

type SetSuperuserOutput struct {
	Body *domain.Profile
}

type BoardShare struct {
	UserID uuid.UUID   `json:"user_id"`
	Name   string      `json:"name"`
	Role   domain.Role `json:"role"`
}

type BoardOverview struct {
	domain.Board
	OwnerName   string       `json:"owner_name"`
	MemberCount int          `json:"member_count" doc:"Membership rows of any status"`
	ObjectCount int          `json:"object_count"`
	SharedWith  []BoardShare `json:"shared_with" doc:"Accepted members"`
}

type ListBoardOverviewOutput struct {
	Body []BoardOverview
}

type PlatformStatsOutput struct {
	Body struct {
		Boards         int `json:"boards"`
		ActiveBoards7d int `json:"active_boards_7d" doc:"Boards updated in the last 7 days"`
		Members        int `json:"members"`
		Objects        int `json:"objects"`
		Objects24h     int `json:"objects_24h" doc:"Objects updated in the last 24 hours"`
		Objects7d      int `json:"objects_7d" doc:"Objects updated in the last 7 days"`
	}
}

const unknownName = "Unknown"

func RegisterAdminRoutes(api huma.API, store DataStore, agents AgentRegistry, cfg AdminRoutesConfig) {
	agentConfig := func(ctx context.Context) (*AgentConfigOutput, error) {
		current, err := loadAgentConfig(ctx, store, cfg.DefaultBackend)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load agent config", err)
		}
		out := &AgentConfigOutput{}
		out.Body.AppConfig = current
		out.Body.Models = domain.AgentModels
		return out, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-agent-config",
		Method:      http.MethodGet,
		Path:        "/admin/agent",
		Summary:     "Show the selected agent backend and model",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*AgentConfigOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}
		return agentConfig(ctx)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-agent-config",
		Method:      http.MethodPut,
		Path:        "/admin/agent",
		Summary:     "Select the agent backend and model",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *UpdateAgentConfigInput) (*AgentConfigOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}
		if !input.Body.Backend.Valid() {
			return nil, huma.Error400BadRequest("backend must be sdk or docker")
		}
		if input.Body.Model != "" && !domain.ValidAgentModel(input.Body.Model) {
			return nil, huma.Error400BadRequest("unknown model")
		}

		if err := store.AppConfig().Set(ctx, domain.AppConfigAgentBackend, string(input.Body.Backend)); err != nil {
			return nil, huma.Error500InternalServerError("failed to save agent backend", err)
		}
		if input.Body.Model != "" {
			if err := store.AppConfig().Set(ctx, domain.AppConfigAgentModel, input.Body.Model); err != nil {
				return nil, huma.Error500InternalServerError("failed to save agent model", err)
			}
		}

		return agentConfig(ctx)
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-health",
		Method:      http.MethodGet,
		Path:        "/admin/agent/health",
		Summary:     "Probe an agent backend",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *AgentHealthInput) (*AgentHealthOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}

		backend := domain.AgentBackend(input.Backend)
		if backend == "" {
			current, err := loadAgentConfig(ctx, store, cfg.DefaultBackend)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to load agent config", err)
			}
			backend = current.AgentBackend
		}
		if !backend.Valid() {
			return nil, huma.Error400BadRequest("backend must be sdk or docker")
		}

		out := &AgentHealthOutput{}
		out.Body.Backend = string(backend)
		if adapter := agents.Resolve(string(backend)); adapter != nil {
			out.Body.Name = adapter.Name()
			out.Body.Healthy = adapter.HealthCheck(ctx)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/admin/users",
		Summary:     "List known user profiles",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}
		profiles, err := store.Profiles().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}
		if profiles == nil {
			profiles = make([]*domain.Profile, 0)
		}
		return &ListUsersOutput{Body: profiles}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-superuser",
		Method:      http.MethodPost,
		Path:        "/admin/users/{userID}/superuser",
		Summary:     "Grant or revoke superuser",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *SetSuperuserInput) (*SetSuperuserOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}

		profile, err := store.Profiles().GetByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}
		if cfg.PermanentSuperuserEmail != "" &&
			domain.NormalizeEmail(profile.Email) == domain.NormalizeEmail(cfg.PermanentSuperuserEmail) {
			return nil, huma.Error403Forbidden("this user's superuser status cannot be changed")
		}

		if err := store.Profiles().SetSuperuser(ctx, input.UserID, input.Body.Superuser); err != nil {
			return nil, huma.Error500InternalServerError("failed to update user", err)
		}
		profile.Superuser = input.Body.Superuser

		return &SetSuperuserOutput{Body: profile}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-board-overview",
		Method:      http.MethodGet,
		Path:        "/admin/boards",
		Summary:     "List every board with owner, counts and sharing",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardOverviewOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}
		overview, err := boardOverview(ctx, store)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load boards", err)
		}
		return &ListBoardOverviewOutput{Body: overview}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "platform-stats",
		Method:      http.MethodGet,
		Path:        "/admin/stats",
		Summary:     "Show platform totals and recent activity",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*PlatformStatsOutput, error) {
		if err := requireSuperuser(ctx); err != nil {
			return nil, err
		}

		now := time.Now()
		out := &PlatformStatsOutput{}
		counts := []struct {
			dst   *int
			count func() (int, error)
		}{
			{&out.Body.Boards, func() (int, error) { return store.Boards().Count(ctx, time.Time{}) }},
			{&out.Body.ActiveBoards7d, func() (int, error) { return store.Boards().Count(ctx, now.Add(-7*24*time.Hour)) }},
			{&out.Body.Objects, func() (int, error) { return store.Objects().Count(ctx, time.Time{}) }},
			{&out.Body.Objects24h, func() (int, error) { return store.Objects().Count(ctx, now.Add(-24*time.Hour)) }},
			{&out.Body.Objects7d, func() (int, error) { return store.Objects().Count(ctx, now.Add(-7*24*time.Hour)) }},
		}
		for _, c := range counts {
			n, err := c.count()
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to load stats", err)
			}
			*c.dst = n
		}

		members, err := store.Members().ListAll(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load stats", err)
		}
		out.Body.Members = len(members)

		return out, nil
	})
}

// boardOverview joins boards with their owners, memberships and object
// counts. Blank or missing profile names read as "Unknown".
func boardOverview(ctx context.Context, store DataStore) ([]BoardOverview, error) {
	boards, err := store.Boards().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	members, err := store.Members().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	objectCounts, err := store.Objects().CountByBoard(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := store.Profiles().List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(profiles))
	for _, p := range profiles {
		if p.DisplayName != "" {
			names[p.ID] = p.DisplayName
		}
	}
	nameOf := func(id uuid.UUID) string {
		if n, ok := names[id]; ok {
			return n
		}
		return unknownName
	}

	byBoard := make(map[uuid.UUID][]*domain.BoardMember)
	for _, m := range members {
		byBoard[m.BoardID] = append(byBoard[m.BoardID], m)
	}

	out := make([]BoardOverview, 0, len(boards))
	for _, b := range boards {
		ov := BoardOverview{
			Board:       *b,
			OwnerName:   nameOf(b.OwnerID),
			MemberCount: len(byBoard[b.ID]),
			ObjectCount: objectCounts[b.ID],
			SharedWith:  []BoardShare{},
		}
		for _, m := range byBoard[b.ID] {
			if m.Status != domain.InvitationAccepted {
				continue
			}
			ov.SharedWith = append(ov.SharedWith, BoardShare{UserID: m.UserID, Name: nameOf(m.UserID), Role: m.Role})
		}
		out = append(out, ov)
	}
	return out, nil
}
