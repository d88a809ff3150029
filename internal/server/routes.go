package server

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/orim/internal/api/v1"
	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/config"
)

func registerAPIRoutes(api huma.API, cfg *config.Config, deps Deps, hub *ws.Hub) {
	v1.RegisterBoardRoutes(api, deps.Store, hub)
	v1.RegisterObjectRoutes(api, deps.Store, hub)
	v1.RegisterMemberRoutes(api, deps.Store, v1.MemberRoutesConfig{
		Notifier:   deps.Notifier,
		AppBaseURL: cfg.Slack.AppBaseURL,
	})
	v1.RegisterAIRoutes(api, deps.Store, deps.Agents, defaultBackend(cfg))
	v1.RegisterAdminRoutes(api, deps.Store, deps.Agents, v1.AdminRoutesConfig{
		PermanentSuperuserEmail: cfg.Auth.PermanentSuperuserEmail,
		DefaultBackend:          defaultBackend(cfg),
	})
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/boards/{boardID}", hub.ServeBoard)
}

func hostOf(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
