package api

import (
	"net/http"

	"flowdash/internal/auth"
	"flowdash/internal/service"
	"flowdash/internal/storage"
	"flowdash/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	Editor *service.EditorService
	Hub    *ws.Hub
	Log    *zap.Logger
	Auth   *auth.JWTConfig
	Import *storage.ImportPolicy
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// Add request logging middleware
	r.Use(RequestLogger(d.Log))

	// Optional authentication; anonymous editors are allowed
	jwtConfig := d.Auth
	if jwtConfig == nil {
		jwtConfig = auth.NewJWTConfig("")
	}
	r.Use(jwtConfig.Middleware)

	// Editor state
	r.Get("/state", d.getState)
	r.Post("/actions", d.postAction)

	// Workspace endpoints
	r.Get("/workspaces", d.listWorkspaces)
	r.Get("/workspaces/{id}", d.getWorkspace)
	r.Post("/workspaces/{id}/connect", d.connectWorkspace)

	// Flow endpoints
	r.Get("/flows", d.listFlows)
	r.Post("/flows/import", d.importFlow)
	r.Get("/flows/{id}", d.getFlow)
	r.Get("/flows/{id}/export", d.exportFlow)

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}
