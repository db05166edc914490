package api

import (
	"net/http"

	"flowdash/internal/model"
	"flowdash/internal/service"

	"github.com/go-chi/chi/v5"
)

type WorkspaceResponse struct {
	ID string `json:"id"`
	model.Workspace
	Flows []string `json:"flows"`
}

func (d Dependencies) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Editor.Snapshot().Workspaces)
}

func (d Dependencies) getWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ws, err := d.Editor.Workspace(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Workspace not found", d.Log)
		return
	}

	flows := d.Editor.Snapshot().WorkspaceFlows(id)
	if flows == nil {
		flows = []string{}
	}
	writeJSON(w, http.StatusOK, WorkspaceResponse{ID: id, Workspace: ws, Flows: flows})
}

func (d Dependencies) connectWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	queued, err := d.Editor.ConnectWorkspace(r.Context(), id)
	if err != nil {
		status := statusFor(err, map[error]int{
			service.ErrNotFound:   http.StatusNotFound,
			service.ErrNoEndpoint: http.StatusConflict,
		})
		WriteError(w, status, "connect_failed", err.Error(), d.Log)
		return
	}

	if queued {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "QUEUED"})
		return
	}

	ws, err := d.Editor.Workspace(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Workspace not found", d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"isConnected":  ws.IsConnected,
		"daemon_id":    ws.DaemonID,
		"jina_version": ws.JinaVersion,
	})
}
