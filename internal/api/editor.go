package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"flowdash/internal/auth"
	"flowdash/internal/state"

	"go.uber.org/zap"
)

type ActionRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SelectionResponse struct {
	SelectedWorkspaceID string `json:"selectedWorkspaceId"`
	SelectedFlowID      string `json:"selectedFlowId"`
	Ignored             bool   `json:"ignored,omitempty"`
}

func selection(s *state.State) SelectionResponse {
	return SelectionResponse{
		SelectedWorkspaceID: s.SelectedWorkspaceID,
		SelectedFlowID:      s.SelectedFlowID(),
	}
}

func (d Dependencies) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Editor.Snapshot())
}

func (d Dependencies) postAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if req.Type == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "type required", d.Log)
		return
	}

	action, err := state.DecodeAction(req.Type, req.Payload)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_payload", err.Error(), d.Log)
		return
	}

	next, err := d.Editor.Dispatch(r.Context(), action)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "persist_failed", err.Error(), d.Log)
		return
	}

	d.Log.Debug("Action applied",
		zap.String("editor", auth.GetEditorID(r.Context())),
		zap.String("type", req.Type),
	)

	resp := selection(next)
	_, resp.Ignored = action.(state.Unknown)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error, targets map[error]int) int {
	for target, status := range targets {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
