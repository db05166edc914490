package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"flowdash/internal/model"
	"flowdash/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type FlowResponse struct {
	ID string `json:"id"`
	model.Flow
}

type ImportResponse struct {
	FlowID      string `json:"flowId"`
	WorkspaceID string `json:"workspaceId"`
}

func (d Dependencies) listFlows(w http.ResponseWriter, r *http.Request) {
	flows := d.Editor.Snapshot().Flows
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		writeJSON(w, http.StatusOK, flows)
		return
	}

	var filtered model.Map[model.Flow]
	flows.Each(func(id string, f model.Flow) bool {
		if f.WorkspaceID == workspaceID {
			filtered.Set(id, f)
		}
		return true
	})
	writeJSON(w, http.StatusOK, filtered)
}

func (d Dependencies) getFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flow, err := d.Editor.Flow(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Flow not found", d.Log)
		return
	}
	writeJSON(w, http.StatusOK, FlowResponse{ID: id, Flow: flow})
}

func (d Dependencies) exportFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flow, err := d.Editor.Flow(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Flow not found", d.Log)
		return
	}

	out, err := d.Editor.ExportFlow(id)
	if err != nil {
		WriteError(w, statusFor(err, map[error]int{service.ErrNotFound: http.StatusNotFound}), "export_failed", err.Error(), d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fileName(flow.Name) + ".yml",
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// importFlow accepts a definition either as the raw request body or as the
// "file" part of a multipart form
func (d Dependencies) importFlow(w http.ResponseWriter, r *http.Request) {
	source, status, err := d.readDefinition(w, r)
	if err != nil {
		WriteError(w, status, "policy_violation", err.Error(), d.Log)
		return
	}

	next, err := d.Editor.ImportFlow(r.Context(), source)
	if err != nil {
		status := statusFor(err, map[error]int{service.ErrInvalidDefinition: http.StatusBadRequest})
		code := "import_failed"
		if status == http.StatusBadRequest {
			code = "invalid_definition"
		}
		WriteError(w, status, code, err.Error(), d.Log)
		return
	}

	d.Log.Info("Flow imported", zap.String("flow_id", next.SelectedFlowID()))
	writeJSON(w, http.StatusCreated, ImportResponse{
		FlowID:      next.SelectedFlowID(),
		WorkspaceID: next.SelectedWorkspaceID,
	})
}

func (d Dependencies) readDefinition(w http.ResponseWriter, r *http.Request) (string, int, error) {
	maxBytes := d.Import.MaxBytes()
	if maxBytes > 0 {
		// Multipart framing needs some headroom over the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64*1024)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", http.StatusBadRequest, fmt.Errorf("file part required: %w", err)
		}
		defer file.Close()

		if err := d.Import.ValidateFile(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
			return "", http.StatusBadRequest, err
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return "", http.StatusBadRequest, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), 0, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", http.StatusRequestEntityTooLarge, fmt.Errorf("failed to read body: %w", err)
	}
	if err := d.Import.ValidateFile("", r.Header.Get("Content-Type"), int64(len(data))); err != nil {
		return "", http.StatusBadRequest, err
	}
	return string(data), 0, nil
}

func fileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "flow"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
