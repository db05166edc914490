package ws

import (
	"context"
	"encoding/json"

	"flowdash/internal/state"

	"go.uber.org/zap"
)

// Editor is the state owner commands act on
type Editor interface {
	Dispatch(ctx context.Context, action state.Action) (*state.State, error)
	Snapshot() *state.State
	ExportFlow(id string) ([]byte, error)
}

// CommandHandler handles WebSocket commands
type CommandHandler struct {
	editor Editor
	log    *zap.Logger
}

func NewCommandHandler(editor Editor, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		editor: editor,
		log:    log,
	}
}

type dispatchData struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandleCommand processes a WebSocket command
func (h *CommandHandler) HandleCommand(ctx context.Context, conn *Conn, cmd inbound) {
	switch cmd.Op {
	case "dispatch":
		h.handleDispatch(ctx, conn, cmd.ID, cmd.Data)
	case "snapshot":
		h.sendResponse(conn, cmd.ID, cmd.Op, h.editor.Snapshot())
	case "export":
		h.handleExport(conn, cmd.ID, cmd.Data)
	default:
		h.sendError(conn, cmd.ID, "unknown_command", "Unknown command: "+cmd.Op)
	}
}

func (h *CommandHandler) handleDispatch(ctx context.Context, conn *Conn, msgID string, data json.RawMessage) {
	var in dispatchData
	if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
		h.sendError(conn, msgID, "invalid_input", "type required")
		return
	}

	action, err := state.DecodeAction(in.Type, in.Payload)
	if err != nil {
		h.sendError(conn, msgID, "invalid_input", err.Error())
		return
	}

	next, err := h.editor.Dispatch(ctx, action)
	if err != nil {
		h.log.Error("Dispatch failed", zap.String("editor", conn.editorID), zap.String("action", in.Type), zap.Error(err))
		h.sendError(conn, msgID, "persist_failed", err.Error())
		return
	}

	h.sendResponse(conn, msgID, "dispatch", map[string]interface{}{
		"selectedWorkspaceId": next.SelectedWorkspaceID,
		"selectedFlowId":      next.SelectedFlowID(),
	})
}

func (h *CommandHandler) handleExport(conn *Conn, msgID string, data json.RawMessage) {
	var in struct {
		FlowID string `json:"flowId"`
	}
	if err := json.Unmarshal(data, &in); err != nil || in.FlowID == "" {
		h.sendError(conn, msgID, "invalid_input", "flowId required")
		return
	}

	out, err := h.editor.ExportFlow(in.FlowID)
	if err != nil {
		h.sendError(conn, msgID, "export_failed", err.Error())
		return
	}
	h.sendResponse(conn, msgID, "export", map[string]string{"yaml": string(out)})
}

func (h *CommandHandler) sendResponse(conn *Conn, msgID, op string, data interface{}) {
	response := map[string]interface{}{
		"type": "response",
		"op":   op,
		"data": data,
	}
	if msgID != "" {
		response["id"] = msgID
	}
	if !conn.sendJSON(response) {
		h.log.Warn("Failed to send response, channel full")
	}
}

func (h *CommandHandler) sendError(conn *Conn, msgID, code, message string) {
	err := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if msgID != "" {
		err["id"] = msgID
	}
	if !conn.sendJSON(err) {
		h.log.Warn("Failed to send error, channel full")
	}
}
