package api

import (
	"net/http"

	"flowdash/internal/auth"
	"flowdash/internal/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	// Check Hub before upgrading
	if d.Hub == nil {
		d.Log.Error("WebSocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	// Set by the auth middleware from a token, ?token= or X-Editor-ID
	editorID := auth.GetEditorID(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	d.Log.Info("WebSocket connected",
		zap.String("editor", editorID),
		zap.String("remote", r.RemoteAddr),
	)

	wsConn := ws.NewConn(conn, d.Hub, editorID)
	d.Hub.Register(wsConn)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}
