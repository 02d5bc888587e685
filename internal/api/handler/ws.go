package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler echoes websocket messages.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

// NewWebSocketHandler creates a new WebSocketHandler. checkOrigin may be nil
// to accept same-origin requests only.
func NewWebSocketHandler(logger *zap.SugaredLogger, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Echo handles GET /v1/ws.
func (h *WebSocketHandler) Echo(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("websocket read: %v", err)
			}
			return
		}
		if err := conn.WriteMessage(msgType, data); err != nil {
			h.logger.Warnf("websocket write: %v", err)
			return
		}
	}
}
