package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleWebSocket 处理 websocket 连接：读循环在当前 goroutine，写循环在 writePump。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", zap.Error(err))
		return
	}

	client := newWSClient(conn, h.opts.SendBuffer, h.log)
	go client.writePump()

	// Persistence started by this connection must outlive it.
	ctx := context.WithoutCancel(r.Context())
	session := h.dispatcher.Open(client)
	h.log.Debug("connection_opened", zap.String("conn_id", client.ID()), zap.String("remote", r.RemoteAddr))

	defer func() {
		h.dispatcher.Close(ctx, session)
		client.close()
		h.log.Debug("connection_closed", zap.String("conn_id", client.ID()), zap.String("user_id", session.UserID()))
	}()

	conn.SetReadLimit(h.opts.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Info("read_error", zap.String("conn_id", client.ID()), zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if kind != websocket.TextMessage {
			continue
		}
		h.dispatcher.HandleFrame(ctx, session, frame)
	}
}
