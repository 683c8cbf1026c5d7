package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/XANDER-CAGE/dating/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	pongWait          = 60 * time.Second
	heartbeatInterval = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS for the REST surface is handled by the middleware; the
	// socket accepts any origin and relies on upstream auth.
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientFrame is what clients may send upstream. Only typing indicators
// for now; everything else flows through the REST surface.
type clientFrame struct {
	Type    string `json:"type"`
	MatchID uint64 `json:"match_id"`
	Typing  bool   `json:"typing"`
}

// serveWS upgrades the connection, binds it into the local hub and
// registers it in the shared presence table. The connection stays the
// user's live endpoint until it drops or a newer one replaces it.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.appCtx.Logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	conn := realtime.NewConn(userID, ws)
	h.hub.Bind(conn)

	ctx := context.Background()
	if err := h.registry.Register(ctx, userID, conn.ID); err != nil {
		h.appCtx.Logger.Error("presence register failed", "user_id", userID, "err", err)
	}
	h.appCtx.Logger.Info("client connected", "user_id", userID, "conn_id", conn.ID)

	go h.heartbeatLoop(ctx, conn)
	h.readLoop(ctx, ws, conn)
}

// heartbeatLoop keeps the shared presence entry alive while the
// connection is up. The check-and-expire script refuses to refresh an
// entry a newer connection has overwritten.
func (h *Handler) heartbeatLoop(ctx context.Context, conn *realtime.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			return
		case <-ticker.C:
			if err := h.registry.Heartbeat(ctx, conn.UserID, conn.ID); err != nil {
				h.appCtx.Logger.Warn("presence heartbeat failed",
					"user_id", conn.UserID, "err", err)
			}
		}
	}
}

// readLoop consumes client frames until the connection drops, then
// tears down hub and presence state for this connection only.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, conn *realtime.Conn) {
	defer func() {
		h.hub.Release(conn.UserID, conn.ID)
		if err := h.registry.Deregister(ctx, conn.UserID, conn.ID); err != nil {
			h.appCtx.Logger.Warn("presence deregister failed",
				"user_id", conn.UserID, "err", err)
		}
		h.appCtx.Logger.Info("client disconnected", "user_id", conn.UserID, "conn_id", conn.ID)
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type == "typing" && frame.MatchID != 0 {
			h.matchmaking.Typing(ctx, conn.UserID, frame.MatchID, frame.Typing)
		}
	}
}
