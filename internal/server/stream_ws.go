package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleStreamWS attaches a WebSocket consumer to the app's live generation
// stream. The client passes ?after=<seq> to resume from the last event it
// saw; events inside the retained window are replayed before live ones.
// Only the instance producing the stream can serve attachments for it.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("appId")

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	canAccess, err := s.store.UserCanAccess(userID, appID)
	if err != nil {
		slog.Error("access check failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check access")
		return
	}
	if !canAccess {
		writeError(w, http.StatusForbidden, "no access to this app")
		return
	}

	stream, ok := s.controller.Attach(appID)
	if !ok {
		writeError(w, http.StatusNotFound, "no live stream for this app")
		return
	}

	var afterSeq int64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid after parameter")
			return
		}
		afterSeq = parsed
	}

	upgrader := s.createUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream websocket upgrade failed", "app_id", appID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: discard client frames, cancel on disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		events, done, err := stream.Next(ctx, afterSeq)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("stream read failed", "app_id", appID, "error", err)
			}
			return
		}
		if done {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream finished"))
			return
		}
		for _, ev := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			afterSeq = ev.Seq
		}
	}
}
