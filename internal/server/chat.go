package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/georgeIshaq/gameBuilder/internal/agents"
	"github.com/georgeIshaq/gameBuilder/internal/sandbox"
	"github.com/georgeIshaq/gameBuilder/internal/streams"
)

// handleChat starts a generation for an app and streams its events back as
// newline-delimited JSON. At most one generation runs per app: a running
// stream is asked to stop and waited for; if it does not unwind within the
// stop budget its state is force-cleared and the caller gets a 429 to retry.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	appID := strings.TrimSpace(r.Header.Get("X-App-Id"))
	if appID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-App-Id header")
		return
	}

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "a message is required")
		return
	}
	// The client sends the whole visible conversation; only the newest user
	// message is dispatched, the rest comes from our own history. Textless
	// input (image-only turns) still runs, routed to the generic agent.
	userInput := strings.TrimSpace(body.Messages[len(body.Messages)-1].Content)

	app, ok := s.requireApp(w, userID, appID)
	if !ok {
		return
	}

	// Supersede a running stream before claiming the slot.
	running, err := s.controller.IsStreamRunning(appID)
	if err != nil {
		slog.Error("stream status check failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check stream status")
		return
	}
	if running {
		slog.Info("stopping active stream before new message", "app_id", appID)
		if err := s.controller.StopStream(appID); err != nil {
			slog.Error("stop stream failed", "app_id", appID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to stop active stream")
			return
		}
		stopped, err := s.controller.WaitForStreamToStop(r.Context(), appID)
		if err != nil {
			slog.Error("wait for stream stop failed", "app_id", appID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed waiting for stream to stop")
			return
		}
		if !stopped {
			slog.Warn("stream did not stop in time, clearing state", "app_id", appID)
			if err := s.controller.ClearStreamState(appID); err != nil {
				slog.Error("clear stream state failed", "app_id", appID, "error", err)
			}
			writeError(w, http.StatusTooManyRequests, "Previous stream is still shutting down, please try again")
			return
		}
	}

	ds, err := s.sandbox.RequestDevServer(r.Context(), app.GitRepo)
	if err != nil {
		slog.Error("dev server request failed", "app_id", appID, "error", err)
		if errors.Is(err, sandbox.ErrUnavailable) {
			writeError(w, http.StatusBadGateway, "dev server unavailable")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to obtain dev server")
		}
		return
	}

	agent := agents.ForUserInput(userInput)
	slog.Info("dispatching chat", "app_id", appID, "agent", agent.Name)

	stream, err := s.controller.SendMessage(appID, agent, ds.FS, ds.Endpoint, userInput)
	if err != nil {
		if errors.Is(err, streams.ErrStreamBusy) {
			writeError(w, http.StatusTooManyRequests, "a stream is already running for this app")
			return
		}
		slog.Error("send message failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start generation")
		return
	}

	serveStream(w, r, stream, 0)
}

// serveStream writes stream events to the response as NDJSON, flushing each
// event, starting after the given sequence.
func serveStream(w http.ResponseWriter, r *http.Request, stream *streams.ResumableStream, afterSeq int64) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for {
		events, done, err := stream.Next(r.Context(), afterSeq)
		if err != nil {
			// Client gone or the stream failed; either way the body is
			// already committed, so just stop writing.
			return
		}
		if done {
			return
		}
		for _, ev := range events {
			if encErr := enc.Encode(ev); encErr != nil {
				return
			}
			afterSeq = ev.Seq
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleStopChat requests a cooperative stop of the app's active stream.
func (s *Server) handleStopChat(w http.ResponseWriter, r *http.Request) {
	appID := strings.TrimSpace(r.Header.Get("X-App-Id"))
	if appID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-App-Id header")
		return
	}
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	if err := s.controller.StopStream(appID); err != nil {
		slog.Error("stop stream failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stop stream")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleClearChat force-clears the app's stream state. Escape hatch for a
// stuck session; any task still running for it is disowned.
func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	appID := strings.TrimSpace(r.Header.Get("X-App-Id"))
	if appID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-App-Id header")
		return
	}
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	if err := s.controller.ClearStreamState(appID); err != nil {
		slog.Error("clear stream state failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear stream state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleChatStatus reports whether a stream is running for the app.
func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	appID := strings.TrimSpace(r.Header.Get("X-App-Id"))
	if appID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-App-Id header")
		return
	}
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	running, err := s.controller.IsStreamRunning(appID)
	if err != nil {
		slog.Error("stream status check failed", "app_id", appID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check stream status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"running": running})
}
