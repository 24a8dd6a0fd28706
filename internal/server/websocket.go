package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Ajamillion/receptive/internal/asr"
	"github.com/Ajamillion/receptive/internal/protocol"
	"github.com/Ajamillion/receptive/internal/session"
)

// handleAudioStream upgrades the connection and runs the event loop for one
// call. Each connection carries exactly one session; events are processed
// sequentially in arrival order.
func (h *HTTPServer) handleAudioStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(h.config.ReadLimitBytes)

	h.logger.Info("Audio stream connected", slog.String("remote", r.RemoteAddr))
	h.runStreamLoop(r.Context(), conn)
}

// runStreamLoop reads events until the stream ends. The session, once
// started, is always stopped before the loop returns: the disconnect path
// and the stop event converge on the same teardown.
func (h *HTTPServer) runStreamLoop(ctx context.Context, conn *websocket.Conn) {
	var active *session.Session
	defer func() {
		if active != nil {
			active.Stop(ctx)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Audio stream read failed", slog.String("error", err.Error()))
			}
			return
		}

		event, err := protocol.Parse(data)
		if err != nil {
			var unknown *protocol.ErrUnknownEvent
			if errors.As(err, &unknown) {
				// mark and keepalive events from the carrier are expected
				continue
			}
			h.logger.Warn("Malformed stream event", slog.String("error", err.Error()))
			continue
		}

		switch event.Kind {
		case protocol.EventStart:
			if active != nil {
				// one session per connection; a repeated start is ignored
				h.logger.Warn("Ignoring start event on live connection",
					slog.String("call_id", active.CallID))
				continue
			}
			active = h.startSession(ctx, conn, event.Start)
			if active == nil {
				return
			}

		case protocol.EventMedia:
			if active == nil {
				continue
			}
			if done := h.handleMediaEvent(ctx, active, event.Media); done {
				active = nil
				return
			}

		case protocol.EventStop:
			if active != nil {
				active.Stop(ctx)
				active = nil
			}
			return
		}
	}
}

// startSession creates the session for a start event. A capacity rejection
// closes the socket with a policy message so the carrier stops streaming.
func (h *HTTPServer) startSession(ctx context.Context, conn *websocket.Conn, start *protocol.StartPayload) *session.Session {
	s, err := h.sessionMgr.StartSession(ctx, start.CallID(), start.StreamID())
	if err != nil {
		if errors.Is(err, asr.ErrCapacity) {
			h.logger.Warn("Rejecting stream, no engine capacity",
				slog.String("call_id", start.CallID()))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "capacity exhausted"))
			return nil
		}
		h.logger.Error("Failed to start session",
			slog.String("call_id", start.CallID()),
			slog.String("error", err.Error()))
		return nil
	}
	return s
}

// handleMediaEvent decodes and processes one media chunk. Returns true when
// the session reached a terminal state and the loop should end.
func (h *HTTPServer) handleMediaEvent(ctx context.Context, s *session.Session, media *protocol.MediaPayload) bool {
	audioData, err := media.DecodeAudio()
	if err != nil {
		h.logger.Warn("Undecodable media payload",
			slog.String("call_id", s.CallID),
			slog.String("error", err.Error()))
		return false
	}

	if err := s.HandleMedia(ctx, audioData); err != nil {
		// every pipeline error is terminal: guard pause, closed session,
		// or a failed engine that already tore the session down
		if !errors.Is(err, session.ErrGuardPaused) && !errors.Is(err, session.ErrSessionClosed) {
			h.logger.Warn("Media processing failed, closing stream",
				slog.String("call_id", s.CallID),
				slog.String("error", err.Error()))
		}
		return true
	}
	return false
}
