package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/realtime"
	"github.com/mentormatch/backend/pkg/utils"
)

const streamKeepAlive = 25 * time.Second

// streamSink is the realtime.Sink for a read-only SSE subscriber.
type streamSink struct {
	id     string
	events chan realtime.Envelope
	done   chan struct{}
	once   sync.Once
}

func newStreamSink(buffer int) *streamSink {
	return &streamSink{
		id:     uuid.NewString(),
		events: make(chan realtime.Envelope, buffer),
		done:   make(chan struct{}),
	}
}

func (s *streamSink) ID() string { return s.id }

func (s *streamSink) Deliver(env realtime.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- env:
		return true
	default:
		return false
	}
}

func (s *streamSink) close() {
	s.once.Do(func() { close(s.done) })
}

// handleEventStream 以 SSE 推送当前用户房间内的事件。
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("x-auth-token"))
	}
	userID, err := h.tickets.VerifyIdentity(token)
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	sink := newStreamSink(h.opts.SendBuffer)
	session := h.dispatcher.Open(sink)
	closeCtx := context.WithoutCancel(r.Context())
	defer func() {
		h.dispatcher.Close(closeCtx, session)
		sink.close()
	}()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := h.dispatcher.Identify(r.Context(), session, userID); err != nil {
		h.log.Warn("stream_identify_failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.log.Debug("stream_opened", zap.String("conn_id", sink.ID()), zap.String("user_id", userID))

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sink.events:
			if err := utils.SendSSEEvent(w, flusher, env.Event, env.Data); err != nil {
				h.log.Debug("stream_write_failed", zap.String("conn_id", sink.ID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
