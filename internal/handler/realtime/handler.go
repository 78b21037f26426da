package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/middleware"
	"github.com/mentormatch/backend/internal/realtime"
	"github.com/mentormatch/backend/pkg/utils"
)

// TicketIssuer signs short-lived realtime join tickets.
type TicketIssuer interface {
	IssueTicket(userID string) (string, time.Time, error)
	VerifyIdentity(token string) (string, error)
}

// Options 配置实时网关。
type Options struct {
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
}

// Handler 实时通道（websocket 与 SSE）的 HTTP 处理器。
type Handler struct {
	dispatcher *realtime.Dispatcher
	tickets    TicketIssuer
	upgrader   websocket.Upgrader
	opts       Options
	log        *zap.Logger
}

// New 创建实时网关处理器。
func New(dispatcher *realtime.Dispatcher, tickets TicketIssuer, opts Options, log *zap.Logger) *Handler {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 64
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	return &Handler{
		dispatcher: dispatcher,
		tickets:    tickets,
		opts:       opts,
		log:        logger.OrNop(log).Named("realtime"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(opts.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册无需 REST 认证的实时路由，身份在 join_room 或查询参数中校验。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleEventStream)
}

// RegisterProtectedRoutes 注册需要登录的路由。
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/realtime/ticket", h.handleIssueTicket)
}

func (h *Handler) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	token, expiresAt, err := h.tickets.IssueTicket(userID)
	if err != nil {
		h.log.Error("ticket_issue_failed", zap.String("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue ticket")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"token":     token,
		"expiresAt": expiresAt,
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || strings.EqualFold(candidate, origin) {
				return true
			}
		}
		return false
	}
}
