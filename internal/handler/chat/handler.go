package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/middleware"
	"github.com/mentormatch/backend/internal/model/chat"
	"github.com/mentormatch/backend/internal/realtime"
	chatService "github.com/mentormatch/backend/internal/service/chat"
	"github.com/mentormatch/backend/pkg/utils"
)

// Broadcaster fans envelopes out to a user's live connections.
type Broadcaster interface {
	Broadcast(room string, env realtime.Envelope) int
}

// Handler 聊天消息的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	relay   Broadcaster
	log     *zap.Logger
}

// New 创建聊天处理器；relay 为 nil 时 REST 发送不做实时推送。
func New(chatSvc *chatService.Service, relay Broadcaster, log *zap.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		relay:   relay,
		log:     logger.OrNop(log).Named("chat"),
	}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载认证中间件。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages/{userId}", h.handleHistory)
	r.Post("/messages", h.handleSend)
	r.Put("/messages/read/{userId}", h.handleMarkRead)
	r.Put("/messages/{id}/react", h.handleReact)
	r.Delete("/messages/{id}", h.handleDelete)
}

// handleHistory 返回与指定用户的会话记录
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	me := middleware.UserID(r.Context())
	peer := chi.URLParam(r, "userId")

	messages, err := h.chatSvc.History(r.Context(), me, peer)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleSend 通过 REST 发送消息，与实时通道走同一条持久化与推送路径
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload realtime.SendMessage
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	me := middleware.UserID(r.Context())
	if payload.Sender != "" && payload.Sender != me {
		utils.RespondError(w, http.StatusForbidden, "sender does not match authenticated user")
		return
	}
	payload.Sender = me

	msg, err := h.chatSvc.SendThen(r.Context(), payload.Draft(), func(msg chat.Message) {
		if h.relay == nil {
			return
		}
		env := realtime.Envelope{Event: realtime.EventReceiveMessage, Data: msg}
		h.relay.Broadcast(msg.Sender, env)
		h.relay.Broadcast(msg.Receiver, env)
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

// handleReact 切换当前用户对消息的表情
func (h *Handler) handleReact(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Emoji string `json:"emoji"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	messageID := chi.URLParam(r, "id")
	reactions, err := h.chatSvc.React(r.Context(), messageID, middleware.UserID(r.Context()), payload.Emoji)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messageId": messageID,
		"reactions": reactions,
	})
}

// handleDelete 仅允许发送者删除消息
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	msg, err := h.chatSvc.Delete(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"messageId":  msg.ID,
		"receiverId": msg.Receiver,
	})
}

// handleMarkRead 将对方发来的未读消息标记为已读
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	peer := strings.TrimSpace(chi.URLParam(r, "userId"))
	updated, err := h.chatSvc.MarkRead(r.Context(), middleware.UserID(r.Context()), peer)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrMessageNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrNotSender), errors.Is(err, chat.ErrNotParticipant):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, chat.ErrNotConnected):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrInvalidMessage),
		errors.Is(err, chat.ErrInvalidReaction),
		errors.Is(err, chat.ErrUnknownUser),
		errors.Is(err, chat.ErrReplyNotFound):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request_failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
