package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/middleware"
	sessionModel "github.com/mentormatch/backend/internal/model/session"
	userModel "github.com/mentormatch/backend/internal/model/user"
	sessionService "github.com/mentormatch/backend/internal/service/session"
	"github.com/mentormatch/backend/pkg/utils"
)

// Handler 辅导预约相关的HTTP处理器
type Handler struct {
	sessions *sessionService.Service
	log      *zap.Logger
}

func New(sessions *sessionService.Service, log *zap.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		log:      logger.OrNop(log).Named("session"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleBook)
	r.Get("/sessions", h.handleList)
	r.Put("/sessions/{id}", h.handleUpdate)
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	var req sessionService.Booking
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.sessions.Book(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.sessions.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// handleUpdate 修改状态或会议链接
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req sessionService.Changes
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.sessions.Update(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sessionService.ErrForbidden):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, sessionModel.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, userModel.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
	default:
		h.log.Error("request_failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
