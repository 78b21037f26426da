package request

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/middleware"
	requestModel "github.com/mentormatch/backend/internal/model/request"
	userModel "github.com/mentormatch/backend/internal/model/user"
	requestService "github.com/mentormatch/backend/internal/service/request"
	"github.com/mentormatch/backend/pkg/utils"
)

// Handler 连接请求相关的HTTP处理器
type Handler struct {
	requests *requestService.Service
	log      *zap.Logger
}

func New(requests *requestService.Service, log *zap.Logger) *Handler {
	return &Handler{
		requests: requests,
		log:      logger.OrNop(log).Named("request"),
	}
}

// RegisterRoutes 注册需要认证的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.handleSend)
	r.Get("/requests", h.handleList)
	r.Put("/requests/{id}", h.handleRespond)
}

type sendRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type respondRequest struct {
	Status requestModel.Status `json:"status"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.requests.Send(r.Context(), middleware.UserID(r.Context()), req.ReceiverID, req.Message)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

// handleList 返回当前用户发出和收到的请求
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.requests.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// handleRespond 只有接收方可以接受或拒绝
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.requests.Respond(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()), req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requestService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, requestService.ErrForbidden):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, requestModel.ErrExists):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, requestModel.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, userModel.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
	default:
		h.log.Error("request_failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
