package post

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/middleware"
	postModel "github.com/mentormatch/backend/internal/model/post"
	postService "github.com/mentormatch/backend/internal/service/post"
	"github.com/mentormatch/backend/pkg/utils"
)

// Handler 社区论坛HTTP处理器
type Handler struct {
	posts *postService.Service
	log   *zap.Logger
}

func New(posts *postService.Service, log *zap.Logger) *Handler {
	return &Handler{
		posts: posts,
		log:   logger.OrNop(log).Named("post"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/comment", h.handleComment)
		r.Put("/{id}/like", h.handleLike)
	})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req postService.Draft
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.posts.Create(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.posts.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handleComment 返回最新在前的全部评论
func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comments, err := h.posts.Comment(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()), req.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, comments)
}

// handleLike 点赞或取消点赞
func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	likes, err := h.posts.Like(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, likes)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, postService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, postModel.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("request_failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
