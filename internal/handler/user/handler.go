package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/middleware"
	userModel "github.com/mentormatch/backend/internal/model/user"
	userService "github.com/mentormatch/backend/internal/service/user"
	"github.com/mentormatch/backend/pkg/utils"
)

// PresenceReader exposes who currently holds a live connection.
type PresenceReader interface {
	OnlineUsers() []string
}

// Handler 账号与资料相关的HTTP处理器
type Handler struct {
	users    *userService.Service
	presence PresenceReader
	log      *zap.Logger
}

// New 创建用户处理器
func New(users *userService.Service, presence PresenceReader, log *zap.Logger) *Handler {
	return &Handler{
		users:    users,
		presence: presence,
		log:      logger.OrNop(log).Named("user"),
	}
}

// RegisterRoutes 注册无需认证的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterProtectedRoutes 注册需要认证的路由
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/users/me", h.handleMe)
	r.Put("/users/profile", h.handleUpdateProfile)
	r.Get("/users/matches", h.handleMatches)
	r.Get("/users/online", h.handleOnline)
	r.Get("/users/{id}", h.handleGet)
}

type registerRequest struct {
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Password  string         `json:"password"`
	Role      userModel.Role `json:"role"`
	Skills    []string       `json:"skills"`
	Interests []string       `json:"interests"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister 注册并直接返回登录态
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.users.Register(r.Context(), userService.Registration{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		Skills:    req.Skills,
		Interests: req.Interests,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleLogin 校验邮箱和密码
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.users.Login(r.Context(), userModel.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, u.Public(true))
}

// handleUpdateProfile 只更新请求中出现的字段
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update userModel.ProfileUpdate
	if err := utils.DecodeJSON(w, r, &update); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), middleware.UserID(r.Context()), update)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, u.Public(true))
}

// handleMatches 返回按相似度排序的推荐列表
func (h *Handler) handleMatches(w http.ResponseWriter, r *http.Request) {
	results, err := h.users.Matches(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, results)
}

func (h *Handler) handleOnline(w http.ResponseWriter, r *http.Request) {
	online := []string{}
	if h.presence != nil {
		online = append(online, h.presence.OnlineUsers()...)
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"users": online})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, u.Public(u.ID == middleware.UserID(r.Context())))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, userService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, userService.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusBadRequest, "invalid credentials")
	case errors.Is(err, userModel.ErrEmailTaken):
		utils.RespondError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, userModel.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
	default:
		h.log.Error("request_failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
