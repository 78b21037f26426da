package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/config"
	"github.com/mentormatch/backend/internal/handler/chat"
	"github.com/mentormatch/backend/internal/handler/post"
	"github.com/mentormatch/backend/internal/handler/realtime"
	"github.com/mentormatch/backend/internal/handler/request"
	"github.com/mentormatch/backend/internal/handler/session"
	"github.com/mentormatch/backend/internal/handler/user"
	"github.com/mentormatch/backend/internal/metrics"
	middlewarePkg "github.com/mentormatch/backend/internal/middleware"
	realtimeCore "github.com/mentormatch/backend/internal/realtime"
	"github.com/mentormatch/backend/internal/service/auth"
	chatService "github.com/mentormatch/backend/internal/service/chat"
	postService "github.com/mentormatch/backend/internal/service/post"
	requestService "github.com/mentormatch/backend/internal/service/request"
	sessionService "github.com/mentormatch/backend/internal/service/session"
	userService "github.com/mentormatch/backend/internal/service/user"
	"github.com/mentormatch/backend/pkg/utils"
)

// Dependencies 汇总路由需要的服务。
type Dependencies struct {
	Config     *config.Config
	Tokens     *auth.TokenManager
	Users      *userService.Service
	Chat       *chatService.Service
	Requests   *requestService.Service
	Sessions   *sessionService.Service
	Posts      *postService.Service
	Hub        *realtimeCore.Hub
	Dispatcher *realtimeCore.Dispatcher
	Log        *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	userHandler := user.New(deps.Users, deps.Hub, deps.Log)
	chatHandler := chat.New(deps.Chat, deps.Hub, deps.Log)
	requestHandler := request.New(deps.Requests, deps.Log)
	sessionHandler := session.New(deps.Sessions, deps.Log)
	postHandler := post.New(deps.Posts, deps.Log)
	realtimeHandler := realtime.New(deps.Dispatcher, deps.Tokens, realtime.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     cfg.Realtime.SendBuffer,
		// largest encoded attachment plus the envelope around it
		MaxMessageBytes: int64(cfg.Chat.MaxFileBytes) + 64<<10,
	}, deps.Log)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		userHandler.RegisterRoutes(api)
		realtimeHandler.RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middlewarePkg.Auth(deps.Tokens))
			userHandler.RegisterProtectedRoutes(protected)
			chatHandler.RegisterRoutes(protected)
			requestHandler.RegisterRoutes(protected)
			sessionHandler.RegisterRoutes(protected)
			postHandler.RegisterRoutes(protected)
			realtimeHandler.RegisterProtectedRoutes(protected)
		})
	})

	return r
}
