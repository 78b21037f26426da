package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/config"
	"github.com/mentormatch/backend/internal/handler"
	"github.com/mentormatch/backend/internal/logger"
	chatModel "github.com/mentormatch/backend/internal/model/chat"
	postModel "github.com/mentormatch/backend/internal/model/post"
	requestModel "github.com/mentormatch/backend/internal/model/request"
	sessionModel "github.com/mentormatch/backend/internal/model/session"
	userModel "github.com/mentormatch/backend/internal/model/user"
	"github.com/mentormatch/backend/internal/realtime"
	"github.com/mentormatch/backend/internal/service/auth"
	"github.com/mentormatch/backend/internal/service/chat"
	"github.com/mentormatch/backend/internal/service/post"
	"github.com/mentormatch/backend/internal/service/request"
	"github.com/mentormatch/backend/internal/service/session"
	"github.com/mentormatch/backend/internal/service/user"
	"github.com/mentormatch/backend/internal/storage/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	router, err := buildRouter(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("startup_failed", zap.Error(err))
	}

	zl.Info("config_loaded",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("presence_scope", cfg.Realtime.PresenceScope),
		zap.Bool("require_token", cfg.Realtime.RequireToken),
		zap.Bool("require_connection", cfg.Chat.RequireConnection),
		zap.String("max_file_size", humanize.IBytes(uint64(cfg.Chat.MaxFileBytes))),
	)

	startServer(ctx, cfg.Server, router, zl)
}

// stores groups the persistence backends selected by DB_DRIVER.
type stores struct {
	messages chatModel.Store
	users    userModel.Store
	requests requestModel.Store
	sessions sessionModel.Store
	posts    postModel.Store
}

func openStores(cfg config.DatabaseConfig, zl *zap.Logger) (stores, error) {
	if cfg.Driver == config.DriverMemory {
		zl.Warn("using in-memory storage, data is lost on restart")
		return stores{
			messages: chatModel.NewMemoryStore(),
			users:    userModel.NewMemoryStore(nil),
			requests: requestModel.NewMemoryStore(),
			sessions: sessionModel.NewMemoryStore(),
			posts:    postModel.NewMemoryStore(),
		}, nil
	}

	db, err := sqlstore.Open(cfg.Driver, cfg.DSN, zl.Named("db"))
	if err != nil {
		return stores{}, fmt.Errorf("open database: %w", err)
	}
	return stores{
		messages: sqlstore.NewMessageStore(db),
		users:    sqlstore.NewUserStore(db),
		requests: sqlstore.NewRequestStore(db),
		sessions: sqlstore.NewSessionStore(db),
		posts:    sqlstore.NewPostStore(db),
	}, nil
}

// buildRouter wires storage, services and the realtime hub. The hub runs
// until ctx is cancelled.
func buildRouter(ctx context.Context, cfg *config.Config, zl *zap.Logger) (http.Handler, error) {
	st, err := openStores(cfg.Database, zl)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.TicketTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	userSvc := user.NewService(st.users, tokens, zl.Named("user"))
	requestSvc := request.NewService(st.requests, userSvc, zl.Named("request"))

	chatOpts := []chat.Option{
		chat.WithUserDirectory(userSvc),
		chat.WithMaxFileBytes(cfg.Chat.MaxFileBytes),
		chat.WithLogger(zl.Named("chat")),
	}
	if cfg.Chat.RequireConnection {
		chatOpts = append(chatOpts, chat.WithConnectionPolicy(requestSvc))
	}
	chatSvc := chat.NewService(st.messages, chatOpts...)

	hub := realtime.NewHub(zl.Named("hub"))
	go hub.Run(ctx)

	dispatcher := realtime.NewDispatcher(hub, chatSvc, tokens, realtime.Options{
		RequireToken:  cfg.Realtime.RequireToken,
		PresenceScope: cfg.Realtime.PresenceScope,
		RateRPS:       cfg.Realtime.RateRPS,
		RateBurst:     cfg.Realtime.RateBurst,
	}, zl.Named("dispatcher"))

	return handler.NewRouter(handler.Dependencies{
		Config:     cfg,
		Tokens:     tokens,
		Users:      userSvc,
		Chat:       chatSvc,
		Requests:   requestSvc,
		Sessions:   session.NewService(st.sessions, userSvc, zl.Named("session")),
		Posts:      post.NewService(st.posts, userSvc, zl.Named("post")),
		Hub:        hub,
		Dispatcher: dispatcher,
		Log:        zl,
	}), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, zl *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zl.Info("server_listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		zl.Fatal("server_error", zap.Error(err))
	}
	zl.Info("server_stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
