package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.Secret = "secret"
	cfg.Chat.MaxFileBytes = 1 << 20
	return &cfg
}

func startAPI(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	router, err := buildRouter(ctx, cfg, zap.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("build router: %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		payload = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, srv.URL+path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

type account struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

func signUp(t *testing.T, srv *httptest.Server, name, role string) account {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": strings.ToLower(name) + "@example.com", "password": "secret123", "role": role,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: %d %s", name, status, body)
	}
	var acc account
	json.Unmarshal(body, &acc)
	return acc
}

func TestBuildRouterServesAPI(t *testing.T) {
	srv := startAPI(t, testConfig())

	if status, _ := call(t, srv, http.MethodGet, "/healthz", "", nil); status != http.StatusOK {
		t.Fatalf("healthz: %d", status)
	}

	mentor := signUp(t, srv, "Grace", "mentor")
	mentee := signUp(t, srv, "Linus", "mentee")

	status, body := call(t, srv, http.MethodPost, "/api/messages", mentee.Token, map[string]string{"receiver": mentor.User.ID, "content": "hello"})
	if status != http.StatusCreated {
		t.Fatalf("send: %d %s", status, body)
	}
	if status, body := call(t, srv, http.MethodPost, "/api/requests", mentee.Token, map[string]string{"receiverId": mentor.User.ID}); status != http.StatusCreated {
		t.Fatalf("request: %d %s", status, body)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/posts", mentor.Token, nil); status != http.StatusOK {
		t.Fatalf("posts: %d", status)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/sessions", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", status)
	}
}

func TestBuildRouterEnforcesConnectionPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.RequireConnection = true
	srv := startAPI(t, cfg)

	mentor := signUp(t, srv, "Grace", "mentor")
	mentee := signUp(t, srv, "Linus", "mentee")
	msg := map[string]string{"receiver": mentor.User.ID, "content": "hello"}

	if status, _ := call(t, srv, http.MethodPost, "/api/messages", mentee.Token, msg); status != http.StatusForbidden {
		t.Fatalf("expected 403 before the request is accepted, got %d", status)
	}

	_, body := call(t, srv, http.MethodPost, "/api/requests", mentee.Token, map[string]string{"receiverId": mentor.User.ID})
	var req struct {
		ID string `json:"id"`
	}
	json.Unmarshal(body, &req)
	if status, body := call(t, srv, http.MethodPut, "/api/requests/"+req.ID, mentor.Token, map[string]string{"status": "accepted"}); status != http.StatusOK {
		t.Fatalf("accept: %d %s", status, body)
	}

	if status, body := call(t, srv, http.MethodPost, "/api/messages", mentee.Token, msg); status != http.StatusCreated {
		t.Fatalf("expected 201 once connected, got %d %s", status, body)
	}
}

func TestOpenStoresSQLite(t *testing.T) {
	st, err := openStores(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if st.messages == nil || st.users == nil || st.requests == nil || st.sessions == nil || st.posts == nil {
		t.Fatalf("expected every store to be set, got %+v", st)
	}
}
