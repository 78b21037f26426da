package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mentormatch/backend/internal/middleware"
	sessionModel "github.com/mentormatch/backend/internal/model/session"
	userModel "github.com/mentormatch/backend/internal/model/user"
	sessionService "github.com/mentormatch/backend/internal/service/session"
)

type directory map[string]userModel.User

func (d directory) Get(_ context.Context, id string) (userModel.User, error) {
	u, ok := d[id]
	if !ok {
		return userModel.User{}, userModel.ErrNotFound
	}
	return u, nil
}

func (d directory) Summaries(_ context.Context, ids ...string) (map[string]userModel.Summary, error) {
	out := make(map[string]userModel.Summary, len(ids))
	for _, id := range ids {
		out[id] = d[id].Summary()
	}
	return out, nil
}

func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithIdentity(r.Context(), r.Header.Get("X-Test-User"), "")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setupRouter() *chi.Mux {
	svc := sessionService.NewService(sessionModel.NewMemoryStore(), directory{
		"M": {ID: "M", Name: "Grace", Role: userModel.RoleMentor},
		"E": {ID: "E", Name: "Linus", Role: userModel.RoleMentee},
		"X": {ID: "X", Name: "Ken", Role: userModel.RoleMentee},
	}, nil)

	r := chi.NewRouter()
	r.Use(asUser)
	New(svc, nil).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSessionBookingFlow(t *testing.T) {
	r := setupRouter()

	resp := do(r, http.MethodPost, "/sessions", "E", map[string]any{
		"mentorId": "M", "menteeId": "E", "date": "2024-07-02T15:00:00Z", "duration": 45, "topic": "resume review",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body)
	}
	var booked sessionService.View
	json.NewDecoder(resp.Body).Decode(&booked)
	if booked.Duration != 45 || booked.Status != sessionModel.StatusScheduled || booked.Mentor.Name != "Grace" {
		t.Fatalf("unexpected session %+v", booked)
	}

	if resp := do(r, http.MethodPut, "/sessions/"+booked.ID, "X", map[string]string{"status": "cancelled"}); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an outsider, got %d", resp.Code)
	}
	resp = do(r, http.MethodPut, "/sessions/"+booked.ID, "M", map[string]string{"meetingLink": "https://meet.example.com/x"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body)
	}

	resp = do(r, http.MethodGet, "/sessions", "E", nil)
	var list []sessionService.View
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 || list[0].MeetingLink != "https://meet.example.com/x" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestSessionErrors(t *testing.T) {
	r := setupRouter()

	if resp := do(r, http.MethodPost, "/sessions", "E", map[string]any{"mentorId": "M", "menteeId": "E"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a date, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPost, "/sessions", "E", map[string]any{"mentorId": "ghost", "menteeId": "E", "date": "2024-07-02T15:00:00Z"}); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown mentor, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPut, "/sessions/missing", "E", map[string]string{"status": "completed"}); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
