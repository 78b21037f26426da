package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mentormatch/backend/internal/model/user"
	"github.com/mentormatch/backend/internal/service/auth"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens, err := auth.NewTokenManager("secret", time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	svc := NewService(user.NewMemoryStore(nil), tokens, nil)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func register(t *testing.T, svc *Service, name, email string, role user.Role, skills ...string) Session {
	t.Helper()
	session, err := svc.Register(context.Background(), Registration{
		Name: name, Email: email, Password: "secret123", Role: role, Skills: skills,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return session
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	session := register(t, svc, "Ada", "Ada@Example.com", user.RoleMentor)
	if session.Token == "" || session.User.Email != "ada@example.com" {
		t.Fatalf("unexpected session %+v", session)
	}

	login, err := svc.Login(context.Background(), "ada@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != session.User.ID {
		t.Fatalf("expected same user id")
	}

	if _, err := svc.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	cases := []Registration{
		{Name: "", Email: "a@b.c", Password: "secret123", Role: user.RoleMentor},
		{Name: "A", Email: "not-an-email", Password: "secret123", Role: user.RoleMentor},
		{Name: "A", Email: "a@b.c", Password: "123", Role: user.RoleMentor},
		{Name: "A", Email: "a@b.c", Password: "secret123", Role: "admin"},
	}
	for _, reg := range cases {
		if _, err := svc.Register(context.Background(), reg); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", reg, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "Ada", "ada@example.com", user.RoleMentor)
	_, err := svc.Register(context.Background(), Registration{
		Name: "Ada 2", Email: "ADA@example.com", Password: "secret123", Role: user.RoleMentee,
	})
	if !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateProfileAndExists(t *testing.T) {
	svc := newTestService(t)
	session := register(t, svc, "Ada", "ada@example.com", user.RoleMentor)

	bio := "Distributed systems"
	updated, err := svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Bio != bio || updated.Name != "Ada" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	empty := " "
	if _, err := svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}

	ok, err := svc.Exists(context.Background(), session.User.ID)
	if err != nil || !ok {
		t.Fatalf("expected user to exist, got %v (%v)", ok, err)
	}
	ok, err = svc.Exists(context.Background(), "ghost")
	if err != nil || ok {
		t.Fatalf("expected ghost to be unknown, got %v (%v)", ok, err)
	}
}

func TestMatchesReturnsCounterpartRole(t *testing.T) {
	svc := newTestService(t)
	mentee := register(t, svc, "Mia", "mia@example.com", user.RoleMentee, "go", "sql")
	register(t, svc, "Sam", "sam@example.com", user.RoleMentor, "go", "sql")
	register(t, svc, "Lee", "lee@example.com", user.RoleMentor, "design")
	register(t, svc, "Kim", "kim@example.com", user.RoleMentee, "go", "sql")

	results, err := svc.Matches(context.Background(), mentee.User.ID)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 mentors, got %d", len(results))
	}
	if results[0].User.Name != "Sam" || results[0].Score != 1 {
		t.Fatalf("expected Sam first with score 1, got %+v", results[0])
	}
}

func TestSummariesKeepUnknownIDs(t *testing.T) {
	svc := newTestService(t)
	ada := register(t, svc, "Ada", "ada@example.com", user.RoleMentor)

	got, err := svc.Summaries(context.Background(), ada.User.ID, "ghost", ada.User.ID, "")
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if s := got[ada.User.ID]; s.Name != "Ada" || s.Role != user.RoleMentor {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s := got["ghost"]; s.ID != "ghost" || s.Name != "" {
		t.Fatalf("unexpected summary for unknown id %+v", s)
	}
}
