package request

import (
	"context"
	"errors"
	"testing"

	"github.com/mentormatch/backend/internal/model/request"
	"github.com/mentormatch/backend/internal/model/user"
)

type directory map[string]user.User

func (d directory) Get(_ context.Context, id string) (user.User, error) {
	u, ok := d[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (d directory) Summaries(_ context.Context, ids ...string) (map[string]user.Summary, error) {
	out := make(map[string]user.Summary, len(ids))
	for _, id := range ids {
		out[id] = d[id].Summary()
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(request.NewMemoryStore(), directory{
		"mentor": {ID: "mentor", Name: "Grace", Role: user.RoleMentor},
		"mentee": {ID: "mentee", Name: "Linus", Role: user.RoleMentee},
		"other":  {ID: "other", Name: "Ken", Role: user.RoleMentee},
	}, nil)
}

func TestSendRequest(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	view, err := svc.Send(ctx, "mentee", "mentor", "  would love your help  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if view.Status != request.StatusPending || view.Message != "would love your help" {
		t.Fatalf("unexpected request %+v", view)
	}
	if view.Sender.Name != "Linus" || view.Receiver.Name != "Grace" {
		t.Fatalf("expected expanded parties, got %+v", view)
	}

	if _, err := svc.Send(ctx, "mentor", "mentee", ""); !errors.Is(err, request.ErrExists) {
		t.Fatalf("expected ErrExists in the reverse direction, got %v", err)
	}
}

func TestSendRequestValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Send(ctx, "mentee", "mentee", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self request, got %v", err)
	}
	if _, err := svc.Send(ctx, "mentee", " ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty receiver, got %v", err)
	}
	if _, err := svc.Send(ctx, "mentee", "ghost", ""); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected user.ErrNotFound, got %v", err)
	}
}

func TestRespondOnlyByReceiver(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sent, _ := svc.Send(ctx, "mentee", "mentor", "")

	if _, err := svc.Respond(ctx, sent.ID, "mentee", request.StatusAccepted); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for the sender, got %v", err)
	}
	if _, err := svc.Respond(ctx, sent.ID, "mentor", request.StatusPending); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for pending, got %v", err)
	}
	if _, err := svc.Respond(ctx, "missing", "mentor", request.StatusAccepted); !errors.Is(err, request.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if ok, _ := svc.Connected(ctx, "mentor", "mentee"); ok {
		t.Fatalf("pending request must not connect the pair")
	}
	answered, err := svc.Respond(ctx, sent.ID, "mentor", request.StatusAccepted)
	if err != nil || answered.Status != request.StatusAccepted {
		t.Fatalf("expected accepted, got %+v (%v)", answered, err)
	}
	if ok, _ := svc.Connected(ctx, "mentor", "mentee"); !ok {
		t.Fatalf("accepted request must connect the pair")
	}
	if ok, _ := svc.Connected(ctx, "mentor", "other"); ok {
		t.Fatalf("unrelated pair must not be connected")
	}
}

func TestListIncludesBothDirections(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Send(ctx, "mentee", "mentor", "")
	svc.Send(ctx, "mentor", "other", "")

	list, err := svc.List(ctx, "mentor")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 requests, got %d (%v)", len(list), err)
	}
	if list, _ := svc.List(ctx, "mentee"); len(list) != 1 {
		t.Fatalf("expected 1 request for mentee, got %d", len(list))
	}
}
