package post

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mentormatch/backend/internal/model/post"
	"github.com/mentormatch/backend/internal/model/user"
)

type directory map[string]user.User

func (d directory) Summaries(_ context.Context, ids ...string) (map[string]user.Summary, error) {
	out := make(map[string]user.Summary, len(ids))
	for _, id := range ids {
		out[id] = d[id].Summary()
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(post.NewMemoryStore(), directory{
		"a": {ID: "a", Name: "Ada"},
		"b": {ID: "b", Name: "Bob"},
	}, nil)
}

func TestCreateDefaultsCategory(t *testing.T) {
	svc := newTestService()
	view, err := svc.Create(context.Background(), "a", Draft{Title: " Hello ", Content: "first post", Tags: []string{" go ", ""}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Category != post.CategoryGeneral || view.Title != "Hello" || view.Author.Name != "Ada" {
		t.Fatalf("unexpected post %+v", view)
	}
	if len(view.Tags) != 1 || view.Tags[0] != "go" || view.Likes == nil || view.Comments == nil {
		t.Fatalf("unexpected collections %+v", view)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	cases := []Draft{
		{Content: "no title"},
		{Title: "no content"},
		{Title: "t", Content: "c", Category: "gossip"},
		{Title: strings.Repeat("x", maxTitleRunes+1), Content: "c"},
		{Title: "t", Content: "c", Tags: strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")},
	}
	for i, d := range cases {
		if _, err := svc.Create(ctx, "a", d); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestCommentsAndLikes(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, _ := svc.Create(ctx, "a", Draft{Title: "t", Content: "c", Category: post.CategoryCareer})

	svc.Comment(ctx, created.ID, "b", "nice")
	comments, err := svc.Comment(ctx, created.ID, "a", "thanks")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if len(comments) != 2 || comments[0].Content != "thanks" || comments[1].Author.Name != "Bob" {
		t.Fatalf("unexpected comments %+v", comments)
	}
	if _, err := svc.Comment(ctx, created.ID, "a", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Comment(ctx, "missing", "a", "hi"); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	likes, _ := svc.Like(ctx, created.ID, "b")
	if len(likes) != 1 || likes[0] != "b" {
		t.Fatalf("expected [b], got %v", likes)
	}
	likes, _ = svc.Like(ctx, created.ID, "b")
	if len(likes) != 0 {
		t.Fatalf("second like must undo the first, got %v", likes)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil || len(got.Comments) != 2 || got.Comments[0].Author.Name != "Ada" {
		t.Fatalf("unexpected post %+v (%v)", got, err)
	}
}
