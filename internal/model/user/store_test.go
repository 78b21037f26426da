package user

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	if err := store.Create(ctx, User{ID: "1", Email: "Ada@Example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, User{ID: "2", Email: "ada@example.com "}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	found, err := store.FindByEmail(ctx, "ADA@example.com")
	if err != nil || found.ID != "1" {
		t.Fatalf("expected user 1, got %+v (%v)", found, err)
	}
}

func TestMemoryStoreListByRole(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore([]User{
		{ID: "m2", Email: "m2@x", Role: RoleMentor, CreatedAt: now.Add(time.Second)},
		{ID: "m1", Email: "m1@x", Role: RoleMentor, CreatedAt: now},
		{ID: "e1", Email: "e1@x", Role: RoleMentee, CreatedAt: now},
	})

	mentors, err := store.ListByRole(context.Background(), RoleMentor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mentors) != 2 || mentors[0].ID != "m1" {
		t.Fatalf("expected [m1 m2], got %+v", mentors)
	}
}

func TestMemoryStoreUpdateUnknown(t *testing.T) {
	store := NewMemoryStore(nil)
	if err := store.Update(context.Background(), User{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileUpdateApply(t *testing.T) {
	u := User{Name: "Old", Skills: []string{"go"}}
	name := "  New  "
	skills := []string{" rust ", "", "go"}
	ProfileUpdate{Name: &name, Skills: &skills}.Apply(&u)

	if u.Name != "New" {
		t.Fatalf("expected trimmed name, got %q", u.Name)
	}
	if len(u.Skills) != 2 || u.Skills[0] != "rust" {
		t.Fatalf("expected cleaned skills, got %v", u.Skills)
	}
}

func TestPublicHidesEmail(t *testing.T) {
	u := User{ID: "1", Email: "a@b", PasswordHash: "hash"}
	if u.Public(false).Email != "" {
		t.Fatalf("expected email hidden")
	}
	if u.Public(true).Email != "a@b" {
		t.Fatalf("expected email for owner")
	}
	if u.Public(false).Skills == nil {
		t.Fatalf("expected non-nil skills slice")
	}
}
