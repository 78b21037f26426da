package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreListForByDate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	store.Create(ctx, Session{ID: "later", Mentor: "m", Mentee: "e", Date: day.Add(48 * time.Hour)})
	store.Create(ctx, Session{ID: "sooner", Mentor: "m", Mentee: "x", Date: day})
	store.Create(ctx, Session{ID: "unrelated", Mentor: "y", Mentee: "x", Date: day})

	list, err := store.ListFor(ctx, "m")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "sooner" || list[1].ID != "later" {
		t.Fatalf("expected [sooner later], got %+v", list)
	}
}

func TestMemoryStoreUpdateUnknown(t *testing.T) {
	if err := NewMemoryStore().Update(context.Background(), Session{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusCompleted, StatusCancelled} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Status("pending").Valid() {
		t.Fatalf("pending is not a session status")
	}
}
