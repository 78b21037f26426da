package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mentormatch/backend/internal/model/chat"
)

type stubDirectory map[string]bool

func (d stubDirectory) Exists(_ context.Context, id string) (bool, error) {
	return d[id], nil
}

type failingStore struct {
	*chat.MemoryStore
}

func (failingStore) Create(context.Context, chat.Message) error {
	return errors.New("disk full")
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(opts ...Option) (*Service, *chat.MemoryStore) {
	store := chat.NewMemoryStore()
	opts = append([]Option{WithClock(tickingClock())}, opts...)
	return NewService(store, opts...), store
}

func sendText(t *testing.T, svc *Service, from, to, content string) chat.Message {
	t.Helper()
	msg, err := svc.Send(context.Background(), chat.Draft{Sender: from, Receiver: to, Content: content})
	if err != nil {
		t.Fatalf("send %q: %v", content, err)
	}
	return msg
}

func TestSendPersistsWithDefaults(t *testing.T) {
	svc, store := newTestService()
	msg := sendText(t, svc, "A", "B", "hi")

	if msg.ID == "" || msg.Type != chat.TypeText || msg.CreatedAt.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Reactions == nil || len(msg.Reactions) != 0 {
		t.Fatalf("expected empty reactions, got %v", msg.Reactions)
	}
	if _, err := store.Get(context.Background(), msg.ID); err != nil {
		t.Fatalf("expected message to be stored: %v", err)
	}
}

func TestSendRejectsInvalidDrafts(t *testing.T) {
	svc, store := newTestService(WithMaxFileBytes(4))

	if _, err := svc.Send(context.Background(), chat.Draft{Sender: "A", Receiver: "A", Content: "me"}); !errors.Is(err, chat.ErrInvalidMessage) {
		t.Fatalf("expected self message rejected, got %v", err)
	}
	_, err := svc.Send(context.Background(), chat.Draft{Sender: "A", Receiver: "B", Type: chat.TypeImage, FileData: "toolarge"})
	if !errors.Is(err, chat.ErrInvalidMessage) {
		t.Fatalf("expected oversized attachment rejected, got %v", err)
	}

	history, _ := store.Conversation(context.Background(), "A", "B")
	if len(history) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(history))
	}
}

func TestSendRequiresKnownUsers(t *testing.T) {
	svc, _ := newTestService(WithUserDirectory(stubDirectory{"A": true}))
	_, err := svc.Send(context.Background(), chat.Draft{Sender: "A", Receiver: "ghost", Content: "hi"})
	if !errors.Is(err, chat.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestSendReportsStoreFailure(t *testing.T) {
	svc := NewService(failingStore{chat.NewMemoryStore()})
	_, err := svc.Send(context.Background(), chat.Draft{Sender: "A", Receiver: "B", Content: "hi"})
	if err == nil || errors.Is(err, chat.ErrInvalidMessage) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestSendResolvesReplyWithinConversation(t *testing.T) {
	svc, _ := newTestService()
	original := sendText(t, svc, "A", "B", "question?")
	elsewhere := sendText(t, svc, "A", "C", "other")

	reply, err := svc.Send(context.Background(), chat.Draft{Sender: "B", Receiver: "A", Content: "answer", ReplyTo: original.ID})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ReplyTo == nil || reply.ReplyTo.Content != "question?" || reply.ReplyToID != original.ID {
		t.Fatalf("expected reply preview, got %+v", reply.ReplyTo)
	}

	_, err = svc.Send(context.Background(), chat.Draft{Sender: "B", Receiver: "A", Content: "x", ReplyTo: elsewhere.ID})
	if !errors.Is(err, chat.ErrReplyNotFound) {
		t.Fatalf("expected reply to another conversation rejected, got %v", err)
	}
	_, err = svc.Send(context.Background(), chat.Draft{Sender: "B", Receiver: "A", Content: "x", ReplyTo: "missing"})
	if !errors.Is(err, chat.ErrReplyNotFound) {
		t.Fatalf("expected missing reply rejected, got %v", err)
	}
}

func TestHistoryAscendingWithReplies(t *testing.T) {
	svc, _ := newTestService()
	first := sendText(t, svc, "A", "B", "one")
	sendText(t, svc, "B", "A", "two")
	if _, err := svc.Send(context.Background(), chat.Draft{Sender: "A", Receiver: "B", Content: "three", ReplyTo: first.ID}); err != nil {
		t.Fatalf("send reply: %v", err)
	}

	history, err := svc.History(context.Background(), "B", "A")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, want := range []string{"one", "two", "three"} {
		if history[i].Content != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, history[i].Content)
		}
	}
	if history[2].ReplyTo == nil || history[2].ReplyTo.ID != first.ID {
		t.Fatalf("expected resolved reply preview, got %+v", history[2].ReplyTo)
	}

	if _, err := svc.Delete(context.Background(), first.ID, "A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	history, _ = svc.History(context.Background(), "A", "B")
	if history[1].ReplyTo != nil {
		t.Fatalf("expected reply to deleted message to have no preview")
	}
}

func TestReactToggleAndReplace(t *testing.T) {
	svc, _ := newTestService()
	msg := sendText(t, svc, "A", "B", "hi")
	ctx := context.Background()

	reactions, err := svc.React(ctx, msg.ID, "B", "❤️")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(reactions) != 1 || reactions[0] != (chat.Reaction{User: "B", Emoji: "❤️"}) {
		t.Fatalf("unexpected reactions %v", reactions)
	}

	reactions, _ = svc.React(ctx, msg.ID, "B", "👍")
	if len(reactions) != 1 || reactions[0].Emoji != "👍" {
		t.Fatalf("expected replacement, got %v", reactions)
	}

	reactions, _ = svc.React(ctx, msg.ID, "B", "👍")
	if len(reactions) != 0 {
		t.Fatalf("expected toggle off, got %v", reactions)
	}

	if _, err := svc.React(ctx, msg.ID, "C", "👍"); !errors.Is(err, chat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := svc.React(ctx, msg.ID, "B", " "); !errors.Is(err, chat.ErrInvalidReaction) {
		t.Fatalf("expected ErrInvalidReaction, got %v", err)
	}
	if _, err := svc.React(ctx, "missing", "B", "👍"); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestDeleteOnlyBySender(t *testing.T) {
	svc, _ := newTestService()
	msg := sendText(t, svc, "A", "B", "oops")
	ctx := context.Background()

	if _, err := svc.Delete(ctx, msg.ID, "B"); !errors.Is(err, chat.ErrNotSender) {
		t.Fatalf("expected ErrNotSender, got %v", err)
	}
	deleted, err := svc.Delete(ctx, msg.ID, "A")
	if err != nil || deleted.Receiver != "B" {
		t.Fatalf("expected delete to succeed, got %+v (%v)", deleted, err)
	}
	if _, err := svc.Get(ctx, msg.ID); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Fatalf("expected message gone, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	svc, store := newTestService()
	msg := sendText(t, svc, "A", "B", "one")
	sendText(t, svc, "A", "B", "two")

	updated, err := svc.MarkRead(context.Background(), "B", "A")
	if err != nil || updated != 2 {
		t.Fatalf("expected 2 updated, got %d (%v)", updated, err)
	}
	stored, _ := store.Get(context.Background(), msg.ID)
	if !stored.Read {
		t.Fatalf("expected message marked read")
	}
}

func TestConcurrentSendsFromOneSenderAreSerialised(t *testing.T) {
	svc, _ := newTestService()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Send(context.Background(), chat.Draft{Sender: "A", Receiver: "B", Content: "x"}); err != nil {
				t.Errorf("send: %v", err)
			}
		}()
	}
	wg.Wait()

	history, _ := svc.History(context.Background(), "A", "B")
	if len(history) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if !history[i].CreatedAt.After(history[i-1].CreatedAt) {
			t.Fatalf("expected strictly increasing timestamps at %d", i)
		}
	}
	if svc.senders.size() != 0 {
		t.Fatalf("expected sender locks to be released")
	}
}

func TestSendThenHoldsSenderUntilCallbackReturns(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var fanout []string
	record := func(msg chat.Message) {
		mu.Lock()
		defer mu.Unlock()
		fanout = append(fanout, msg.Content)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.SendThen(ctx, chat.Draft{Sender: "A", Receiver: "B", Content: "first"}, func(msg chat.Message) {
			close(entered)
			<-release
			record(msg)
		})
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := svc.SendThen(ctx, chat.Draft{Sender: "A", Receiver: "B", Content: "second"}, record)
		secondDone <- err
	}()

	select {
	case <-secondDone:
		t.Fatalf("second send finished while the first was still fanning out")
	case <-time.After(50 * time.Millisecond):
	}
	if history, _ := store.Conversation(ctx, "A", "B"); len(history) != 1 {
		t.Fatalf("second send persisted early: %d messages", len(history))
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("second: %v", err)
	}

	history, _ := store.Conversation(ctx, "A", "B")
	mu.Lock()
	defer mu.Unlock()
	if len(fanout) != 2 || fanout[0] != history[0].Content || fanout[1] != history[1].Content {
		t.Fatalf("fan-out %v does not follow stored order %s, %s", fanout, history[0].Content, history[1].Content)
	}
}

func TestSendThenSkipsCallbackOnError(t *testing.T) {
	svc := NewService(failingStore{chat.NewMemoryStore()})
	called := false
	_, err := svc.SendThen(context.Background(), chat.Draft{Sender: "A", Receiver: "B", Content: "hi"}, func(chat.Message) {
		called = true
	})
	if err == nil || called {
		t.Fatalf("expected error without callback, got err=%v called=%v", err, called)
	}
}

func TestDeletedRemembersRemovedMessages(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	msg := sendText(t, svc, "A", "B", "gone soon")

	if _, err := svc.Deleted(ctx, msg.ID); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Fatalf("live message must not be reported as deleted, got %v", err)
	}
	if _, err := svc.Delete(ctx, msg.ID, "A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	removed, err := svc.Deleted(ctx, msg.ID)
	if err != nil || removed.Sender != "A" || removed.Receiver != "B" {
		t.Fatalf("expected removed message, got %+v (%v)", removed, err)
	}
	if _, err := svc.Deleted(ctx, "never-existed"); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

type pairTable map[[2]string]bool

func (p pairTable) Connected(_ context.Context, a, b string) (bool, error) {
	return p[[2]string{a, b}] || p[[2]string{b, a}], nil
}

func TestConnectionPolicy(t *testing.T) {
	svc, _ := newTestService(WithConnectionPolicy(pairTable{{"A", "B"}: true}))
	ctx := context.Background()

	if _, err := svc.Send(ctx, chat.Draft{Sender: "B", Receiver: "A", Content: "hi"}); err != nil {
		t.Fatalf("connected pair must be able to chat: %v", err)
	}
	if _, err := svc.Send(ctx, chat.Draft{Sender: "A", Receiver: "C", Content: "hi"}); !errors.Is(err, chat.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
