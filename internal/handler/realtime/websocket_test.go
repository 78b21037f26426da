package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mentormatch/backend/internal/model/chat"
	"github.com/mentormatch/backend/internal/realtime"
	"github.com/mentormatch/backend/internal/service/auth"
	chatservice "github.com/mentormatch/backend/internal/service/chat"
)

type gateway struct {
	srv    *httptest.Server
	chat   *chatservice.Service
	tokens *auth.TokenManager
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	tokens, err := auth.NewTokenManager("secret", time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(nil)
	go hub.Run(ctx)

	chatSvc := chatservice.NewService(chat.NewMemoryStore())
	dispatcher := realtime.NewDispatcher(hub, chatSvc, tokens, realtime.Options{
		RequireToken:  true,
		PresenceScope: realtime.PresenceScopeAll,
		RateRPS:       100,
		RateBurst:     100,
	}, nil)
	handler := New(dispatcher, tokens, Options{AllowedOrigins: []string{"*"}, SendBuffer: 32}, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &gateway{srv: srv, chat: chatSvc, tokens: tokens}
}

func (g *gateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (g *gateway) join(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	ticket, _, err := g.tokens.IssueTicket(userID)
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	conn := g.dial(t)
	send(t, conn, realtime.EventJoinRoom, realtime.JoinRoom{UserID: userID, Token: ticket})
	expect(t, conn, realtime.EventJoined)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(realtime.Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// expect reads frames until one carries event, skipping anything else.
func expect(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var in realtime.Inbound
		if err := conn.ReadJSON(&in); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if in.Event == event {
			return in.Data
		}
	}
}

func TestWebSocketMessageFlow(t *testing.T) {
	g := newGateway(t)
	a := g.join(t, "A")
	b := g.join(t, "B")

	send(t, a, realtime.EventSendMessage, realtime.SendMessage{ClientID: "c-1", Receiver: "B", Content: "hi"})

	var received chat.Message
	json.Unmarshal(expect(t, b, realtime.EventReceiveMessage), &received)
	if received.Sender != "A" || received.Content != "hi" {
		t.Fatalf("unexpected message %+v", received)
	}

	var ack realtime.MessageAck
	json.Unmarshal(expect(t, a, realtime.EventMessageAck), &ack)
	if !ack.OK || ack.ClientID != "c-1" || ack.MessageID != received.ID {
		t.Fatalf("unexpected ack %+v", ack)
	}

	if _, err := g.chat.React(context.Background(), received.ID, "B", "❤️"); err != nil {
		t.Fatalf("react: %v", err)
	}
	send(t, b, realtime.EventMessageReaction, realtime.ReactionNotice{MessageID: received.ID})

	var reaction realtime.ReactionNotice
	json.Unmarshal(expect(t, a, realtime.EventMessageReaction), &reaction)
	if len(reaction.Reactions) != 1 || reaction.Reactions[0] != (chat.Reaction{User: "B", Emoji: "❤️"}) {
		t.Fatalf("unexpected reactions %+v", reaction)
	}

	if _, err := g.chat.Delete(context.Background(), received.ID, "A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	send(t, a, realtime.EventMessageDeleted, realtime.DeletionNotice{MessageID: received.ID, ReceiverID: "B"})

	var deleted realtime.DeletionNotice
	json.Unmarshal(expect(t, b, realtime.EventMessageDeleted), &deleted)
	if deleted.MessageID != received.ID {
		t.Fatalf("unexpected deletion %+v", deleted)
	}
}

func TestWebSocketJoinRequiresTicket(t *testing.T) {
	g := newGateway(t)
	conn := g.dial(t)

	send(t, conn, realtime.EventJoinRoom, "A")
	var notice realtime.ErrorNotice
	json.Unmarshal(expect(t, conn, realtime.EventError), &notice)
	if notice.Event != realtime.EventJoinRoom || notice.Message != "token is required" {
		t.Fatalf("unexpected error %+v", notice)
	}

	ticket, _, _ := g.tokens.IssueTicket("B")
	send(t, conn, realtime.EventJoinRoom, realtime.JoinRoom{UserID: "A", Token: ticket})
	json.Unmarshal(expect(t, conn, realtime.EventError), &notice)
	if notice.Message != "token does not match userId" {
		t.Fatalf("unexpected error %+v", notice)
	}
}

func TestWebSocketDisconnectAnnouncesOffline(t *testing.T) {
	g := newGateway(t)
	a := g.join(t, "A")
	b := g.join(t, "B")

	b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	b.Close()

	for {
		var status realtime.UserStatus
		json.Unmarshal(expect(t, a, realtime.EventUserStatus), &status)
		if status.UserID == "B" && !status.Online {
			return
		}
	}
}
