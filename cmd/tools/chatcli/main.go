package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/mentormatch/backend/internal/realtime"
)

// chatcli 登录后建立 websocket 连接，发送一条消息并打印收到的事件，用于手工联调。
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	base := flag.String("base", envOr("CHATCLI_BASE", "http://localhost:8080"), "API 根地址")
	email := flag.String("email", os.Getenv("CHATCLI_EMAIL"), "登录邮箱")
	password := flag.String("password", os.Getenv("CHATCLI_PASSWORD"), "登录密码")
	to := flag.String("to", "", "接收者用户 ID，留空则只监听")
	text := flag.String("text", "hello from chatcli", "发送的文本内容")
	timeout := flag.Duration("timeout", 15*time.Second, "监听时长")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("请通过 -email 和 -password 指定账号")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	baseURL := strings.TrimRight(*base, "/")
	session, err := login(ctx, baseURL, *email, *password)
	if err != nil {
		log.Fatalf("登录失败: %v", err)
	}
	log.Printf("[INFO] 已登录 user=%s role=%s", session.User.ID, session.User.Role)

	ticket, err := fetchTicket(ctx, baseURL, session.Token)
	if err != nil {
		log.Fatalf("获取实时票据失败: %v", err)
	}

	conn, err := dial(ctx, baseURL)
	if err != nil {
		log.Fatalf("websocket 连接失败: %v", err)
	}
	defer conn.Close()

	if err := writeEvent(conn, realtime.EventJoinRoom, realtime.JoinRoom{UserID: session.User.ID, Token: ticket}); err != nil {
		log.Fatalf("join_room 发送失败: %v", err)
	}

	if *to != "" {
		msg := realtime.SendMessage{
			ClientID: uuid.NewString(),
			Sender:   session.User.ID,
			Receiver: *to,
			Content:  *text,
		}
		if err := writeEvent(conn, realtime.EventSendMessage, msg); err != nil {
			log.Fatalf("send_message 发送失败: %v", err)
		}
		log.Printf("[INFO] 已发送 clientId=%s", msg.ClientID)
	}

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[WARN] 连接中断: %v", err)
			}
			return
		}
		var env realtime.Inbound
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[WARN] 无法解析帧: %s", data)
			continue
		}
		fmt.Printf("%s %-16s %s\n", time.Now().Format("15:04:05.000"), env.Event, env.Data)
	}
}

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func login(ctx context.Context, base, email, password string) (sessionResponse, error) {
	var session sessionResponse
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	err := postJSON(ctx, base+"/api/auth/login", "", body, &session)
	return session, err
}

func fetchTicket(ctx context.Context, base, token string) (string, error) {
	var ticket struct {
		Token string `json:"token"`
	}
	if err := postJSON(ctx, base+"/api/realtime/ticket", token, nil, &ticket); err != nil {
		return "", err
	}
	return ticket.Token, nil
}

func postJSON(ctx context.Context, endpoint, token string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, apiErr.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func dial(ctx context.Context, base string) (*websocket.Conn, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func writeEvent(conn *websocket.Conn, event string, data any) error {
	return conn.WriteJSON(realtime.Envelope{Event: event, Data: data})
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
