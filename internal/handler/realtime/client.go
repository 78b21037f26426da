package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// wsClient is the realtime.Sink for one websocket connection. Deliver only
// enqueues; writePump is the single writer on conn.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *zap.Logger
}

func newWSClient(conn *websocket.Conn, buffer int, log *zap.Logger) *wsClient {
	return &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
		log:  log,
	}
}

func (c *wsClient) ID() string { return c.id }

// Deliver queues env without blocking. A full queue drops the envelope.
func (c *wsClient) Deliver(env realtime.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("envelope_encode_failed", zap.String("event", env.Event), zap.Error(err))
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn("outbound_queue_full", zap.String("conn_id", c.id), zap.String("event", env.Event))
		return false
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump 负责写消息与定期 ping，退出时关闭连接。
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write_failed", zap.String("conn_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is already queued before the connection closes.
func (c *wsClient) flush() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
