package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"PlaySync/logger"
	"PlaySync/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

var (
	// ErrConnClosed is returned by Send after the connection is gone.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client has 256 messages queued.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client WebSocket 客户端
type Client struct {
	id   string
	Conn *websocket.Conn
	subs *Subscribers

	mu     sync.Mutex // guards send against close
	send   chan []byte
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, subs *Subscribers) *Client {
	return &Client{
		id:   uuid.NewString(),
		Conn: conn,
		subs: subs,
		send: make(chan []byte, sendBufferSize),
	}
}

// ID 连接标识
func (c *Client) ID() string {
	return c.id
}

// Send queues msg without blocking.
func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 读取消息循环. On exit the client leaves every playlist.
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	metrics.Connections.Inc()
	defer func() {
		n := c.subs.RemoveEverywhere(c)
		c.close()
		c.Conn.Close()
		metrics.Connections.Dec()
		logger.Debug("client disconnected", logger.String("conn", c.id), logger.Int("subscriptions", n))
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.String("conn", c.id))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err), logger.String("conn", c.id))
			continue
		}

		if msg.Type == MsgTypePing {
			if data, err := encode(MsgTypePong, nil); err == nil {
				_ = c.Send(data)
			}
			continue
		}

		_ = handler.Handle(ctx, c, &msg)
	}
}

// WritePump 写入消息循环. Each queued message is its own text frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", logger.ErrorField(err), logger.String("conn", c.id))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
