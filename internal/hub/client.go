package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		MaxMessageSize: 4096,
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

// Client is one websocket connection. Outbound messages are queued and written by WritePump so a
// slow peer never blocks the goroutine fanning out to it.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	cfg       Config
}

func NewClient(id string, conn *websocket.Conn, cfg Config) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}

	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		closed: make(chan struct{}),
		cfg:    cfg,
	}
}

func (c *Client) ID() string {
	return c.id
}

// enqueue never blocks. It reports false when the queue is full or the client is closed.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the underlying connection. Safe to call repeatedly.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// ReadPump reads messages until the connection fails or ctx is cancelled and passes each one to
// handle on the calling goroutine, so messages from one client are handled in order.
func (c *Client) ReadPump(ctx context.Context, handle func(ctx context.Context, data []byte)) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		// any inbound frame proves the peer is alive
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			return err
		}

		handle(ctx, data)
	}
}

var errClientClosed = errors.New("client closed")

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return err
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return err
			}
		case <-c.closed:
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait),
			)
			return errClientClosed
		}
	}
}
