package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/quotefeed/internal/hub"
	"github.com/rickgao/quotefeed/internal/model"
)

// Conn is one connected realtime subscriber.
type Conn struct {
	id     string
	cfg    Config
	ws     *websocket.Conn
	logger *slog.Logger

	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu         sync.RWMutex
	lastPongAt time.Time
}

// New wraps an upgraded WebSocket. The connection is not serviced until Run.
func New(ws *websocket.Conn, cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}

	id := uuid.NewString()
	return &Conn{
		id:         id,
		cfg:        cfg,
		ws:         ws,
		logger:     logger.With("conn_id", id),
		send:       make(chan []byte, cfg.SendBuffer),
		done:       make(chan struct{}),
		lastPongAt: time.Now(),
	}
}

// ID implements hub.Subscriber.
func (c *Conn) ID() string {
	return c.id
}

// Send implements hub.Subscriber. It never blocks: when the buffer is full
// the message is dropped and ErrSendBufferFull returned.
func (c *Conn) Send(ev model.Event) error {
	select {
	case <-c.done:
		return hub.ErrSubscriberClosed
	default:
	}

	data, err := json.Marshal(NewPriceMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal price message: %w", err)
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run services the connection until the peer goes away, a write fails,
// the connection turns stale, or ctx is cancelled. It always closes the
// connection before returning.
func (c *Conn) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()

	c.readLoop()
	c.Close()
	wg.Wait()
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.ws.Close()
	})
	return err
}

// LastPongAt returns when the peer last answered a ping.
func (c *Conn) LastPongAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPongAt
}

// readLoop discards inbound frames and keeps the read deadline fresh on pong.
func (c *Conn) readLoop() {
	if c.cfg.ReadLimit > 0 {
		c.ws.SetReadLimit(c.cfg.ReadLimit)
	}
	c.extendReadDeadline()

	c.ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPongAt = time.Now()
		c.mu.Unlock()
		c.extendReadDeadline()
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Debug("subscriber read error", "error", err)
				}
			}
			return
		}
	}
}

func (c *Conn) extendReadDeadline() {
	if c.cfg.PongTimeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
}

// writeLoop is the only goroutine writing data frames.
func (c *Conn) writeLoop(ctx context.Context) {
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			return

		case <-ctx.Done():
			c.Close()
			return

		case data := <-c.send:
			c.setWriteDeadline()
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("subscriber write failed", "error", err)
				c.Close()
				return
			}

		case <-ping:
			var deadline time.Time
			if c.cfg.WriteTimeout > 0 {
				deadline = time.Now().Add(c.cfg.WriteTimeout)
			}
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) setWriteDeadline() {
	if c.cfg.WriteTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
}
