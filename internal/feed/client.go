// Package feed reads live executions and book updates from a websocket and hands them
// to the engine as events.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teletha/cointoss-sub007/internal/event"
)

// Client manages one websocket connection: reconnect with backoff, a circuit breaker
// around dialing, read deadlines and serialized writes.
type Client struct {
	url     string
	decoder *Decoder
	sink    chan<- event.Event

	// Subscribe is sent after every successful connect when set.
	Subscribe []byte

	ReadTimeout  time.Duration
	PingInterval time.Duration
	Backoff      Backoff
	Breaker      *Breaker

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	connects atomic.Int64
	dropped  atomic.Int64
}

// NewClient reads from url and delivers decoded events to sink.
func NewClient(url string, decoder *Decoder, sink chan<- event.Event) *Client {
	return &Client{
		url:          url,
		decoder:      decoder,
		sink:         sink,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		Backoff:      DefaultBackoff,
		Breaker:      NewBreaker(DefaultBreakerConfig(url)),
	}
}

// Start initiates the connection loop.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop terminates the client and waits for its goroutines.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.close()
	c.wg.Wait()
}

// Connects counts successful connections.
func (c *Client) Connects() int64 { return c.connects.Load() }

// Dropped counts messages that failed to decode.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

func (c *Client) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if !c.Breaker.Allow() {
			if !sleep(ctx, c.Breaker.Wait()) {
				return
			}
			continue
		}

		if err := c.connect(ctx); err != nil {
			c.Breaker.RecordFailure()
			delay := c.Backoff.Delay(retry)
			slog.Warn("FEED_CONNECT_FAILED", "url", c.url, "err", err, "retry", retry, "delay", delay)
			retry++
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		c.Breaker.RecordSuccess()
		retry = 0
		c.process(ctx)
		if !sleep(ctx, c.Backoff.Base) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if len(c.Subscribe) > 0 {
		if err := c.Write(websocket.TextMessage, c.Subscribe); err != nil {
			c.close()
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	if c.PingInterval > 0 {
		go c.pingLoop(ctx, conn)
	}

	c.connects.Add(1)
	slog.Info("FEED_CONNECTED", "url", c.url)
	return nil
}

func (c *Client) process(ctx context.Context) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("FEED_READ_ERROR", "url", c.url, "err", err)
			}
			c.close()
			return
		}

		ev, err := c.decoder.Decode(msg)
		if err != nil {
			c.dropped.Add(1)
			slog.Warn("FEED_DECODE_ERROR", "err", err)
			continue
		}
		if ev == nil {
			continue
		}

		select {
		case c.sink <- ev:
		case <-ctx.Done():
			c.close()
			return
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return
			}
			if err := c.Write(websocket.PingMessage, nil); err != nil {
				slog.Warn("FEED_PING_ERROR", "url", c.url, "err", err)
				c.close()
				return
			}
		}
	}
}

// Write sends one frame on the current connection.
func (c *Client) Write(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("ws not connected")
	}
	return conn.WriteMessage(msgType, data)
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
