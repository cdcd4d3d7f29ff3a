package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by Send after Close.
var ErrConnClosed = errors.New("multiplayer: connection closed")

// ConnConfig holds websocket timeouts.
type ConnConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout bounds the silence allowed from the server. Pings are sent
	// at half this interval so an idle but healthy channel stays open. Zero
	// disables both.
	ReadTimeout time.Duration
}

// DefaultConnConfig returns sensible defaults
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

// Conn is a text websocket to the game server. Send is safe for concurrent
// use; ReadLoop must have a single caller.
type Conn struct {
	ws  *websocket.Conn
	cfg ConnConfig

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to url.
func Dial(ctx context.Context, url string, cfg ConnConfig) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewConn(ws, cfg), nil
}

// NewConn wraps an established websocket.
func NewConn(ws *websocket.Conn, cfg ConnConfig) *Conn {
	return &Conn{
		ws:     ws,
		cfg:    cfg,
		closed: make(chan struct{}),
	}
}

// Send writes one text message.
func (c *Conn) Send(msg string) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("write %q: %w", msg, err)
	}
	return nil
}

// ReadLoop calls fn for every text message until the context is cancelled,
// the server closes the socket, or a read fails. A normal close returns nil.
func (c *Conn) ReadLoop(ctx context.Context, fn func(string)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	if c.cfg.ReadTimeout > 0 {
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		})
		go c.pingLoop(stop)
	}

	for {
		if c.cfg.ReadTimeout > 0 {
			c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			select {
			case <-c.closed:
				return ErrConnClosed
			default:
			}
			return fmt.Errorf("read error: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		fn(string(data))
	}
}

func (c *Conn) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.ReadTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait()))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Conn) writeWait() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return 5 * time.Second
}

// Close sends a close frame and releases the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
