package tosu

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReconnectInterval is the fixed delay between reconnect attempts.
const DefaultReconnectInterval = 5 * time.Second

const (
	handshakeTimeout = 10 * time.Second
	closeWriteWait   = time.Second
)

// Handler observes the connection lifecycle and raw frames.
// Methods are called from connection goroutines, never concurrently for one Conn's
// frames, but lifecycle and frame calls may come from different goroutines.
type Handler interface {
	OnConnected()
	OnDisconnected()
	OnError(err error)
	OnFrame(data []byte)
}

// Options configures a Conn.
type Options struct {
	URL               string
	AutoReconnect     bool
	ReconnectInterval time.Duration
	Dialer            *websocket.Dialer
	Logger            *log.Logger
}

// Conn owns the telemetry websocket and reconnects it on failure.
type Conn struct {
	url       string
	reconnect bool
	interval  time.Duration
	dialer    *websocket.Dialer
	logger    *log.Logger
	handler   Handler

	mu         sync.Mutex
	ws         *websocket.Conn
	connecting bool
	cancelDial context.CancelFunc
	timer      *time.Timer
	// gen changes on every Connect and Disconnect; goroutines of an older
	// generation must not touch the current socket.
	gen uint64
}

// NewConn creates a Conn. Nothing is dialed until Connect.
func NewConn(opts Options, handler Handler) *Conn {
	c := &Conn{
		url:       opts.URL,
		reconnect: opts.AutoReconnect,
		interval:  opts.ReconnectInterval,
		dialer:    opts.Dialer,
		logger:    opts.Logger,
		handler:   handler,
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.interval <= 0 {
		c.interval = DefaultReconnectInterval
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Connect opens the socket unless it is already open or being opened.
func (c *Conn) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil || c.connecting {
		return
	}
	c.connecting = true
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	go c.dial(ctx, c.gen)
}

// Disconnect closes the socket and cancels any pending reconnect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	ws := c.ws
	c.ws = nil
	c.connecting = false
	c.gen++
	c.mu.Unlock()

	if ws == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait)); err != nil {
		c.logger.Printf("tosu: close handshake: %v", err)
	}
	if err := ws.Close(); err != nil {
		c.logger.Printf("tosu: close: %v", err)
	}
	c.handler.OnDisconnected()
}

// IsConnected reports whether the socket is open.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

func (c *Conn) dial(ctx context.Context, gen uint64) {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
		return
	}
	c.connecting = false
	c.cancelDial = nil
	if err != nil {
		c.mu.Unlock()
		c.logger.Printf("tosu: connect %s: %v", c.url, err)
		c.handler.OnError(err)
		c.scheduleReconnect(gen)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.logger.Printf("tosu: connected to %s", c.url)
	c.handler.OnConnected()
	c.readLoop(ws, gen)
}

func (c *Conn) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(ws, gen, err)
			return
		}
		c.handler.OnFrame(data)
	}
}

func (c *Conn) handleClose(ws *websocket.Conn, gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.ws != ws {
		// Disconnect already owned this close.
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.mu.Unlock()

	_ = ws.Close()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Printf("tosu: read: %v", err)
		c.handler.OnError(err)
	}
	c.logger.Printf("tosu: connection closed")
	c.handler.OnDisconnected()
	c.scheduleReconnect(gen)
}

func (c *Conn) scheduleReconnect(gen uint64) {
	if !c.reconnect {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Disconnect or a newer Connect ran in between.
		return
	}
	c.stopTimerLocked()
	var t *time.Timer
	t = time.AfterFunc(c.interval, func() {
		c.mu.Lock()
		if c.timer != t {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		c.logger.Printf("tosu: reconnecting")
		c.Connect()
	})
	c.timer = t
}

func (c *Conn) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Conn) reconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
