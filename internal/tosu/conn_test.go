package tosu

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type chanHandler struct {
	connected    chan struct{}
	disconnected chan struct{}
	errs         chan error
	frames       chan []byte
}

func newChanHandler() *chanHandler {
	return &chanHandler{
		connected:    make(chan struct{}, 8),
		disconnected: make(chan struct{}, 8),
		errs:         make(chan error, 8),
		frames:       make(chan []byte, 8),
	}
}

func (h *chanHandler) OnConnected()        { h.connected <- struct{}{} }
func (h *chanHandler) OnDisconnected()     { h.disconnected <- struct{}{} }
func (h *chanHandler) OnError(err error)   { h.errs <- err }
func (h *chanHandler) OnFrame(data []byte) { h.frames <- data }

type fakeTosu struct {
	srv     *httptest.Server
	accepts atomic.Int32
	conns   chan *websocket.Conn
}

func newFakeTosu(t *testing.T) *fakeTosu {
	t.Helper()
	f := &fakeTosu{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.accepts.Add(1)
		f.conns <- conn
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTosu) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestConnDeliversFrames(t *testing.T) {
	f := newFakeTosu(t)
	h := newChanHandler()
	c := NewConn(Options{URL: f.url()}, h)
	t.Cleanup(c.Disconnect)

	c.Connect()
	waitFor(t, h.connected, "connect")
	server := waitFor(t, f.conns, "server conn")
	if !c.IsConnected() {
		t.Fatalf("expected IsConnected after open")
	}

	if err := server.WriteMessage(websocket.TextMessage, []byte(`{"state":{"name":"Menu"}}`)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	frame := waitFor(t, h.frames, "frame")
	if string(frame) != `{"state":{"name":"Menu"}}` {
		t.Fatalf("unexpected frame: %s", frame)
	}
}

func TestConnConnectIsNoOpWhileOpen(t *testing.T) {
	f := newFakeTosu(t)
	h := newChanHandler()
	c := NewConn(Options{URL: f.url()}, h)
	t.Cleanup(c.Disconnect)

	c.Connect()
	c.Connect()
	waitFor(t, h.connected, "connect")
	c.Connect()

	time.Sleep(100 * time.Millisecond)
	if got := f.accepts.Load(); got != 1 {
		t.Fatalf("expected exactly one socket, got %d", got)
	}
}

func TestConnReconnectsAfterServerClose(t *testing.T) {
	f := newFakeTosu(t)
	h := newChanHandler()
	c := NewConn(Options{URL: f.url(), AutoReconnect: true, ReconnectInterval: 50 * time.Millisecond}, h)
	t.Cleanup(c.Disconnect)

	c.Connect()
	waitFor(t, h.connected, "first connect")
	server := waitFor(t, f.conns, "server conn")
	_ = server.Close()

	waitFor(t, h.disconnected, "disconnect")
	waitFor(t, h.connected, "reconnect")
	if got := f.accepts.Load(); got != 2 {
		t.Fatalf("expected two sockets after reconnect, got %d", got)
	}
}

func TestConnNoReconnectWhenDisabled(t *testing.T) {
	f := newFakeTosu(t)
	h := newChanHandler()
	c := NewConn(Options{URL: f.url(), AutoReconnect: false, ReconnectInterval: 20 * time.Millisecond}, h)
	t.Cleanup(c.Disconnect)

	c.Connect()
	waitFor(t, h.connected, "connect")
	server := waitFor(t, f.conns, "server conn")
	_ = server.Close()
	waitFor(t, h.disconnected, "disconnect")

	time.Sleep(150 * time.Millisecond)
	if c.reconnectPending() || c.IsConnected() {
		t.Fatalf("expected no reconnect when auto-reconnect is off")
	}
}

func TestConnDialErrorSchedulesSingleRetry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	h := newChanHandler()
	c := NewConn(Options{URL: "ws://" + addr, AutoReconnect: true, ReconnectInterval: time.Hour}, h)
	t.Cleanup(c.Disconnect)

	c.Connect()
	waitFor(t, h.errs, "dial error")
	if !c.reconnectPending() {
		t.Fatalf("expected a reconnect to be scheduled after dial failure")
	}

	c.Disconnect()
	if c.reconnectPending() {
		t.Fatalf("expected Disconnect to cancel the pending reconnect")
	}
}

func TestConnDisconnectNotifiesOnce(t *testing.T) {
	f := newFakeTosu(t)
	h := newChanHandler()
	c := NewConn(Options{URL: f.url(), AutoReconnect: true, ReconnectInterval: 20 * time.Millisecond}, h)

	c.Connect()
	waitFor(t, h.connected, "connect")
	c.Disconnect()
	waitFor(t, h.disconnected, "disconnect")

	time.Sleep(150 * time.Millisecond)
	select {
	case <-h.disconnected:
		t.Fatalf("expected a single disconnect notification")
	case <-h.connected:
		t.Fatalf("expected no reconnect after manual disconnect")
	default:
	}
	if c.IsConnected() {
		t.Fatalf("expected closed connection")
	}
}
