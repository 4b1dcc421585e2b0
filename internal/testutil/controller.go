// Package testutil provides a fake rig controller for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Timeout bounds every wait in the fake controller.
const Timeout = 2 * time.Second

// Controller is a websocket server standing in for the rig firmware.
type Controller struct {
	URL string

	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan []byte

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewController starts a fake controller; it is shut down when the test ends.
func NewController(t testing.TB) *Controller {
	t.Helper()

	c := &Controller{
		conns:    make(chan *websocket.Conn, 1),
		received: make(chan []byte, 64),
	}
	upgrader := websocket.Upgrader{}

	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.conns <- conn
	}))
	c.URL = "ws" + strings.TrimPrefix(c.srv.URL, "http")

	t.Cleanup(func() {
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
		c.srv.Close()
	})

	return c
}

// Accept waits for the client to connect and starts collecting its messages.
func (c *Controller) Accept(t testing.TB) {
	t.Helper()

	select {
	case conn := <-c.conns:
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		go c.readLoop(conn)
	case <-time.After(Timeout):
		t.Fatal("client did not connect")
	}
}

func (c *Controller) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.received <- msg
	}
}

// SendText pushes a text frame to the client.
func (c *Controller) SendText(t testing.TB, msg string) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		t.Fatal("no client connected")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write to client: %v", err)
	}
}

// SendBinary pushes a binary frame to the client.
func (c *Controller) SendBinary(t testing.TB, msg []byte) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		t.Fatalf("write to client: %v", err)
	}
}

// Receive returns the next message sent by the client.
func (c *Controller) Receive(t testing.TB) []byte {
	t.Helper()

	select {
	case msg := <-c.received:
		return msg
	case <-time.After(Timeout):
		t.Fatal("no message from client")
		return nil
	}
}

// ExpectSilence fails if the client sends anything within d.
func (c *Controller) ExpectSilence(t testing.TB, d time.Duration) {
	t.Helper()

	select {
	case msg := <-c.received:
		t.Fatalf("unexpected message from client: %s", msg)
	case <-time.After(d):
	}
}

// Drop closes the server side of the connection without a close frame.
func (c *Controller) Drop(t testing.TB) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.UnderlyingConn().Close()
	}
}
