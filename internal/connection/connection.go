// Package connection owns the websocket to the rig controller: its
// lifecycle state, inbound decoding and outbound command serialization.
package connection

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
	"codeberg.org/mutker/benchctl/internal/state"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 5 * time.Second
	maxMessageSize   = 64 * 1024
)

// State is the lifecycle state of the connection.
type State int

const (
	Connecting State = iota
	Open
	Errored
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Errored:
		return "errored"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind tells connection events apart.
type EventKind int

const (
	EventFrame EventKind = iota
	EventCompletion
	EventParseError
	EventTransportError
)

// Event is a transport event translated into the rig's domain.
type Event struct {
	Kind  EventKind
	Frame model.Frame
	Err   error
}

// Handler receives events from the read pump goroutine, in arrival order.
type Handler func(Event)

type Option func(*Connection)

// WithLogger sets the logger used by the connection.
func WithLogger(log logger.Logger) Option {
	return func(c *Connection) {
		c.log = log
	}
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Connection) {
		c.dialer = d
	}
}

// WithWriteWait bounds how long a single command write may take.
func WithWriteWait(d time.Duration) Option {
	return func(c *Connection) {
		c.writeWait = d
	}
}

// Connection is a single, non-reconnecting websocket to the controller.
type Connection struct {
	endpoint  string
	dialer    *websocket.Dialer
	log       logger.Logger
	writeWait time.Duration
	state     *state.Cell[State]

	mu     sync.Mutex // guards conn, opened and writes
	conn   *websocket.Conn
	opened bool

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// New returns an unopened connection to endpoint.
func New(endpoint string, opts ...Option) *Connection {
	c := &Connection{
		endpoint:  endpoint,
		dialer:    websocket.DefaultDialer,
		log:       logger.Nop(),
		writeWait: defaultWriteWait,
		state:     state.NewCell(Connecting),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the controller URL.
func (c *Connection) Endpoint() string {
	return c.endpoint
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return c.state.Get()
}

// StateView exposes the lifecycle state for observers.
func (c *Connection) StateView() state.View[State] {
	return c.state
}

// Done is closed once the read pump has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Open dials the controller and starts delivering events to handler.
// A failed dial leaves the connection Closed; it is never retried.
func (c *Connection) Open(ctx context.Context, handler Handler) error {
	errFactory := errors.New()

	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		return errFactory.New(ErrAlreadyOpened)
	}
	c.opened = true
	c.mu.Unlock()

	c.log.Info().Str("endpoint", c.endpoint).Msg("Connecting to controller")

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		transportErr := errFactory.Wrap(ErrTransport, err)
		c.log.ErrorWithCode(transportErr).Str("endpoint", c.endpoint).Msg("Failed to connect")
		select {
		case <-c.closing:
		default:
			c.state.Set(Errored)
		}
		close(c.done)
		c.Close()
		return transportErr
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	select {
	case <-c.closing:
		// Close raced with the dial; release the socket we just got.
		c.mu.Unlock()
		conn.Close()
		close(c.done)
		return errFactory.New(ErrNotConnected)
	default:
	}
	c.conn = conn
	c.state.Set(Open)
	c.mu.Unlock()

	c.log.Info().Str("endpoint", c.endpoint).Msg("Connection opened")

	go c.readPump(conn, handler)

	return nil
}

func (c *Connection) readPump(conn *websocket.Conn, handler Handler) {
	defer close(c.done)
	errFactory := errors.New()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
				return
			default:
			}

			transportErr := errFactory.Wrap(ErrTransport, err)
			c.log.ErrorWithCode(transportErr).Msg("Connection lost")
			c.state.Set(Errored)
			handler(Event{Kind: EventTransportError, Err: transportErr})
			c.Close()
			return
		}

		if msgType != websocket.TextMessage {
			parseErr := errFactory.WithData(ErrParse, "binary frame")
			c.log.Warn().Err(parseErr).Int("bytes", len(msg)).Msg("Ignoring message")
			handler(Event{Kind: EventParseError, Err: parseErr})
			continue
		}

		in, err := Decode(msg)
		if err != nil {
			c.log.Warn().Err(err).Msg("Ignoring message")
			handler(Event{Kind: EventParseError, Err: err})
			continue
		}

		switch in.Kind {
		case KindCompletion:
			c.log.Info().Msg("Controller reported benchmark finished")
			handler(Event{Kind: EventCompletion})
		default:
			handler(Event{Kind: EventFrame, Frame: in.Frame})
		}
	}
}

// Send serializes cmd and writes it to the controller. It fails with
// ErrNotConnected unless the connection is Open.
func (c *Connection) Send(cmd model.Command) error {
	errFactory := errors.New()

	if c.state.Get() != Open {
		return errFactory.New(ErrNotConnected)
	}

	payload, err := Encode(cmd)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errFactory.New(ErrNotConnected)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return errFactory.Wrap(ErrTransport, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errFactory.Wrap(ErrTransport, err)
	}

	c.log.Debug().Str("command", cmd.Name()).RawJSON("payload", payload).Msg("Command sent")

	return nil
}

// Close releases the socket. It is safe to call more than once and from
// any goroutine; only the first call has an effect.
func (c *Connection) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.closing)

		c.mu.Lock()
		conn := c.conn
		if !c.opened {
			// Never opened: there is no read pump to wait for.
			c.opened = true
			close(c.done)
		}
		c.state.Set(Closed)
		c.mu.Unlock()

		if conn != nil {
			// Best effort: the peer may already be gone.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeWait))
			if cerr := conn.Close(); cerr != nil {
				err = errors.New().Wrap(ErrCloseFailed, cerr)
			}
		}

		c.log.Info().Msg("Connection closed")
	})

	return err
}
