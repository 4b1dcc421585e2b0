// Package dashboard serves a read-only view of the running session over
// HTTP: the force chart, its series, the session status and a live feed.
package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/benchctl/internal/bench"
	"codeberg.org/mutker/benchctl/internal/chart"
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	statusTimeout = 2 * time.Second
	feedBuffer    = 16
)

// SeriesSource publishes the chart series.
type SeriesSource interface {
	Series() chart.Series
	ValueAxis() chart.Axis
	LabelAxis() chart.Axis
	Subscribe(fn func(chart.Series)) (unsubscribe func())
}

// StatusSource reports the session status.
type StatusSource interface {
	Status(ctx context.Context) (bench.Status, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server is the dashboard HTTP server.
type Server struct {
	series SeriesSource
	status StatusSource
	log    logger.Logger
	server *http.Server
	ln     net.Listener

	quitOnce sync.Once
	quit     chan struct{}
}

// NewServer creates a dashboard listening on address once started.
func NewServer(address string, series SeriesSource, status StatusSource, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	mux := http.NewServeMux()
	s := &Server{
		series: series,
		status: status,
		log:    log,
		quit:   make(chan struct{}),
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/", s.handleChart)
	mux.HandleFunc("/series", s.handleSeries)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleFeed)

	return s
}

// Handler returns the router, for embedding or testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.New().Wrap(ErrListenFailed, err)
	}
	s.ln = ln

	s.log.Info().Str("address", ln.Addr().String()).Msg("Dashboard listening")
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Dashboard server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.server.Addr
}

// Stop shuts the server down, waiting for in-flight requests until ctx
// expires. Live feeds are closed.
func (s *Server) Stop(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })

	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close()
		return errors.New().Wrap(ErrShutdownFailed, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	subtitle := ""
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()
	if st, err := s.status.Status(ctx); err == nil {
		subtitle = st.State + ", " + st.Connection
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := chart.Render(w, s.series.Series(), s.series.ValueAxis(), s.series.LabelAxis(),
		chart.RenderOptions{Title: "Force", Subtitle: subtitle})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to render chart")
	}
}

type seriesResponse struct {
	chart.Series
	ValueAxis chart.Axis `json:"value_axis"`
	LabelAxis chart.Axis `json:"label_axis"`
}

func (s *Server) handleSeries(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, seriesResponse{
		Series:    s.series.Series(),
		ValueAxis: s.series.ValueAxis(),
		LabelAxis: s.series.LabelAxis(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	st, err := s.status.Status(ctx)
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error_code": string(errors.CodeOf(err)),
			"error":      err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write response")
	}
}

// handleFeed streams every series update to a websocket client.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID := uuid.NewString()
	f := newFeed(feedBuffer)

	// Subscribe before taking the snapshot so no redraw falls between them.
	unsubscribe := s.series.Subscribe(f.offer)
	f.offerLatest(s.series.Series)

	s.log.Debug().Str("client", clientID).Str("remote", r.RemoteAddr).Msg("Feed client connected")

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, f.updates, done)

	unsubscribe()
	s.log.Debug().Str("client", clientID).Msg("Feed client disconnected")
}

// feed queues series updates for one client. When the client falls behind
// the oldest queued series is dropped, so the last one queued is always the
// latest.
type feed struct {
	mu      sync.Mutex
	updates chan chart.Series
}

func newFeed(size int) *feed {
	return &feed{updates: make(chan chart.Series, size)}
}

func (f *feed) offer(series chart.Series) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.push(series)
}

// offerLatest queues the series returned by get. get runs under the feed
// lock so a concurrent offer cannot be overtaken by an older snapshot.
func (f *feed) offerLatest(get func() chart.Series) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.push(get())
}

// push must be called with mu held. The writer only ever removes, so after
// dropping one entry there is room.
func (f *feed) push(series chart.Series) {
	select {
	case f.updates <- series:
		return
	default:
	}

	select {
	case <-f.updates:
	default:
	}
	f.updates <- series
}

// readPump discards client messages and keeps the read deadline fresh.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("Feed read error")
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, updates <-chan chart.Series, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case <-s.quit:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case series := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(series); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
