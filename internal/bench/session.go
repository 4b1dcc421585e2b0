// Package bench runs one operator session against the rig: it owns the
// telemetry buffer, chart and control panel and serializes every mutation
// of them onto a single dispatcher goroutine.
package bench

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/benchctl/internal/archive"
	"codeberg.org/mutker/benchctl/internal/chart"
	"codeberg.org/mutker/benchctl/internal/connection"
	"codeberg.org/mutker/benchctl/internal/control"
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/export"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
	"codeberg.org/mutker/benchctl/internal/telemetry"
)

const stopOnShutdownTimeout = 2 * time.Second

type Option func(*Session)

// WithLogger sets the logger used by the session.
func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithClock replaces time.Now for start timestamps and reports.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithArchive records every completed run in rec.
func WithArchive(rec archive.Recorder) Option {
	return func(s *Session) {
		s.archive = rec
	}
}

type request struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// Session wires a connection, telemetry buffer, chart adapter, control
// panel and exporter together. Operator methods may be called from any
// goroutine once Run has been started.
type Session struct {
	cfg      Config
	conn     *connection.Connection
	buffer   *telemetry.Buffer
	chart    *chart.Adapter
	panel    *control.Panel
	exporter *export.Exporter
	archive  archive.Recorder
	log      logger.Logger
	clock    func() time.Time

	events   chan connection.Event
	requests chan request
	reports  chan Report

	runOnce sync.Once
	stopped chan struct{}

	// Dispatcher-owned
	started     model.StartCommand
	lastExport  string
	lastSession string
}

// New assembles a session around conn. The connection is opened by Run.
func New(cfg Config, conn *connection.Connection, exporter *export.Exporter, opts ...Option) (*Session, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conn == nil || exporter == nil {
		return nil, errFactory.WithData(ErrInvalidConfig, "connection and exporter are required")
	}

	s := &Session{
		cfg:      cfg,
		conn:     conn,
		exporter: exporter,
		log:      logger.Nop(),
		clock:    time.Now,
		events:   make(chan connection.Event, cfg.EventBuffer),
		requests: make(chan request),
		reports:  make(chan Report, cfg.ReportBuffer),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.archive == nil {
		s.archive = archive.NewNoop()
	}

	buffer, err := telemetry.NewBuffer(telemetry.Config{WindowSize: cfg.WindowSize})
	if err != nil {
		return nil, err
	}
	s.buffer = buffer
	s.chart = chart.NewAdapter(cfg.WindowSize, chart.LabelerFor(cfg.LabelMode))
	s.buffer.Observe(s.chart)
	s.panel = control.NewPanel(conn,
		control.WithClock(func() time.Time { return s.clock() }),
		control.WithLogger(s.log))

	return s, nil
}

// Chart returns the chart adapter. Its series may be read from any
// goroutine.
func (s *Session) Chart() *chart.Adapter {
	return s.chart
}

// Reports delivers recoverable failures meant for the operator.
func (s *Session) Reports() <-chan Report {
	return s.reports
}

// Panel exposes the UI state for observers.
func (s *Session) Panel() *control.Panel {
	return s.panel
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

// Run opens the connection and dispatches inbound events and operator
// requests until ctx is cancelled. The connection is closed on return.
// Run may only be called once.
func (s *Session) Run(ctx context.Context) error {
	errFactory := errors.New()

	first := false
	s.runOnce.Do(func() { first = true })
	if !first {
		return errFactory.New(ErrAlreadyStarted)
	}

	defer close(s.stopped)
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close connection")
		}
	}()

	if err := s.conn.Open(ctx, s.enqueue); err != nil {
		s.report(err, "Could not connect to controller")
		return err
	}

	s.log.Info().
		Str("endpoint", s.conn.Endpoint()).
		Int("window_size", s.cfg.WindowSize).
		Msg("Session started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case req := <-s.requests:
			req.reply <- req.fn(ctx)
		}
	}
}

// enqueue runs on the read pump. It blocks while the queue is full so a
// burst is slowed down rather than dropped.
func (s *Session) enqueue(ev connection.Event) {
	select {
	case s.events <- ev:
	case <-s.stopped:
	}
}

func (s *Session) handleEvent(ctx context.Context, ev connection.Event) {
	switch ev.Kind {
	case connection.EventFrame:
		s.buffer.Ingest(ev.Frame)
	case connection.EventCompletion:
		s.complete(ctx)
	case connection.EventParseError:
		s.report(ev.Err, "Ignored unrecognized message")
	case connection.EventTransportError:
		s.report(ev.Err, "Lost connection to controller")
	}
}

// complete finalizes the run: the log is exported exactly once, archived,
// and the panel returns to Idle.
func (s *Session) complete(ctx context.Context) {
	log := s.buffer.IngestCompletion()
	finished := s.clock()

	name, err := s.exporter.Export(ctx, log, s.panel.FileName())
	if err != nil {
		s.report(err, "Export of finished run failed")
	} else {
		s.lastExport = name
	}

	if len(log) > 0 {
		id, err := s.archive.Record(ctx, &archive.Session{
			StartedAt:    s.started.Timestamp,
			FinishedAt:   finished,
			Command:      s.started,
			FileName:     name,
			Measurements: log,
		})
		if err != nil {
			s.report(err, "Archiving finished run failed")
		} else if id != "" {
			s.lastSession = id
		}
	}

	s.panel.Complete()
	s.log.Info().Int("records", len(log)).Msg("Benchmark finished")
}

func (s *Session) shutdown() {
	if s.panel.State() != control.Running {
		return
	}

	// Leave the motors stopped when the operator goes away mid-run.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.panel.RequestStop(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop rig on shutdown")
		}
	}()

	select {
	case <-done:
	case <-time.After(stopOnShutdownTimeout):
		s.log.Warn().Msg("Timed out stopping rig on shutdown")
	}
}

// do runs fn on the dispatcher goroutine and returns its error.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	errFactory := errors.New()
	req := request{fn: fn, reply: make(chan error, 1)}

	select {
	case s.requests <- req:
	case <-s.stopped:
		return errFactory.New(ErrSessionStopped)
	case <-ctx.Done():
		return errFactory.Wrap(ErrTimeout, ctx.Err())
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return errFactory.Wrap(ErrTimeout, ctx.Err())
	}
}

// Start sends a start command built from the current setpoints. A new run
// begins with an empty window and session log.
func (s *Session) Start(ctx context.Context) (model.StartCommand, error) {
	var cmd model.StartCommand

	err := s.do(ctx, func(context.Context) error {
		c, err := s.panel.RequestStart()
		if err != nil {
			s.report(err, "Start rejected")
			return err
		}

		s.buffer.Reset()
		s.started = c
		cmd = c

		return nil
	})

	return cmd, err
}

// Stop sends a stop command. The panel returns to Idle even when the
// command could not be delivered. The session log is kept for a manual
// export.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, func(context.Context) error {
		if err := s.panel.RequestStop(); err != nil {
			s.report(err, "Stop not delivered")
			return err
		}
		return nil
	})
}

// SetMotorSpeeds updates both motor setpoints, clamped to the valid range.
func (s *Session) SetMotorSpeeds(ctx context.Context, motor1, motor2 int) error {
	return s.do(ctx, func(context.Context) error {
		s.panel.SetMotorSpeeds(motor1, motor2)
		return nil
	})
}

// SetDuration updates the benchmark duration in seconds.
func (s *Session) SetDuration(ctx context.Context, seconds float64) error {
	return s.do(ctx, func(context.Context) error {
		return s.panel.SetDuration(seconds)
	})
}

// SetTargetWattage updates the power target; zero disables it.
func (s *Session) SetTargetWattage(ctx context.Context, watts float64) error {
	return s.do(ctx, func(context.Context) error {
		return s.panel.SetTargetWattage(watts)
	})
}

// SetFileName updates the export file name.
func (s *Session) SetFileName(ctx context.Context, name string) error {
	return s.do(ctx, func(context.Context) error {
		s.panel.SetFileName(name)
		return nil
	})
}

// Export writes the current session log without finalizing it and
// returns the saved file name.
func (s *Session) Export(ctx context.Context) (string, error) {
	var name string

	err := s.do(ctx, func(ctx context.Context) error {
		n, err := s.exporter.Export(ctx, s.buffer.SessionLog(), s.panel.FileName())
		if err != nil {
			s.report(err, "Export failed")
			return err
		}

		s.lastExport = n
		name = n

		return nil
	})

	return name, err
}

// Status returns a snapshot of the session.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status

	err := s.do(ctx, func(context.Context) error {
		st = s.snapshot()
		return nil
	})

	return st, err
}
