// Package control holds the operator's setpoints and run state and turns
// them into outbound commands.
package control

import (
	"math"
	"strings"
	"time"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
	"codeberg.org/mutker/benchctl/internal/state"
)

const DefaultFileName = "data"

// UIState mirrors whether a benchmark is in flight.
type UIState int

const (
	Idle UIState = iota
	Running
)

func (s UIState) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Sender transmits commands to the controller.
type Sender interface {
	Send(cmd model.Command) error
}

// Setpoints are the operator-adjustable values sent with a start command.
type Setpoints struct {
	Motor1Speed   int
	Motor2Speed   int
	Duration      int
	TargetWattage float64
	FileName      string
}

type Option func(*Panel)

// WithClock replaces time.Now as the source of start timestamps.
func WithClock(clock func() time.Time) Option {
	return func(p *Panel) {
		p.clock = clock
	}
}

// WithLogger sets the logger used by the panel.
func WithLogger(log logger.Logger) Option {
	return func(p *Panel) {
		p.log = log
	}
}

// Panel is owned by a single goroutine; it is not safe for concurrent use.
// Its UI state cell may be read from anywhere.
type Panel struct {
	sender  Sender
	clock   func() time.Time
	log     logger.Logger
	points  Setpoints
	uiState *state.Cell[UIState]
}

// NewPanel returns an idle panel sending through sender.
func NewPanel(sender Sender, opts ...Option) *Panel {
	p := &Panel{
		sender:  sender,
		clock:   time.Now,
		log:     logger.Nop(),
		points:  Setpoints{FileName: DefaultFileName},
		uiState: state.NewCell(Idle),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetMotorSpeeds stores both motor setpoints, clamped to the range the
// controller accepts.
func (p *Panel) SetMotorSpeeds(motor1, motor2 int) {
	p.points.Motor1Speed = clampSpeed(motor1)
	p.points.Motor2Speed = clampSpeed(motor2)
}

// SetDuration stores the benchmark duration in whole seconds. Fractions
// are rounded to the nearest second and negative values become zero.
func (p *Panel) SetDuration(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return errors.New().WithData(ErrInvalidSetting, "duration must be a finite number")
	}

	d := int(math.Round(seconds))
	if d < 0 {
		d = 0
	}
	p.points.Duration = d

	return nil
}

// SetTargetWattage stores the power target; zero or less disables it.
func (p *Panel) SetTargetWattage(watts float64) error {
	if math.IsNaN(watts) || math.IsInf(watts, 0) {
		return errors.New().WithData(ErrInvalidSetting, "target wattage must be a finite number")
	}

	p.points.TargetWattage = max(watts, 0)

	return nil
}

// SetFileName stores the export file name; blank restores the default.
func (p *Panel) SetFileName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultFileName
	}
	p.points.FileName = name
}

// Setpoints returns the current setpoints.
func (p *Panel) Setpoints() Setpoints {
	return p.points
}

// FileName returns the export file name.
func (p *Panel) FileName() string {
	return p.points.FileName
}

// State returns the current UI state.
func (p *Panel) State() UIState {
	return p.uiState.Get()
}

// StateView exposes the UI state for the presentation layer.
func (p *Panel) StateView() state.View[UIState] {
	return p.uiState
}

// RequestStart sends a start command built from the current setpoints and
// marks the panel Running. It fails with ErrAlreadyRunning while a run is
// in flight; if the send fails the panel stays Idle.
func (p *Panel) RequestStart() (model.StartCommand, error) {
	errFactory := errors.New()

	if p.uiState.Get() == Running {
		return model.StartCommand{}, errFactory.New(ErrAlreadyRunning)
	}

	cmd := model.StartCommand{
		Motor1Speed:       p.points.Motor1Speed,
		Motor2Speed:       p.points.Motor2Speed,
		BenchmarkDuration: p.points.Duration,
		Timestamp:         p.clock(),
	}
	if p.points.TargetWattage > 0 {
		watts := p.points.TargetWattage
		cmd.TargetWattage = &watts
	}

	if err := p.sender.Send(cmd); err != nil {
		return model.StartCommand{}, err
	}

	p.uiState.Set(Running)
	p.log.Info().
		Int("motor1_speed", cmd.Motor1Speed).
		Int("motor2_speed", cmd.Motor2Speed).
		Int("benchmark_duration", cmd.BenchmarkDuration).
		Msg("Benchmark started")

	return cmd, nil
}

// RequestStop sends a stop command and returns the panel to Idle, whether
// or not a run was active and whether or not the send succeeded.
func (p *Panel) RequestStop() error {
	err := p.sender.Send(model.StopCommand{})
	if err != nil {
		p.log.Warn().Err(err).Msg("Stop command not delivered")
	}

	p.uiState.Set(Idle)

	return err
}

// Complete returns the panel to Idle after the controller finished a run.
func (p *Panel) Complete() {
	p.uiState.Set(Idle)
}

func clampSpeed(v int) int {
	return min(max(v, model.MinMotorSpeed), model.MaxMotorSpeed)
}
