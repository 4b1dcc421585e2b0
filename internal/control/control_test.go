package control_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/benchctl/internal/control"
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []model.Command
	err  error
}

func (s *recordingSender) Send(cmd model.Command) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, cmd)
	return nil
}

var fixedNow = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func newPanel(sender control.Sender) *control.Panel {
	return control.NewPanel(sender, control.WithClock(func() time.Time { return fixedNow }))
}

func TestRequestStart(t *testing.T) {
	sender := &recordingSender{}
	p := newPanel(sender)
	p.SetMotorSpeeds(50, -50)
	require.NoError(t, p.SetDuration(30))

	cmd, err := p.RequestStart()
	require.NoError(t, err)

	want := model.StartCommand{Motor1Speed: 50, Motor2Speed: -50, BenchmarkDuration: 30, Timestamp: fixedNow}
	assert.Equal(t, want, cmd)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, want, sender.sent[0])
	assert.Equal(t, control.Running, p.State())
}

func TestRequestStartWhileRunning(t *testing.T) {
	sender := &recordingSender{}
	p := newPanel(sender)

	_, err := p.RequestStart()
	require.NoError(t, err)

	_, err = p.RequestStart()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
	assert.Len(t, sender.sent, 1, "no second command may be sent")
	assert.Equal(t, control.Running, p.State())
}

func TestRequestStartSendFailureStaysIdle(t *testing.T) {
	sender := &recordingSender{err: errors.New().New(errors.ErrNotConnected)}
	p := newPanel(sender)

	_, err := p.RequestStart()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNotConnected))
	assert.Equal(t, control.Idle, p.State())
}

func TestRequestStopIsIdempotent(t *testing.T) {
	sender := &recordingSender{}
	p := newPanel(sender)

	require.NoError(t, p.RequestStop())
	assert.Equal(t, control.Idle, p.State())

	_, err := p.RequestStart()
	require.NoError(t, err)
	require.NoError(t, p.RequestStop())
	assert.Equal(t, control.Idle, p.State())

	require.Len(t, sender.sent, 3)
	assert.Equal(t, model.StopCommand{}, sender.sent[0])
	assert.Equal(t, model.StopCommand{}, sender.sent[2])
}

func TestRequestStopWhileDisconnected(t *testing.T) {
	sender := &recordingSender{}
	p := newPanel(sender)
	_, err := p.RequestStart()
	require.NoError(t, err)

	sender.err = errors.New().New(errors.ErrNotConnected)
	err = p.RequestStop()

	assert.True(t, errors.HasCode(err, errors.ErrNotConnected))
	assert.Equal(t, control.Idle, p.State(), "stop always re-enables start")
}

func TestCompleteReturnsToIdle(t *testing.T) {
	p := newPanel(&recordingSender{})

	var seen []control.UIState
	p.StateView().Subscribe(func(s control.UIState) { seen = append(seen, s) })

	_, err := p.RequestStart()
	require.NoError(t, err)
	p.Complete()

	assert.Equal(t, control.Idle, p.State())
	assert.Equal(t, []control.UIState{control.Running, control.Idle}, seen)
}

func TestMotorSpeedClamping(t *testing.T) {
	p := newPanel(&recordingSender{})

	p.SetMotorSpeeds(500, -500)
	assert.Equal(t, 127, p.Setpoints().Motor1Speed)
	assert.Equal(t, -127, p.Setpoints().Motor2Speed)

	p.SetMotorSpeeds(-127, 127)
	assert.Equal(t, -127, p.Setpoints().Motor1Speed)
	assert.Equal(t, 127, p.Setpoints().Motor2Speed)
}

func TestDurationRounding(t *testing.T) {
	p := newPanel(&recordingSender{})

	tests := []struct {
		in   float64
		want int
	}{
		{in: 29.4, want: 29},
		{in: 29.5, want: 30},
		{in: 0, want: 0},
		{in: -3, want: 0},
	}
	for _, tt := range tests {
		require.NoError(t, p.SetDuration(tt.in))
		assert.Equal(t, tt.want, p.Setpoints().Duration, "duration %v", tt.in)
	}
}

func TestTargetWattage(t *testing.T) {
	sender := &recordingSender{}
	p := newPanel(sender)

	require.NoError(t, p.SetTargetWattage(150))
	cmd, err := p.RequestStart()
	require.NoError(t, err)
	require.NotNil(t, cmd.TargetWattage)
	assert.InDelta(t, 150.0, *cmd.TargetWattage, 1e-9)

	p.Complete()
	require.NoError(t, p.SetTargetWattage(-1))
	cmd, err = p.RequestStart()
	require.NoError(t, err)
	assert.Nil(t, cmd.TargetWattage)
}

func TestFileName(t *testing.T) {
	p := newPanel(&recordingSender{})
	assert.Equal(t, "data", p.FileName())

	p.SetFileName("  run-7 ")
	assert.Equal(t, "run-7", p.FileName())

	p.SetFileName("")
	assert.Equal(t, "data", p.FileName())
}

func TestUIStateString(t *testing.T) {
	assert.Equal(t, "idle", control.Idle.String())
	assert.Equal(t, "running", control.Running.String())
}
