package bench_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/benchctl/internal/archive"
	"codeberg.org/mutker/benchctl/internal/bench"
	"codeberg.org/mutker/benchctl/internal/connection"
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/export"
	"codeberg.org/mutker/benchctl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saved struct {
	name string
	data string
}

type channelSaver chan saved

func (c channelSaver) Save(_ context.Context, filename string, data []byte) error {
	c <- saved{name: filename, data: string(data)}
	return nil
}

type harness struct {
	session *bench.Session
	conn    *connection.Connection
	ctrl    *testutil.Controller
	saves   channelSaver
	cancel  context.CancelFunc
	runErr  chan error
}

func startSession(t *testing.T, opts ...bench.Option) *harness {
	t.Helper()

	ctrl := testutil.NewController(t)
	conn := connection.New(ctrl.URL)
	saves := make(channelSaver, 4)

	session, err := bench.New(bench.DefaultConfig(), conn, export.NewExporter(saves, nil), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		session: session,
		conn:    conn,
		ctrl:    ctrl,
		saves:   saves,
		cancel:  cancel,
		runErr:  make(chan error, 1),
	}
	go func() { h.runErr <- session.Run(ctx) }()

	ctrl.Accept(t)
	require.Eventually(t, func() bool { return conn.State() == connection.Open },
		testutil.Timeout, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-session.Done()
	})

	return h
}

func (h *harness) status(t *testing.T) bench.Status {
	t.Helper()

	st, err := h.session.Status(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) waitLogged(t *testing.T, n int) {
	t.Helper()

	require.Eventually(t, func() bool { return h.status(t).Logged == n },
		testutil.Timeout, 10*time.Millisecond)
}

func (h *harness) nextReport(t *testing.T) bench.Report {
	t.Helper()

	select {
	case r := <-h.session.Reports():
		return r
	case <-time.After(testutil.Timeout):
		t.Fatal("no report delivered")
		return bench.Report{}
	}
}

func (h *harness) nextSave(t *testing.T) saved {
	t.Helper()

	select {
	case s := <-h.saves:
		return s
	case <-time.After(testutil.Timeout):
		t.Fatal("nothing exported")
		return saved{}
	}
}

func TestCompletedRunIsExportedAndArchived(t *testing.T) {
	rec, err := archive.NewService(archive.Config{
		DBPath:  filepath.Join(t.TempDir(), "sessions.db"),
		Enabled: true,
	}, nil)
	require.NoError(t, err)
	defer rec.Close()

	h := startSession(t, bench.WithArchive(rec))
	ctx := context.Background()

	require.NoError(t, h.session.SetMotorSpeeds(ctx, 50, -50))
	require.NoError(t, h.session.SetDuration(ctx, 30))
	require.NoError(t, h.session.SetFileName(ctx, "run"))

	cmd, err := h.session.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, cmd.Motor1Speed)

	var start map[string]any
	require.NoError(t, json.Unmarshal(h.ctrl.Receive(t), &start))
	assert.Equal(t, "start", start["command"])
	assert.EqualValues(t, 50, start["motor1_speed"])
	assert.EqualValues(t, -50, start["motor2_speed"])
	assert.EqualValues(t, 30, start["benchmark_duration"])
	assert.True(t, h.status(t).Running())

	h.ctrl.SendText(t, `{"force_measurements":[{"time":1,"force":10},{"time":2,"force":20}]}`)
	h.ctrl.SendText(t, `{"force_measurements":[{"time":3,"force":30}],"voltage":12,"current":2}`)
	h.waitLogged(t, 3)

	h.ctrl.SendText(t, "Benchmark finished")

	got := h.nextSave(t)
	assert.Equal(t, "run.csv", got.name)
	assert.Equal(t, "time,force\n1,10\n2,20\n3,30", got.data)

	require.Eventually(t, func() bool { return !h.status(t).Running() },
		testutil.Timeout, 10*time.Millisecond)

	st := h.status(t)
	assert.Equal(t, 0, st.Logged)
	assert.Equal(t, 3, st.WindowLen, "the chart keeps showing the last samples")
	assert.Equal(t, "run.csv", st.LastExport)
	assert.NotEmpty(t, st.LastSession)
	require.NotNil(t, st.Power)
	assert.InDelta(t, 24.0, *st.Power, 1e-9)

	sessions, err := rec.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, st.LastSession, sessions[0].ID)
	assert.Equal(t, 3, sessions[0].Measurements)

	select {
	case s := <-h.saves:
		t.Fatalf("exported twice: %s", s.name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCompletionWithEmptyLogReportsEmptyLog(t *testing.T) {
	h := startSession(t)

	h.ctrl.SendText(t, "Benchmark finished")

	r := h.nextReport(t)
	assert.Equal(t, errors.ErrEmptyLog, r.Code)
	assert.Empty(t, h.saves)
}

func TestGarbageIsReportedAndIgnored(t *testing.T) {
	h := startSession(t)

	h.ctrl.SendText(t, `{"force_measurements":[{"time":1,"force":10}]}`)
	h.waitLogged(t, 1)

	h.ctrl.SendText(t, "garbage")
	r := h.nextReport(t)
	assert.Equal(t, errors.ErrParse, r.Code)

	st := h.status(t)
	assert.Equal(t, 1, st.Logged)
	assert.Equal(t, 1, st.WindowLen)
	assert.True(t, st.Connected())
}

func TestStatusWindowNeverExceedsSize(t *testing.T) {
	h := startSession(t)

	h.ctrl.SendText(t, `{"i":1,"force_measurements":[1,2,3,4,5,6,7,8,9,10,11,12]}`)
	h.waitLogged(t, 12)

	st := h.status(t)
	assert.Equal(t, 10, st.WindowSize)
	assert.Equal(t, 10, st.WindowLen)
	assert.LessOrEqual(t, st.WindowLen, st.WindowSize)
	assert.Equal(t, 12, st.Logged)
	assert.Equal(t, st.WindowLen, h.session.Chart().Series().Len())
}

func TestStartWhileRunningSendsNothing(t *testing.T) {
	h := startSession(t)
	ctx := context.Background()

	_, err := h.session.Start(ctx)
	require.NoError(t, err)
	h.ctrl.Receive(t)

	_, err = h.session.Start(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
	assert.Equal(t, errors.ErrAlreadyRunning, h.nextReport(t).Code)
	h.ctrl.ExpectSilence(t, 100*time.Millisecond)
}

func TestNewRunClearsPreviousSamples(t *testing.T) {
	h := startSession(t)
	ctx := context.Background()

	h.ctrl.SendText(t, `{"force_measurements":[{"time":1,"force":10}]}`)
	h.waitLogged(t, 1)

	_, err := h.session.Start(ctx)
	require.NoError(t, err)

	st := h.status(t)
	assert.Equal(t, 0, st.Logged)
	assert.Equal(t, 0, st.WindowLen)
	assert.Equal(t, 0, h.session.Chart().Series().Len())
}

func TestStopKeepsLogForManualExport(t *testing.T) {
	h := startSession(t)
	ctx := context.Background()

	_, err := h.session.Start(ctx)
	require.NoError(t, err)
	h.ctrl.Receive(t)

	h.ctrl.SendText(t, `{"i":7,"force_measurements":[4.5]}`)
	h.waitLogged(t, 1)

	require.NoError(t, h.session.Stop(ctx))
	assert.JSONEq(t, `{"command":"stop"}`, string(h.ctrl.Receive(t)))
	assert.False(t, h.status(t).Running())

	name, err := h.session.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", name)
	assert.Equal(t, "time,force\n7,4.5", h.nextSave(t).data)
	assert.Equal(t, 1, h.status(t).Logged)
}

func TestManualExportOfEmptyLog(t *testing.T) {
	h := startSession(t)

	_, err := h.session.Export(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrEmptyLog))
	assert.Empty(t, h.saves)
}

func TestTransportFailureIsReported(t *testing.T) {
	h := startSession(t)
	ctx := context.Background()

	h.ctrl.Drop(t)

	r := h.nextReport(t)
	assert.Equal(t, errors.ErrTransport, r.Code)

	require.Eventually(t, func() bool { return !h.status(t).Connected() },
		testutil.Timeout, 10*time.Millisecond)

	_, err := h.session.Start(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrNotConnected))

	// Stop still returns the panel to Idle.
	err = h.session.Stop(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrNotConnected))
	assert.False(t, h.status(t).Running())
}

func TestCancelStopsRunningRig(t *testing.T) {
	h := startSession(t)

	_, err := h.session.Start(context.Background())
	require.NoError(t, err)
	h.ctrl.Receive(t)

	h.cancel()

	select {
	case err := <-h.runErr:
		assert.NoError(t, err)
	case <-time.After(testutil.Timeout):
		t.Fatal("Run did not return")
	}

	assert.JSONEq(t, `{"command":"stop"}`, string(h.ctrl.Receive(t)))
	assert.Equal(t, connection.Closed, h.conn.State())

	_, err = h.session.Status(context.Background())
	assert.True(t, errors.HasCode(err, bench.ErrSessionStopped))
}

func TestRunOpenFailure(t *testing.T) {
	conn := connection.New("ws://127.0.0.1:1")

	session, err := bench.New(bench.DefaultConfig(), conn, export.NewExporter(make(channelSaver, 1), nil))
	require.NoError(t, err)

	err = session.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTransport))
	assert.Equal(t, errors.ErrTransport, (<-session.Reports()).Code)

	err = session.Run(context.Background())
	assert.True(t, errors.HasCode(err, bench.ErrAlreadyStarted))
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := bench.DefaultConfig()
	cfg.WindowSize = 0

	_, err := bench.New(cfg, connection.New("ws://127.0.0.1:1"), export.NewExporter(make(channelSaver, 1), nil))
	assert.True(t, errors.HasCode(err, bench.ErrInvalidConfig))
}
