package connection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/model"
)

// CompletionSentinel is the plain-text message the controller broadcasts
// when a benchmark run has ended.
const CompletionSentinel = "Benchmark finished"

// TimestampLayout is the ISO-8601 layout used for start commands.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// maxEchoedPayload bounds how much of a bad payload ends up in errors.
const maxEchoedPayload = 64

// Kind tells a decoded inbound message apart.
type Kind int

const (
	KindFrame Kind = iota
	KindCompletion
)

// Inbound is a decoded controller message.
type Inbound struct {
	Kind  Kind
	Frame model.Frame
}

// knownFields is the superset of telemetry keys across payload variants.
var knownFields = []string{"i", "force_measurements", "voltage", "current"}

type wireFrame struct {
	Sequence     *int64            `json:"i"`
	Measurements []wireMeasurement `json:"force_measurements"`
	Voltage      *float64          `json:"voltage"`
	Current      *float64          `json:"current"`
}

// wireMeasurement accepts both {time, force} objects and bare numbers.
type wireMeasurement struct {
	force float64
	time  *float64
}

var jsonNull = []byte("null")

func (w *wireMeasurement) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		return fmt.Errorf("null measurement")
	}

	if len(b) > 0 && b[0] != '{' {
		return json.Unmarshal(b, &w.force)
	}

	var obj struct {
		Time  *float64 `json:"time"`
		Force *float64 `json:"force"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Force == nil {
		return fmt.Errorf("measurement without force")
	}
	w.force = *obj.Force
	w.time = obj.Time

	return nil
}

// Decode parses one inbound text frame. Anything that is neither the
// completion sentinel nor a JSON object with at least one telemetry field
// yields an ErrParse error.
func Decode(raw []byte) (Inbound, error) {
	if strings.TrimSpace(string(raw)) == CompletionSentinel {
		return Inbound{Kind: KindCompletion}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Inbound{}, parseError(raw, err)
	}

	known := false
	for _, name := range knownFields {
		if _, ok := fields[name]; ok {
			known = true
			break
		}
	}
	if !known {
		return Inbound{}, parseError(raw, fmt.Errorf("no telemetry fields"))
	}

	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Inbound{}, parseError(raw, err)
	}

	frame := model.Frame{
		Voltage:  wf.Voltage,
		Current:  wf.Current,
		Sequence: wf.Sequence,
	}
	if len(wf.Measurements) > 0 {
		frame.Measurements = make([]model.Measurement, len(wf.Measurements))
	}
	for i, wm := range wf.Measurements {
		m := model.Measurement{Force: wm.force}
		switch {
		case wm.time != nil:
			m.Time = *wm.time
		case wf.Sequence != nil:
			m.Time = float64(*wf.Sequence)
		default:
			m.Time = float64(i)
		}
		frame.Measurements[i] = m
	}

	return Inbound{Kind: KindFrame, Frame: frame}, nil
}

func parseError(raw []byte, cause error) error {
	payload := string(raw)
	if len(payload) > maxEchoedPayload {
		payload = payload[:maxEchoedPayload] + "..."
	}

	return errors.New().WithData(ErrParse, fmt.Sprintf("%q: %v", payload, cause))
}

type wireStart struct {
	Command           string   `json:"command"`
	Motor1Speed       int      `json:"motor1_speed"`
	Motor2Speed       int      `json:"motor2_speed"`
	BenchmarkDuration int      `json:"benchmark_duration"`
	Timestamp         string   `json:"timestamp"`
	TargetWattage     *float64 `json:"target_wattage,omitempty"`
}

type wireStop struct {
	Command string `json:"command"`
}

// Encode serializes a command to its wire form.
func Encode(cmd model.Command) ([]byte, error) {
	errFactory := errors.New()

	var payload any
	switch c := cmd.(type) {
	case model.StartCommand:
		payload = startPayload(c)
	case *model.StartCommand:
		payload = startPayload(*c)
	case model.StopCommand, *model.StopCommand:
		payload = wireStop{Command: model.CommandStop}
	default:
		return nil, errFactory.WithData(ErrEncodeCommand, fmt.Sprintf("unsupported command %T", cmd))
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errFactory.Wrap(ErrEncodeCommand, err)
	}

	return b, nil
}

func startPayload(c model.StartCommand) wireStart {
	return wireStart{
		Command:           model.CommandStart,
		Motor1Speed:       c.Motor1Speed,
		Motor2Speed:       c.Motor2Speed,
		BenchmarkDuration: c.BenchmarkDuration,
		Timestamp:         c.Timestamp.UTC().Format(TimestampLayout),
		TargetWattage:     c.TargetWattage,
	}
}

// ParseTimestamp parses a start command timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
