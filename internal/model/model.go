// Package model holds the value types exchanged with the rig controller.
package model

import (
	"strconv"
	"time"
)

// Measurement is a single force sample reported by the controller.
type Measurement struct {
	Time  float64 `json:"time"`
	Force float64 `json:"force"`
}

// Fields returns the export column names in order.
func (Measurement) Fields() []string {
	return []string{"time", "force"}
}

// Values returns the export column values, matching Fields.
func (m Measurement) Values() []string {
	return []string{formatFloat(m.Time), formatFloat(m.Force)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame is the unit delivered per inbound telemetry message.
// Optional fields are nil when the payload did not carry them.
type Frame struct {
	Measurements []Measurement
	Voltage      *float64
	Current      *float64
	Sequence     *int64
}

// Empty reports whether the frame carries no force measurements.
func (f Frame) Empty() bool {
	return len(f.Measurements) == 0
}

// Command is an outbound control command.
type Command interface {
	Name() string
}

const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// Motor speed bounds accepted by the controller.
const (
	MinMotorSpeed = -127
	MaxMotorSpeed = 127
)

// StartCommand starts a benchmark run with the given setpoints.
type StartCommand struct {
	Motor1Speed       int
	Motor2Speed       int
	BenchmarkDuration int
	Timestamp         time.Time
	// TargetWattage asks the controller to regulate motor speed to a power
	// target. Nil leaves the controller on the fixed speeds.
	TargetWattage *float64
}

func (StartCommand) Name() string { return CommandStart }

// StopCommand stops the rig.
type StopCommand struct{}

func (StopCommand) Name() string { return CommandStop }
