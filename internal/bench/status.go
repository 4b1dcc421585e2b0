package bench

import (
	"codeberg.org/mutker/benchctl/internal/connection"
	"codeberg.org/mutker/benchctl/internal/control"
)

// Status is a point-in-time snapshot of the session for the operator.
type Status struct {
	Connection    string   `json:"connection"`
	State         string   `json:"state"`
	Motor1Speed   int      `json:"motor1_speed"`
	Motor2Speed   int      `json:"motor2_speed"`
	Duration      int      `json:"benchmark_duration"`
	TargetWattage float64  `json:"target_wattage,omitempty"`
	FileName      string   `json:"file_name"`
	WindowSize    int      `json:"window_size"`
	WindowLen     int      `json:"window_len"`
	Logged        int      `json:"logged"`
	Voltage       *float64 `json:"voltage,omitempty"`
	Current       *float64 `json:"current,omitempty"`
	Power         *float64 `json:"power,omitempty"`
	LastExport    string   `json:"last_export,omitempty"`
	LastSession   string   `json:"last_session,omitempty"`
}

// Running reports whether a benchmark is in flight.
func (s Status) Running() bool {
	return s.State == control.Running.String()
}

// Connected reports whether commands can currently be sent.
func (s Status) Connected() bool {
	return s.Connection == connection.Open.String()
}

// snapshot must run on the dispatcher goroutine.
func (s *Session) snapshot() Status {
	points := s.panel.Setpoints()
	electrical := s.buffer.Electrical()

	st := Status{
		Connection:    s.conn.State().String(),
		State:         s.panel.State().String(),
		Motor1Speed:   points.Motor1Speed,
		Motor2Speed:   points.Motor2Speed,
		Duration:      points.Duration,
		TargetWattage: points.TargetWattage,
		FileName:      points.FileName,
		WindowSize:    s.buffer.Size(),
		WindowLen:     s.buffer.WindowLen(),
		Logged:        s.buffer.LogLen(),
		Voltage:       electrical.Voltage,
		Current:       electrical.Current,
		LastExport:    s.lastExport,
		LastSession:   s.lastSession,
	}
	if p, ok := electrical.Power(); ok {
		st.Power = &p
	}

	return st
}
