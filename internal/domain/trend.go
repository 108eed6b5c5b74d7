package domain

import "time"

// NoBaselineAcceleration marks topics with activity in the current bucket but
// a zero prior baseline. Division is never attempted for them; the sentinel
// keeps such topics sortable ahead of every finite acceleration.
const NoBaselineAcceleration = 1e9

// TrendSignal describes how one topic is moving across the analysis window.
type TrendSignal struct {
	Topic        string    `json:"topic"`
	Velocity     float64   `json:"velocity"`
	Acceleration float64   `json:"acceleration"`
	Emerging     bool      `json:"emerging"`
	SampleSize   int       `json:"sample_size"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
}
