package domain

import "time"

// Priority classifies how urgent an insight or recommendation is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting; high sorts first, unknown values last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// WorkerStatus is the terminal state of one analysis worker within a run.
type WorkerStatus string

const (
	WorkerComplete WorkerStatus = "complete"
	WorkerTimedOut WorkerStatus = "timed_out"
	WorkerFailed   WorkerStatus = "failed"
)

// Insight is a single finding produced by an analysis worker.
type Insight struct {
	Category       string   `json:"insight_category"`
	Finding        string   `json:"finding"`
	Evidence       []string `json:"evidence"`
	Recommendation string   `json:"actionable_recommendation"`
	Priority       Priority `json:"priority"`
	Confidence     float64  `json:"confidence_score"`
}

// AgentReport is everything one worker returned, or the reason it did not.
type AgentReport struct {
	Worker      string        `json:"worker"`
	Insights    []Insight     `json:"insights"`
	Summary     string        `json:"summary"`
	Confidence  float64       `json:"confidence"`
	Duration    time.Duration `json:"duration_ns"`
	Status      WorkerStatus  `json:"status"`
	Error       string        `json:"error,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// SynthesizedReport is the merged output of all workers for one run.
type SynthesizedReport struct {
	BrandName           string        `json:"brand_name"`
	RunID               string        `json:"run_id"`
	WindowStart         time.Time     `json:"window_start"`
	WindowEnd           time.Time     `json:"window_end"`
	Insights            []Insight     `json:"insights"`
	OverallConfidence   float64       `json:"overall_confidence"`
	ContributingWorkers int           `json:"contributing_workers"`
	FailedWorkers       int           `json:"failed_workers"`
	WorkerReports       []AgentReport `json:"worker_reports"`
	GeneratedAt         time.Time     `json:"generated_at"`
}
