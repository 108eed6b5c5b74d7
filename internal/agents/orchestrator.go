package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
)

// ErrAllWorkersFailed reports that not a single worker completed. It is the
// only fatal outcome of an orchestrated run.
var ErrAllWorkersFailed = errors.New("all analysis workers failed")

// Orchestrator fans one snapshot out to every registered worker and merges
// whatever comes back. Failed and timed-out workers are absorbed into the
// synthesized report, they never abort the run on their own.
type Orchestrator struct {
	registry *Registry
	scorer   *Scorer
	cfg      config.AgentsConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator builds an Orchestrator. A nil clock falls back to time.Now.
func NewOrchestrator(registry *Registry, scorer *Scorer, cfg config.AgentsConfig, logger *slog.Logger, now func() time.Time) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		registry: registry,
		scorer:   scorer,
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		now:      now,
	}
}

// Run executes every registered worker concurrently, each under its own
// timeout, then synthesizes the surviving insights. The returned report is
// populated even when the error is ErrAllWorkersFailed so callers can still
// write a failure artifact.
func (o *Orchestrator) Run(ctx context.Context, snap Context) (domain.SynthesizedReport, error) {
	workers := o.registry.All()
	if len(workers) == 0 {
		return domain.SynthesizedReport{}, errors.New("no analysis workers registered")
	}

	reports := make([]domain.AgentReport, len(workers))
	var g errgroup.Group
	for i, w := range workers {
		i, w := i, w
		g.Go(func() error {
			reports[i] = o.runWorker(ctx, w, snap)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.SynthesizedReport{}, fmt.Errorf("orchestration canceled: %w", err)
	}
	return o.synthesize(snap, reports)
}

// runWorker isolates one worker: its own deadline, its panics contained.
// Whatever happens comes back as a report with a terminal status.
func (o *Orchestrator) runWorker(ctx context.Context, w Worker, snap Context) domain.AgentReport {
	started := o.now()
	wctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	type outcome struct {
		report domain.AgentReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		report, err := w.Analyze(wctx, snap)
		done <- outcome{report: report, err: err}
	}()

	select {
	case <-wctx.Done():
		o.logger.Warn("worker timed out", "worker", w.Name(), "timeout", o.timeout())
		return domain.AgentReport{
			Worker:      w.Name(),
			Status:      domain.WorkerTimedOut,
			Error:       wctx.Err().Error(),
			Duration:    o.now().Sub(started),
			GeneratedAt: o.now().UTC(),
		}
	case out := <-done:
		if out.err != nil {
			o.logger.Warn("worker failed", "worker", w.Name(), "err", out.err)
			return domain.AgentReport{
				Worker:      w.Name(),
				Status:      domain.WorkerFailed,
				Error:       out.err.Error(),
				Duration:    o.now().Sub(started),
				GeneratedAt: o.now().UTC(),
			}
		}
		report := out.report
		report.Worker = w.Name()
		report.Status = domain.WorkerComplete
		report.Duration = o.now().Sub(started)
		report.GeneratedAt = o.now().UTC()
		return report
	}
}

type pooled struct {
	insight domain.Insight
	worker  string
}

// synthesize re-scores the pooled insights with measured cross-worker
// agreement, collapses near-duplicates keeping the highest confidence, and
// ranks what remains.
func (o *Orchestrator) synthesize(snap Context, reports []domain.AgentReport) (domain.SynthesizedReport, error) {
	sort.Slice(reports, func(i, j int) bool { return reports[i].Worker < reports[j].Worker })

	var pool []pooled
	contributing, failed := 0, 0
	for _, r := range reports {
		if r.Status != domain.WorkerComplete {
			failed++
			continue
		}
		contributing++
		for _, ins := range r.Insights {
			pool = append(pool, pooled{insight: ins, worker: r.Worker})
		}
	}

	report := domain.SynthesizedReport{
		BrandName:           snap.Brand.Name,
		RunID:               snap.RunID,
		WindowStart:         snap.WindowStart,
		WindowEnd:           snap.WindowEnd,
		ContributingWorkers: contributing,
		FailedWorkers:       failed,
		WorkerReports:       reports,
		GeneratedAt:         o.now().UTC(),
	}
	if contributing == 0 {
		return report, ErrAllWorkersFailed
	}

	for i := range pool {
		pool[i].insight.Confidence = o.scorer.Score(Factors{
			SampleSize:    snap.SampleSize(),
			DataQuality:   snap.AvgQuality(),
			EvidenceCount: len(pool[i].insight.Evidence),
			Agreement:     o.agreement(pool, i, contributing),
		})
	}

	report.Insights = o.dedupe(pool)
	report.OverallConfidence = meanConfidence(report.Insights)

	o.logger.Info("synthesis complete",
		"contributing", contributing,
		"failed", failed,
		"insights", len(report.Insights),
		"overall_confidence", report.OverallConfidence)
	return report, nil
}

// agreement is the fraction of other contributing workers that produced an
// insight resting on overlapping evidence.
func (o *Orchestrator) agreement(pool []pooled, idx, contributing int) float64 {
	if contributing <= 1 {
		return 0
	}
	agreeing := make(map[string]bool)
	for j, other := range pool {
		if j == idx || other.worker == pool[idx].worker {
			continue
		}
		if evidenceOverlap(pool[idx].insight.Evidence, other.insight.Evidence) >= o.overlap() {
			agreeing[other.worker] = true
		}
	}
	return float64(len(agreeing)) / float64(contributing-1)
}

// dedupe collapses insights of the same priority whose evidence overlaps
// past the threshold. Sorting first makes the kept one the highest scored.
func (o *Orchestrator) dedupe(pool []pooled) []domain.Insight {
	insights := make([]domain.Insight, 0, len(pool))
	for _, p := range pool {
		insights = append(insights, p.insight)
	}
	sortInsights(insights)

	var kept []domain.Insight
	for _, ins := range insights {
		dup := false
		for _, k := range kept {
			if k.Priority == ins.Priority && evidenceOverlap(k.Evidence, ins.Evidence) >= o.overlap() {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, ins)
		}
	}
	return kept
}

func (o *Orchestrator) timeout() time.Duration {
	if o.cfg.WorkerTimeoutSeconds > 0 {
		return time.Duration(o.cfg.WorkerTimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

func (o *Orchestrator) overlap() float64 {
	if o.cfg.DedupOverlap > 0 {
		return o.cfg.DedupOverlap
	}
	return 0.5
}

func sortInsights(insights []domain.Insight) {
	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Priority.Rank() != insights[j].Priority.Rank() {
			return insights[i].Priority.Rank() < insights[j].Priority.Rank()
		}
		if insights[i].Confidence != insights[j].Confidence {
			return insights[i].Confidence > insights[j].Confidence
		}
		return insights[i].Finding < insights[j].Finding
	})
}

// evidenceOverlap is the Jaccard similarity of two evidence reference sets.
func evidenceOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, e := range a {
		set[e] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, e := range b {
		if seen[e] {
			continue
		}
		seen[e] = true
		if set[e] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
