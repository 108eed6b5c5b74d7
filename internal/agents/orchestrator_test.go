package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
)

type fakeWorker struct {
	name     string
	insights []domain.Insight
	err      error
	block    bool
	panics   bool
}

var _ Worker = fakeWorker{}

func (f fakeWorker) Name() string {
	return f.name
}

func (f fakeWorker) Analyze(ctx context.Context, _ Context) (domain.AgentReport, error) {
	if f.panics {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return domain.AgentReport{}, ctx.Err()
	}
	if f.err != nil {
		return domain.AgentReport{}, f.err
	}
	return domain.AgentReport{Insights: f.insights}, nil
}

func testAgentsCfg() config.AgentsConfig {
	return config.AgentsConfig{
		WorkerTimeoutSeconds: 1,
		MinSampleSize:        1,
		DedupOverlap:         0.5,
	}
}

func synthSnapshot() Context {
	day := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	return Context{
		Brand:       config.BrandConfig{Name: "Neutrogena"},
		RunID:       "run-1",
		WindowStart: day.AddDate(0, 0, -30),
		WindowEnd:   day,
		Records: []domain.CuratedRecord{
			{VideoID: "v1", QualityScore: 0.9},
			{VideoID: "v2", QualityScore: 0.9},
		},
	}
}

func newTestOrchestrator(cfg config.AgentsConfig, workers ...Worker) *Orchestrator {
	reg := NewRegistry()
	for _, w := range workers {
		reg.Register(w)
	}
	return NewOrchestrator(reg, NewScorer(cfg), cfg, nil, nil)
}

func TestRunAbsorbsFailuresTimeoutsAndPanics(t *testing.T) {
	t.Parallel()

	steady := fakeWorker{name: "steady", insights: []domain.Insight{
		{Category: "Trending Themes", Finding: "hydration clips lead", Evidence: []string{"theme:hydration"}, Priority: domain.PriorityHigh},
	}}
	broken := fakeWorker{name: "broken", err: errors.New("model unavailable")}
	sleepy := fakeWorker{name: "sleepy", block: true}
	jumpy := fakeWorker{name: "jumpy", panics: true}

	o := newTestOrchestrator(testAgentsCfg(), steady, broken, sleepy, jumpy)
	report, err := o.Run(context.Background(), synthSnapshot())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.ContributingWorkers != 1 || report.FailedWorkers != 3 {
		t.Fatalf("contributing/failed = %d/%d, want 1/3", report.ContributingWorkers, report.FailedWorkers)
	}
	if len(report.WorkerReports) != 4 {
		t.Fatalf("got %d worker reports, want 4", len(report.WorkerReports))
	}

	byWorker := make(map[string]domain.AgentReport, len(report.WorkerReports))
	for i, wr := range report.WorkerReports {
		byWorker[wr.Worker] = wr
		if i > 0 && report.WorkerReports[i-1].Worker > wr.Worker {
			t.Fatalf("worker reports not sorted by name: %q before %q", report.WorkerReports[i-1].Worker, wr.Worker)
		}
	}
	if got := byWorker["steady"].Status; got != domain.WorkerComplete {
		t.Fatalf("steady status = %q, want %q", got, domain.WorkerComplete)
	}
	if got := byWorker["broken"]; got.Status != domain.WorkerFailed || got.Error != "model unavailable" {
		t.Fatalf("broken report = %+v, want failed with the worker error", got)
	}
	if got := byWorker["sleepy"].Status; got != domain.WorkerTimedOut {
		t.Fatalf("sleepy status = %q, want %q", got, domain.WorkerTimedOut)
	}
	if got := byWorker["jumpy"]; got.Status != domain.WorkerFailed || got.Error != "panic: boom" {
		t.Fatalf("jumpy report = %+v, want failed with the recovered panic", got)
	}

	if len(report.Insights) != 1 || report.Insights[0].Finding != "hydration clips lead" {
		t.Fatalf("synthesized insights = %+v, want only the steady worker's", report.Insights)
	}
	if report.BrandName != "Neutrogena" || report.RunID != "run-1" {
		t.Fatalf("report identity = %q/%q, want Neutrogena/run-1", report.BrandName, report.RunID)
	}
}

func TestRunAllWorkersFailed(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(testAgentsCfg(),
		fakeWorker{name: "first", err: errors.New("down")},
		fakeWorker{name: "second", err: errors.New("down")},
	)
	report, err := o.Run(context.Background(), synthSnapshot())
	if !errors.Is(err, ErrAllWorkersFailed) {
		t.Fatalf("Run error = %v, want ErrAllWorkersFailed", err)
	}

	// The report still carries enough to write a failure artifact.
	if report.ContributingWorkers != 0 || report.FailedWorkers != 2 {
		t.Fatalf("contributing/failed = %d/%d, want 0/2", report.ContributingWorkers, report.FailedWorkers)
	}
	if len(report.WorkerReports) != 2 || report.BrandName != "Neutrogena" {
		t.Fatalf("failure report not populated: %+v", report)
	}
	if len(report.Insights) != 0 {
		t.Fatalf("got %d insights from failed workers, want none", len(report.Insights))
	}
}

func TestRunRequiresRegisteredWorkers(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(testAgentsCfg())
	if _, err := o.Run(context.Background(), synthSnapshot()); err == nil {
		t.Fatal("Run with empty registry succeeded, want error")
	}
}

func TestRunPropagatesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(testAgentsCfg(), fakeWorker{name: "steady"})
	if _, err := o.Run(ctx, synthSnapshot()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestSynthesisScoresAgreementAndDedupes(t *testing.T) {
	t.Parallel()

	shared := []string{"video:v1", "video:v2", "theme:hydration"}
	alpha := fakeWorker{name: "alpha", insights: []domain.Insight{
		{Category: "Viral Patterns", Finding: "hydration clips are compounding views", Evidence: shared, Priority: domain.PriorityHigh},
	}}
	bravo := fakeWorker{name: "bravo", insights: []domain.Insight{
		{Category: "Trending Themes", Finding: "hydration dominates the window", Evidence: shared, Priority: domain.PriorityHigh},
		{Category: "Market Share", Finding: "rivals hold a third of the window", Evidence: []string{"metric:share_of_voice"}, Priority: domain.PriorityMedium},
	}}

	o := newTestOrchestrator(testAgentsCfg(), alpha, bravo)
	report, err := o.Run(context.Background(), synthSnapshot())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Insights) != 2 {
		t.Fatalf("got %d insights, want the duplicate pair collapsed to 2", len(report.Insights))
	}

	// Both high-priority findings share evidence, so the survivor keeps the
	// full agreement factor: 0.02*0.25 + 0.9*0.25 + 0.6*0.20 + 0.15 + 0.15.
	first := report.Insights[0]
	if first.Priority != domain.PriorityHigh || first.Confidence != 0.65 {
		t.Fatalf("first insight = %s/%.2f, want high/0.65", first.Priority, first.Confidence)
	}
	if first.Finding != "hydration clips are compounding views" {
		t.Fatalf("dedupe kept %q, want the first finding of the tied pair", first.Finding)
	}

	// The uncorroborated insight scores without the agreement weight.
	second := report.Insights[1]
	if second.Priority != domain.PriorityMedium || second.Confidence != 0.42 {
		t.Fatalf("second insight = %s/%.2f, want medium/0.42", second.Priority, second.Confidence)
	}

	if report.OverallConfidence <= second.Confidence || report.OverallConfidence >= first.Confidence {
		t.Fatalf("overall confidence %.2f outside (%.2f, %.2f)", report.OverallConfidence, second.Confidence, first.Confidence)
	}
	if report.ContributingWorkers != 2 {
		t.Fatalf("contributing = %d, want 2", report.ContributingWorkers)
	}
}

func TestSynthesisKeepsDistinctPrioritiesApart(t *testing.T) {
	t.Parallel()

	shared := []string{"video:v1", "video:v2"}
	alpha := fakeWorker{name: "alpha", insights: []domain.Insight{
		{Category: "Viral Patterns", Finding: "clips are spiking", Evidence: shared, Priority: domain.PriorityHigh},
	}}
	bravo := fakeWorker{name: "bravo", insights: []domain.Insight{
		{Category: "Content Preferences", Finding: "same clips read as a format shift", Evidence: shared, Priority: domain.PriorityLow},
	}}

	o := newTestOrchestrator(testAgentsCfg(), alpha, bravo)
	report, err := o.Run(context.Background(), synthSnapshot())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Same evidence but different priorities: both survive, ranked high first.
	if len(report.Insights) != 2 {
		t.Fatalf("got %d insights, want 2", len(report.Insights))
	}
	if report.Insights[0].Priority != domain.PriorityHigh || report.Insights[1].Priority != domain.PriorityLow {
		t.Fatalf("priorities = %s, %s, want high then low", report.Insights[0].Priority, report.Insights[1].Priority)
	}
}

func TestEvidenceOverlap(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b []string
		want float64
	}{
		{name: "identical", a: []string{"x", "y"}, b: []string{"x", "y"}, want: 1},
		{name: "half", a: []string{"x", "y", "z"}, b: []string{"x", "y", "w"}, want: 0.5},
		{name: "disjoint", a: []string{"x"}, b: []string{"y"}, want: 0},
		{name: "empty side", a: nil, b: []string{"x"}, want: 0},
		{name: "duplicates collapse", a: []string{"x", "x"}, b: []string{"x"}, want: 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := evidenceOverlap(tc.a, tc.b); got != tc.want {
				t.Fatalf("evidenceOverlap(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
