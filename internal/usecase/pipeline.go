package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ShortsIntel/internal/agents"
	"ShortsIntel/internal/collector"
	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/medallion"
	"ShortsIntel/internal/ports"
	"ShortsIntel/internal/quota"
	"ShortsIntel/internal/trend"
)

// ErrNoData reports a run that produced nothing to analyze: collection came
// back empty and the warehouse holds no curated history for the window.
var ErrNoData = errors.New("no observations collected and no curated history")

// PipelineDeps wires all driven adapters into the run pipeline.
type PipelineDeps struct {
	Collector    *collector.Collector
	Transformer  *medallion.Transformer
	Detector     *trend.Detector
	Orchestrator *agents.Orchestrator
	Warehouse    ports.Warehouse
	Sink         ports.ReportSink
	Ledger       *quota.Ledger
	Logger       *slog.Logger
	Now          func() time.Time
	NewRunID     func() string
}

// Pipeline implements one full intelligence run: collect, land bronze,
// curate silver, aggregate gold, detect trends, analyze, export artifacts.
type Pipeline struct {
	collector    *collector.Collector
	transformer  *medallion.Transformer
	detector     *trend.Detector
	orchestrator *agents.Orchestrator
	warehouse    ports.Warehouse
	sink         ports.ReportSink
	ledger       *quota.Ledger
	logger       *slog.Logger
	now          func() time.Time
	newRunID     func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = func() string {
			return now().UTC().Format("20060102_150405") + "_" + uuid.NewString()[:8]
		}
	}
	return &Pipeline{
		collector:    deps.Collector,
		transformer:  deps.Transformer,
		detector:     deps.Detector,
		orchestrator: deps.Orchestrator,
		warehouse:    deps.Warehouse,
		sink:         deps.Sink,
		ledger:       deps.Ledger,
		logger:       logger.With("component", "pipeline"),
		now:          now,
		newRunID:     newRunID,
	}
}

// collectionArtifact is the raw-data export for one run.
type collectionArtifact struct {
	RunID       string           `json:"run_id"`
	Brand       string           `json:"brand"`
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
	Quota       *quota.Snapshot  `json:"quota,omitempty"`
	Collection  collector.Result `json:"collection"`
}

// failureArtifact captures why a run aborted, with whatever partial output
// exists at that point.
type failureArtifact struct {
	RunID    string                    `json:"run_id"`
	Brand    string                    `json:"brand"`
	Stage    string                    `json:"stage"`
	Error    string                    `json:"error"`
	FailedAt time.Time                 `json:"failed_at"`
	Report   *domain.SynthesizedReport `json:"report,omitempty"`
}

// Run executes the pipeline for one brand. Partial collection is normal;
// the run aborts only when there is nothing at all to analyze, when the
// warehouse or sink rejects a write, or when every analysis worker fails.
func (p *Pipeline) Run(ctx context.Context, brand config.BrandConfig) error {
	if p.collector == nil || p.transformer == nil {
		return errors.New("pipeline is not fully wired")
	}

	runID := p.newRunID()
	logger := p.logger.With("brand", brand.Name, "run_id", runID)

	windowEnd := p.now().UTC()
	windowStart := windowEnd.AddDate(0, 0, -lookbackDays(brand))
	logger.Info("run started", "window_start", windowStart, "window_end", windowEnd)

	result, err := p.collector.Collect(ctx, brand)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	if err := p.transformer.IngestBronze(ctx, brand, result.Observations, result.Comments); err != nil {
		p.saveFailure(ctx, brand, runID, "bronze", err, nil)
		return fmt.Errorf("ingest bronze: %w", err)
	}

	records, err := p.transformer.CurateSilver(ctx, brand, windowStart)
	if err != nil {
		p.saveFailure(ctx, brand, runID, "silver", err, nil)
		return fmt.Errorf("curate silver: %w", err)
	}
	if len(records) == 0 && p.warehouse != nil {
		records, err = p.warehouse.CuratedRecords(ctx, brand.Name, windowStart)
		if err != nil {
			p.saveFailure(ctx, brand, runID, "silver", err, nil)
			return fmt.Errorf("read curated history: %w", err)
		}
	}

	if len(result.Observations) == 0 && len(records) == 0 {
		p.saveFailure(ctx, brand, runID, "collection", ErrNoData, nil)
		return fmt.Errorf("run %s: %w", runID, ErrNoData)
	}

	metric, err := p.transformer.AggregateGold(ctx, brand, windowStart, windowEnd)
	if err != nil {
		p.saveFailure(ctx, brand, runID, "gold", err, nil)
		return fmt.Errorf("aggregate gold: %w", err)
	}

	var trends []domain.TrendSignal
	if p.detector != nil {
		trends = p.detector.Detect(records, windowEnd)
	}

	var comments []domain.Comment
	if p.warehouse != nil {
		comments, err = p.warehouse.RawComments(ctx, brand.Name, windowStart)
		if err != nil {
			logger.Warn("comment history unavailable", "error", err)
			comments = result.Comments
		}
	}

	snap := agents.Context{
		Brand:           brand,
		RunID:           runID,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		Records:         records,
		Comments:        comments,
		Metric:          metric,
		Trends:          trends,
		Gaps:            len(result.Gaps),
		BudgetExhausted: result.BudgetExhausted,
	}

	report := domain.SynthesizedReport{BrandName: brand.Name, RunID: runID}
	if p.orchestrator != nil {
		report, err = p.orchestrator.Run(ctx, snap)
		if err != nil {
			if errors.Is(err, agents.ErrAllWorkersFailed) {
				p.saveFailure(ctx, brand, runID, "analysis", err, &report)
			}
			return fmt.Errorf("analyze: %w", err)
		}
	}

	if err := p.export(ctx, brand, runID, windowStart, windowEnd, result, metric, trends, report); err != nil {
		p.saveFailure(ctx, brand, runID, "export", err, &report)
		return err
	}

	logger.Info("run finished",
		"videos", len(result.Observations),
		"curated", len(records),
		"insights", len(report.Insights),
		"contributing_workers", report.ContributingWorkers,
		"failed_workers", report.FailedWorkers)
	return nil
}

func (p *Pipeline) export(ctx context.Context, brand config.BrandConfig, runID string, windowStart, windowEnd time.Time,
	result collector.Result, metric domain.AggregateMetric, trends []domain.TrendSignal, report domain.SynthesizedReport) error {
	if p.sink == nil {
		return nil
	}

	artifact := collectionArtifact{
		RunID:       runID,
		Brand:       brand.Name,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Collection:  result,
	}
	if p.ledger != nil {
		snapshot := p.ledger.Snapshot()
		artifact.Quota = &snapshot
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection artifact: %w", err)
	}
	if _, err := p.sink.SaveCollection(ctx, brand.Name, runID, payload); err != nil {
		return fmt.Errorf("save collection artifact: %w", err)
	}

	payload, err = json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode intelligence report: %w", err)
	}
	if _, err := p.sink.SaveIntelligence(ctx, brand.Name, runID, payload); err != nil {
		return fmt.Errorf("save intelligence report: %w", err)
	}

	summary := buildRunSummary(brand, result, metric, trends, report)
	if _, err := p.sink.SaveSummary(ctx, brand.Name, runID, summary); err != nil {
		return fmt.Errorf("save run summary: %w", err)
	}
	return nil
}

func (p *Pipeline) saveFailure(ctx context.Context, brand config.BrandConfig, runID, stage string, cause error, report *domain.SynthesizedReport) {
	if p.sink == nil {
		return
	}

	artifact := failureArtifact{
		RunID:    runID,
		Brand:    brand.Name,
		Stage:    stage,
		Error:    cause.Error(),
		FailedAt: p.now().UTC(),
		Report:   report,
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		p.logger.Error("failure artifact not encoded", "brand", brand.Name, "run_id", runID, "error", err)
		return
	}
	if _, err := p.sink.SaveFailure(ctx, brand.Name, runID, payload); err != nil {
		p.logger.Error("failure artifact not saved", "brand", brand.Name, "run_id", runID, "error", err)
	}
}

// buildRunSummary renders the human-readable digest for one run.
func buildRunSummary(brand config.BrandConfig, result collector.Result, metric domain.AggregateMetric,
	trends []domain.TrendSignal, report domain.SynthesizedReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s intelligence run %s\n", brand.Name, report.RunID)
	fmt.Fprintf(&b, "Window: %s to %s\n\n",
		metric.WindowStart.Format("2006-01-02"), metric.WindowEnd.Format("2006-01-02"))

	fmt.Fprintf(&b, "Collection: %d shorts, %d comments, %d gaps",
		len(result.Observations), len(result.Comments), len(result.Gaps))
	if result.BudgetExhausted {
		b.WriteString(" (quota budget exhausted)")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Aggregates: %d videos, %d views, engagement %.2f%%, sentiment %.2f, share of voice %.0f%%\n",
		metric.TotalVideos, metric.TotalViews, metric.AvgEngagementRate, metric.AvgSentiment, metric.ShareOfVoice*100)
	if len(metric.TopThemes) > 0 {
		fmt.Fprintf(&b, "Top themes: %s\n", strings.Join(metric.TopThemes, ", "))
	}

	if len(trends) > 0 {
		b.WriteString("Trends:\n")
		for _, t := range trends {
			marker := ""
			if t.Emerging {
				marker = " (emerging)"
			}
			fmt.Fprintf(&b, "- %s: velocity %.1f%s\n", t.Topic, t.Velocity, marker)
		}
	}

	findings := topFindings(report.Insights, brand.ConfidenceThreshold)
	fmt.Fprintf(&b, "\nKey findings (confidence >= %.2f):\n", brand.ConfidenceThreshold)
	if len(findings) == 0 {
		b.WriteString("- none cleared the confidence threshold\n")
	}
	for _, insight := range findings {
		fmt.Fprintf(&b, "- [%s %.2f] %s\n", insight.Priority, insight.Confidence, insight.Finding)
		if insight.Recommendation != "" {
			fmt.Fprintf(&b, "  next: %s\n", insight.Recommendation)
		}
	}

	if len(metric.Recommendations) > 0 {
		b.WriteString("\nStanding recommendations:\n")
		for _, rec := range metric.Recommendations {
			fmt.Fprintf(&b, "- [%s] %s\n", rec.Priority, rec.Action)
		}
	}

	fmt.Fprintf(&b, "\nWorkers: %d contributing, %d failed. Overall confidence %.2f.\n",
		report.ContributingWorkers, report.FailedWorkers, report.OverallConfidence)

	return b.String()
}

func topFindings(insights []domain.Insight, threshold float64) []domain.Insight {
	var kept []domain.Insight
	for _, insight := range insights {
		if insight.Confidence >= threshold {
			kept = append(kept, insight)
		}
	}
	return kept
}

func lookbackDays(brand config.BrandConfig) int {
	if brand.LookbackDays > 0 {
		return brand.LookbackDays
	}
	return 30
}
