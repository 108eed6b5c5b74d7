package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// base carries what every worker shares. Workers differ only in their system
// prompt and their local extraction; everything else lives here.
type base struct {
	name   string
	client ports.InsightClient
	scorer *Scorer
	logger *slog.Logger
}

func newBase(name string, client ports.InsightClient, scorer *Scorer, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		name:   name,
		client: client,
		scorer: scorer,
		logger: logger.With("component", "agents", "worker", name),
	}
}

func (b base) Name() string {
	return b.name
}

// analyze produces the worker's report: model-backed when a client is
// configured, local extraction over the same snapshot otherwise. Insight
// confidence is always computed here, never taken from the model.
func (b base) analyze(ctx context.Context, snap Context, system string, local func(Context) []domain.Insight) (domain.AgentReport, error) {
	insights, err := b.generate(ctx, snap, system, local)
	if err != nil {
		return domain.AgentReport{}, err
	}

	for i := range insights {
		insights[i].Category = strings.TrimSpace(insights[i].Category)
		insights[i].Confidence = b.scorer.Score(Factors{
			SampleSize:    snap.SampleSize(),
			DataQuality:   snap.AvgQuality(),
			EvidenceCount: len(insights[i].Evidence),
		})
	}

	high := 0
	for _, ins := range insights {
		if ins.Priority == domain.PriorityHigh {
			high++
		}
	}
	return domain.AgentReport{
		Worker:   b.name,
		Insights: insights,
		Summary: fmt.Sprintf("%s: %d insights from %d records (%d high priority)",
			b.name, len(insights), snap.SampleSize(), high),
		Confidence: meanConfidence(insights),
	}, nil
}

func (b base) generate(ctx context.Context, snap Context, system string, local func(Context) []domain.Insight) ([]domain.Insight, error) {
	if b.client == nil {
		b.logger.Debug("no insight client configured, using local extraction")
		return local(snap), nil
	}

	payload, err := json.Marshal(newPayload(snap))
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", b.name, err)
	}
	raw, err := b.client.GenerateInsights(ctx, system, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: generate insights: %w", b.name, err)
	}
	insights, err := parseInsights(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	if len(insights) == 0 {
		return nil, fmt.Errorf("%s: model returned no insights", b.name)
	}
	return insights, nil
}

// analysisPayload is the snapshot digest sent to the model.
type analysisPayload struct {
	Brand           string                 `json:"brand"`
	ParentCompany   string                 `json:"parent_company,omitempty"`
	Category        string                 `json:"category"`
	WindowStart     time.Time              `json:"window_start"`
	WindowEnd       time.Time              `json:"window_end"`
	RecordCount     int                    `json:"record_count"`
	CommentCount    int                    `json:"comment_count"`
	Metrics         domain.AggregateMetric `json:"metrics"`
	Trends          []domain.TrendSignal   `json:"trends"`
	TopVideos       []videoDigest          `json:"top_videos"`
	CollectionGaps  int                    `json:"collection_gaps"`
	BudgetExhausted bool                   `json:"budget_exhausted"`
}

type videoDigest struct {
	VideoID        string   `json:"video_id"`
	Title          string   `json:"title"`
	ViewCount      int64    `json:"view_count"`
	EngagementRate float64  `json:"engagement_rate"`
	Themes         []string `json:"themes"`
}

func newPayload(snap Context) analysisPayload {
	top := snap.TopByViews(10)
	digests := make([]videoDigest, 0, len(top))
	for _, r := range top {
		digests = append(digests, videoDigest{
			VideoID:        r.VideoID,
			Title:          r.Title,
			ViewCount:      r.ViewCount,
			EngagementRate: r.EngagementRate,
			Themes:         r.ContentThemes,
		})
	}
	return analysisPayload{
		Brand:           snap.Brand.Name,
		ParentCompany:   snap.Brand.ParentCompany,
		Category:        snap.Brand.Category,
		WindowStart:     snap.WindowStart,
		WindowEnd:       snap.WindowEnd,
		RecordCount:     len(snap.Records),
		CommentCount:    len(snap.Comments),
		Metrics:         snap.Metric,
		Trends:          snap.Trends,
		TopVideos:       digests,
		CollectionGaps:  snap.Gaps,
		BudgetExhausted: snap.BudgetExhausted,
	}
}

// parseInsights decodes the model response. A response that is not the
// documented JSON shape is a worker failure, not something to repair.
func parseInsights(raw []byte) ([]domain.Insight, error) {
	var wrapper struct {
		Insights []domain.Insight `json:"insights"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("malformed insight response: %w", err)
	}

	insights := make([]domain.Insight, 0, len(wrapper.Insights))
	for _, ins := range wrapper.Insights {
		if strings.TrimSpace(ins.Finding) == "" {
			continue
		}
		switch ins.Priority {
		case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
		default:
			ins.Priority = domain.PriorityMedium
		}
		insights = append(insights, ins)
	}
	return insights, nil
}

func meanConfidence(insights []domain.Insight) float64 {
	if len(insights) == 0 {
		return 0
	}
	var sum float64
	for _, ins := range insights {
		sum += ins.Confidence
	}
	return round2(sum / float64(len(insights)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
