package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// WorkerContentDiscovery identifies trending topics, viral content patterns
// and emerging opportunities.
const WorkerContentDiscovery = "content_discovery"

const discoveryPrompt = `You are a short-form video content discovery analyst.
From the attached brand metrics, identify trending themes, viral patterns and
emerging opportunities. Respond with JSON only:
{"insights":[{"insight_category":"...","finding":"...","evidence":["..."],"actionable_recommendation":"...","priority":"high|medium|low"}]}`

// DiscoveryWorker surfaces what content is moving right now.
type DiscoveryWorker struct {
	base
}

// NewDiscoveryWorker builds the content_discovery worker. A nil client means
// local extraction only.
func NewDiscoveryWorker(client ports.InsightClient, scorer *Scorer, logger *slog.Logger) *DiscoveryWorker {
	return &DiscoveryWorker{newBase(WorkerContentDiscovery, client, scorer, logger)}
}

func (w *DiscoveryWorker) Analyze(ctx context.Context, snap Context) (domain.AgentReport, error) {
	return w.analyze(ctx, snap, discoveryPrompt, w.localInsights)
}

func (w *DiscoveryWorker) localInsights(snap Context) []domain.Insight {
	var insights []domain.Insight

	if themes := snap.Metric.TopThemes; len(themes) > 0 {
		evidence := make([]string, 0, len(themes))
		for _, theme := range themes {
			evidence = append(evidence, "theme:"+theme)
		}
		insights = append(insights, domain.Insight{
			Category:       "Trending Themes",
			Finding:        "Top performing content themes: " + strings.Join(themes, ", "),
			Evidence:       evidence,
			Recommendation: "Increase production on the leading themes while they hold attention",
			Priority:       domain.PriorityHigh,
		})
	}

	if movers := w.momentumVideos(snap); len(movers) > 0 {
		evidence := make([]string, 0, len(movers))
		for _, m := range movers {
			evidence = append(evidence, "video:"+m.VideoID)
		}
		insights = append(insights, domain.Insight{
			Category: "Viral Patterns",
			Finding: fmt.Sprintf("%d videos sustain over %.0f views per day since publication",
				len(movers), snap.Brand.TrendVelocity),
			Evidence:       evidence,
			Recommendation: "Break down the hooks and formats of the momentum videos for reuse",
			Priority:       domain.PriorityHigh,
		})
	}

	var emerging []string
	for _, tr := range snap.Trends {
		if tr.Emerging {
			emerging = append(emerging, tr.Topic)
		}
	}
	if len(emerging) > 0 {
		evidence := make([]string, 0, len(emerging))
		for _, topic := range emerging {
			evidence = append(evidence, "trend:"+topic)
		}
		insights = append(insights, domain.Insight{
			Category: "Emerging Opportunities",
			Finding: fmt.Sprintf("%d topics emerging with no prior baseline: %s",
				len(emerging), strings.Join(emerging, ", ")),
			Evidence:       evidence,
			Recommendation: "Test lightweight content against the emerging topics before they saturate",
			Priority:       domain.PriorityMedium,
		})
	}

	return insights
}

// momentumVideos returns quality records whose daily view rate beats the
// brand's trend velocity threshold, capped at five for evidence.
func (w *DiscoveryWorker) momentumVideos(snap Context) []domain.CuratedRecord {
	if snap.Brand.TrendVelocity <= 0 {
		return nil
	}
	var movers []domain.CuratedRecord
	for _, r := range snap.TopByViews(len(snap.Records)) {
		if r.ViewCount < snap.Brand.MinViews {
			continue
		}
		days := snap.WindowEnd.Sub(r.PublishedDate).Hours() / 24
		if days < 1 {
			days = 1
		}
		if float64(r.ViewCount)/days >= snap.Brand.TrendVelocity {
			movers = append(movers, r)
		}
		if len(movers) == 5 {
			break
		}
	}
	return movers
}
