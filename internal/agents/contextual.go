package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// WorkerContextualIntelligence reads the cultural and semantic context the
// brand's content lives in.
const WorkerContextualIntelligence = "contextual_intelligence"

const contextualPrompt = `You are a cultural context analyst for short-form video.
From the attached brand metrics, assess semantic themes, cultural relevance and
brand safety. Respond with JSON only:
{"insights":[{"insight_category":"...","finding":"...","evidence":["..."],"actionable_recommendation":"...","priority":"high|medium|low"}]}`

// ContextualWorker maps observed themes against the brand's own narrative.
type ContextualWorker struct {
	base
}

// NewContextualWorker builds the contextual_intelligence worker.
func NewContextualWorker(client ports.InsightClient, scorer *Scorer, logger *slog.Logger) *ContextualWorker {
	return &ContextualWorker{newBase(WorkerContextualIntelligence, client, scorer, logger)}
}

func (w *ContextualWorker) Analyze(ctx context.Context, snap Context) (domain.AgentReport, error) {
	return w.analyze(ctx, snap, contextualPrompt, w.localInsights)
}

func (w *ContextualWorker) localInsights(snap Context) []domain.Insight {
	var insights []domain.Insight

	if aligned, drifted := w.themeAlignment(snap); len(aligned)+len(drifted) > 0 {
		evidence := make([]string, 0, len(aligned)+len(drifted))
		for _, theme := range aligned {
			evidence = append(evidence, "theme:"+theme)
		}
		for _, theme := range drifted {
			evidence = append(evidence, "theme:"+theme)
		}
		finding := fmt.Sprintf("%d of the brand's core themes are active in the window", len(aligned))
		if len(drifted) > 0 {
			finding += "; conversation also gathers around: " + strings.Join(drifted, ", ")
		}
		insights = append(insights, domain.Insight{
			Category:       "Semantic Themes",
			Finding:        finding,
			Evidence:       evidence,
			Recommendation: "Keep briefs anchored to the active core themes and evaluate the outside themes for fit",
			Priority:       domain.PriorityHigh,
		})
	}

	if snap.Metric.TotalVideos > 0 {
		mood := "neutral"
		priority := domain.PriorityMedium
		switch {
		case snap.Metric.AvgSentiment >= 0.2:
			mood = "positive"
		case snap.Metric.AvgSentiment <= -0.2:
			mood = "negative"
			priority = domain.PriorityHigh
		}
		insights = append(insights, domain.Insight{
			Category: "Cultural Relevance",
			Finding: fmt.Sprintf("Conversation tone around the brand is %s (avg sentiment %.2f over %d videos)",
				mood, snap.Metric.AvgSentiment, snap.Metric.TotalVideos),
			Evidence:       []string{"metric:avg_sentiment", fmt.Sprintf("metric:total_videos:%d", snap.Metric.TotalVideos)},
			Recommendation: "Match publishing tone to the measured mood and monitor shifts between runs",
			Priority:       priority,
		})
	}

	if negatives := w.negativeRecords(snap); len(negatives) > 0 {
		evidence := make([]string, 0, len(negatives))
		for _, r := range negatives {
			evidence = append(evidence, "video:"+r.VideoID)
		}
		insights = append(insights, domain.Insight{
			Category:       "Brand Safety",
			Finding:        fmt.Sprintf("%d videos in the window carry strongly negative sentiment", len(negatives)),
			Evidence:       evidence,
			Recommendation: "Review the flagged videos before amplifying adjacent creators or themes",
			Priority:       domain.PriorityLow,
		})
	}

	return insights
}

// themeAlignment splits the window's top themes into ones matching the
// brand's core narrative and ones outside it.
func (w *ContextualWorker) themeAlignment(snap Context) (aligned, drifted []string) {
	core := make(map[string]bool, len(snap.Brand.CoreThemes))
	for _, theme := range snap.Brand.CoreThemes {
		core[strings.ToLower(theme)] = true
	}
	for _, theme := range snap.Metric.TopThemes {
		if core[strings.ToLower(theme)] {
			aligned = append(aligned, theme)
		} else {
			drifted = append(drifted, theme)
		}
	}
	return aligned, drifted
}

func (w *ContextualWorker) negativeRecords(snap Context) []domain.CuratedRecord {
	var negatives []domain.CuratedRecord
	for _, r := range snap.QualityRecords() {
		if r.SentimentScore <= -0.5 {
			negatives = append(negatives, r)
		}
		if len(negatives) == 5 {
			break
		}
	}
	return negatives
}
