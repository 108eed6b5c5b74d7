package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// WorkerCompetitiveIntelligence tracks rival share of the conversation and
// what competitors are doing with it.
const WorkerCompetitiveIntelligence = "competitive_intelligence"

const competitivePrompt = `You are a competitive intelligence analyst for short-form video.
From the attached brand metrics, assess competitor share of voice and strategy.
Respond with JSON only:
{"insights":[{"insight_category":"...","finding":"...","evidence":["..."],"actionable_recommendation":"...","priority":"high|medium|low"}]}`

// CompetitiveWorker measures the brand's position against its competitor set.
type CompetitiveWorker struct {
	base
}

// NewCompetitiveWorker builds the competitive_intelligence worker.
func NewCompetitiveWorker(client ports.InsightClient, scorer *Scorer, logger *slog.Logger) *CompetitiveWorker {
	return &CompetitiveWorker{newBase(WorkerCompetitiveIntelligence, client, scorer, logger)}
}

func (w *CompetitiveWorker) Analyze(ctx context.Context, snap Context) (domain.AgentReport, error) {
	return w.analyze(ctx, snap, competitivePrompt, w.localInsights)
}

func (w *CompetitiveWorker) localInsights(snap Context) []domain.Insight {
	var insights []domain.Insight

	if snap.Metric.TotalVideos > 0 {
		priority := domain.PriorityMedium
		position := "holds the conversation"
		if snap.Metric.ShareOfVoice >= 0.3 {
			priority = domain.PriorityHigh
			position = "is losing ground in the conversation"
		}
		insights = append(insights, domain.Insight{
			Category: "Market Share",
			Finding: fmt.Sprintf("Competitor content takes %.0f%% of the window, the brand %s",
				snap.Metric.ShareOfVoice*100, position),
			Evidence: []string{
				fmt.Sprintf("metric:share_of_voice:%.2f", snap.Metric.ShareOfVoice),
				fmt.Sprintf("metric:total_videos:%d", snap.Metric.TotalVideos),
			},
			Recommendation: "Track share of voice run over run and set a ceiling that triggers campaign response",
			Priority:       priority,
		})
	}

	if rivals := w.topCompetitorVideos(snap); len(rivals) > 0 {
		evidence := make([]string, 0, len(rivals))
		for _, r := range rivals {
			evidence = append(evidence, "video:"+r.VideoID)
		}
		insights = append(insights, domain.Insight{
			Category: "Competitive Strategy",
			Finding: fmt.Sprintf("Top competitor videos reach %s views in the window",
				formatViews(rivals)),
			Evidence:       evidence,
			Recommendation: "Counter-program the highest reaching competitor formats within two weeks",
			Priority:       domain.PriorityHigh,
		})
	}

	if names := w.activeCompetitors(snap); len(names) > 0 {
		evidence := make([]string, 0, len(names))
		for _, name := range names {
			evidence = append(evidence, "competitor:"+name)
		}
		insights = append(insights, domain.Insight{
			Category:       "Strategic Positioning",
			Finding:        "Competitors active in the window: " + strings.Join(names, ", "),
			Evidence:       evidence,
			Recommendation: "Map claimed benefits of active competitors against the brand's own messaging",
			Priority:       domain.PriorityMedium,
		})
	}

	return insights
}

func (w *CompetitiveWorker) topCompetitorVideos(snap Context) []domain.CuratedRecord {
	var rivals []domain.CuratedRecord
	for _, r := range snap.QualityRecords() {
		if r.CompetitorFlag {
			rivals = append(rivals, r)
		}
	}
	sort.Slice(rivals, func(i, j int) bool {
		if rivals[i].ViewCount != rivals[j].ViewCount {
			return rivals[i].ViewCount > rivals[j].ViewCount
		}
		return rivals[i].VideoID < rivals[j].VideoID
	})
	if len(rivals) > 3 {
		rivals = rivals[:3]
	}
	return rivals
}

// activeCompetitors lists configured competitors whose name shows up in the
// window's titles.
func (w *CompetitiveWorker) activeCompetitors(snap Context) []string {
	var active []string
	for _, rival := range snap.Brand.Competitors {
		needle := strings.ToLower(rival)
		for _, r := range snap.Records {
			if strings.Contains(strings.ToLower(r.Title), needle) {
				active = append(active, rival)
				break
			}
		}
	}
	sort.Strings(active)
	return active
}

func formatViews(records []domain.CuratedRecord) string {
	total := int64(0)
	for _, r := range records {
		total += r.ViewCount
	}
	switch {
	case total >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(total)/1_000_000)
	case total >= 1_000:
		return fmt.Sprintf("%.0fK", float64(total)/1_000)
	default:
		return fmt.Sprintf("%d", total)
	}
}
