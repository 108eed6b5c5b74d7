package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// WorkerCreativeStrategy derives format and messaging guidance from what is
// measurably working.
const WorkerCreativeStrategy = "creative_strategy"

const creativePrompt = `You are a creative strategist for short-form video.
From the attached brand metrics, derive creative format and messaging guidance.
Respond with JSON only:
{"insights":[{"insight_category":"...","finding":"...","evidence":["..."],"actionable_recommendation":"...","priority":"high|medium|low"}]}`

// CreativeWorker compares title construction and brand presence against
// engagement outcomes.
type CreativeWorker struct {
	base
}

// NewCreativeWorker builds the creative_strategy worker.
func NewCreativeWorker(client ports.InsightClient, scorer *Scorer, logger *slog.Logger) *CreativeWorker {
	return &CreativeWorker{newBase(WorkerCreativeStrategy, client, scorer, logger)}
}

func (w *CreativeWorker) Analyze(ctx context.Context, snap Context) (domain.AgentReport, error) {
	return w.analyze(ctx, snap, creativePrompt, w.localInsights)
}

func (w *CreativeWorker) localInsights(snap Context) []domain.Insight {
	var insights []domain.Insight
	quality := snap.QualityRecords()
	if len(quality) == 0 {
		return nil
	}

	if hook, plain, hooked := hookSplit(quality); hooked > 0 && hooked < len(quality) {
		lift := hook - plain
		priority := domain.PriorityMedium
		verb := "match"
		if lift > 0 {
			priority = domain.PriorityHigh
			verb = "beat"
		}
		insights = append(insights, domain.Insight{
			Category: "Creative Format",
			Finding: fmt.Sprintf("Question-hook titles %s plain titles on engagement (%.2f%% vs %.2f%%)",
				verb, hook, plain),
			Evidence: []string{
				fmt.Sprintf("metric:hook_engagement:%.2f", hook),
				fmt.Sprintf("metric:plain_engagement:%.2f", plain),
				fmt.Sprintf("metric:hooked_videos:%d", hooked),
			},
			Recommendation: "Lead upcoming scripts with a question hook in the first seconds",
			Priority:       priority,
		})
	}

	branded, unbranded := mentionSplit(quality)
	if branded.count > 0 && unbranded.count > 0 {
		priority := domain.PriorityMedium
		rec := "Keep brand presence light and native to the format"
		if branded.avg >= unbranded.avg {
			priority = domain.PriorityHigh
			rec = "Branded mentions do not suppress engagement, integrate products directly"
		}
		insights = append(insights, domain.Insight{
			Category: "Messaging Strategy",
			Finding: fmt.Sprintf("Videos mentioning the brand average %.2f%% engagement vs %.2f%% without",
				branded.avg, unbranded.avg),
			Evidence: []string{
				fmt.Sprintf("metric:branded_engagement:%.2f", branded.avg),
				fmt.Sprintf("metric:unbranded_engagement:%.2f", unbranded.avg),
			},
			Recommendation: rec,
			Priority:       priority,
		})
	}

	if leaders := snap.TopByEngagement(3); len(leaders) > 0 {
		evidence := make([]string, 0, len(leaders))
		for _, r := range leaders {
			evidence = append(evidence, "video:"+r.VideoID)
		}
		insights = append(insights, domain.Insight{
			Category:       "Visual Design",
			Finding:        fmt.Sprintf("Engagement leaders to storyboard against: %s", leaderTitles(leaders)),
			Evidence:       evidence,
			Recommendation: "Storyboard the top three engagement leaders shot by shot before the next shoot",
			Priority:       domain.PriorityMedium,
		})
	}

	return insights
}

type engagementSplit struct {
	count int
	avg   float64
}

// hookSplit compares average engagement of question-hook titles against the
// rest.
func hookSplit(records []domain.CuratedRecord) (hookAvg, plainAvg float64, hooked int) {
	var hookSum, plainSum float64
	plain := 0
	for _, r := range records {
		if strings.Contains(r.Title, "?") {
			hookSum += r.EngagementRate
			hooked++
		} else {
			plainSum += r.EngagementRate
			plain++
		}
	}
	if hooked > 0 {
		hookAvg = round2(hookSum / float64(hooked))
	}
	if plain > 0 {
		plainAvg = round2(plainSum / float64(plain))
	}
	return hookAvg, plainAvg, hooked
}

func mentionSplit(records []domain.CuratedRecord) (branded, unbranded engagementSplit) {
	var brandedSum, unbrandedSum float64
	for _, r := range records {
		if len(r.BrandMentions) > 0 {
			brandedSum += r.EngagementRate
			branded.count++
		} else {
			unbrandedSum += r.EngagementRate
			unbranded.count++
		}
	}
	if branded.count > 0 {
		branded.avg = round2(brandedSum / float64(branded.count))
	}
	if unbranded.count > 0 {
		unbranded.avg = round2(unbrandedSum / float64(unbranded.count))
	}
	return branded, unbranded
}

func leaderTitles(records []domain.CuratedRecord) string {
	titles := make([]string, 0, len(records))
	for _, r := range records {
		title := r.Title
		if len(title) > 40 {
			title = title[:40] + "..."
		}
		titles = append(titles, title)
	}
	return strings.Join(titles, "; ")
}
