package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/medallion"
	"ShortsIntel/internal/ports"
)

// WorkerAudienceInsight reads how viewers respond: engagement behavior,
// comment sentiment and content preferences.
const WorkerAudienceInsight = "audience_insight"

const audiencePrompt = `You are an audience research analyst for short-form video.
From the attached brand metrics and comment volume, assess engagement behavior,
audience sentiment and content preferences. Respond with JSON only:
{"insights":[{"insight_category":"...","finding":"...","evidence":["..."],"actionable_recommendation":"...","priority":"high|medium|low"}]}`

// AudienceWorker analyzes viewer reaction rather than creator output.
type AudienceWorker struct {
	base
}

// NewAudienceWorker builds the audience_insight worker.
func NewAudienceWorker(client ports.InsightClient, scorer *Scorer, logger *slog.Logger) *AudienceWorker {
	return &AudienceWorker{newBase(WorkerAudienceInsight, client, scorer, logger)}
}

func (w *AudienceWorker) Analyze(ctx context.Context, snap Context) (domain.AgentReport, error) {
	return w.analyze(ctx, snap, audiencePrompt, w.localInsights)
}

func (w *AudienceWorker) localInsights(snap Context) []domain.Insight {
	var insights []domain.Insight

	quality := snap.QualityRecords()
	if len(quality) > 0 {
		above := 0
		for _, r := range quality {
			if r.EngagementRate >= snap.Brand.MinEngagementRate {
				above++
			}
		}
		share := float64(above) / float64(len(quality))
		priority := domain.PriorityMedium
		if share >= 0.25 {
			priority = domain.PriorityHigh
		}
		evidence := []string{fmt.Sprintf("metric:engaged_share:%.2f", share)}
		for _, r := range snap.TopByEngagement(3) {
			evidence = append(evidence, "video:"+r.VideoID)
		}
		insights = append(insights, domain.Insight{
			Category: "Engagement Behavior",
			Finding: fmt.Sprintf("%d of %d videos clear the %.1f%% engagement bar",
				above, len(quality), snap.Brand.MinEngagementRate),
			Evidence:       evidence,
			Recommendation: "Mirror the interaction patterns of the most engaging videos in new briefs",
			Priority:       priority,
		})
	}

	if len(snap.Comments) > 0 {
		sentiment, topLiked := w.commentSignal(snap.Comments)
		mood := "neutral"
		priority := domain.PriorityMedium
		switch {
		case sentiment >= 0.2:
			mood = "positive"
		case sentiment <= -0.2:
			mood = "negative"
			priority = domain.PriorityHigh
		}
		evidence := make([]string, 0, len(topLiked)+1)
		evidence = append(evidence, fmt.Sprintf("metric:comment_sentiment:%.2f", sentiment))
		for _, c := range topLiked {
			evidence = append(evidence, "comment:"+c.CommentID)
		}
		insights = append(insights, domain.Insight{
			Category: "Audience Sentiment",
			Finding: fmt.Sprintf("Comment tone across %d comments is %s (%.2f)",
				len(snap.Comments), mood, sentiment),
			Evidence:       evidence,
			Recommendation: "Answer the most-liked comments and fold recurring questions into content",
			Priority:       priority,
		})
	}

	if themes := w.preferredThemes(snap); len(themes) > 0 {
		evidence := make([]string, 0, len(themes))
		for _, theme := range themes {
			evidence = append(evidence, "theme:"+theme)
		}
		insights = append(insights, domain.Insight{
			Category:       "Content Preferences",
			Finding:        "High-engagement videos cluster around: " + strings.Join(themes, ", "),
			Evidence:       evidence,
			Recommendation: "Weight the content calendar toward the themes engaged viewers prefer",
			Priority:       domain.PriorityHigh,
		})
	}

	return insights
}

// commentSignal averages lexicon sentiment across all comments and returns
// the three most-liked ones as evidence anchors.
func (w *AudienceWorker) commentSignal(comments []domain.Comment) (float64, []domain.Comment) {
	var sum float64
	for _, c := range comments {
		sum += medallion.SentimentScore(c.Text)
	}
	avg := round2(sum / float64(len(comments)))

	top := make([]domain.Comment, len(comments))
	copy(top, comments)
	sort.Slice(top, func(i, j int) bool {
		if top[i].LikeCount != top[j].LikeCount {
			return top[i].LikeCount > top[j].LikeCount
		}
		return top[i].CommentID < top[j].CommentID
	})
	if len(top) > 3 {
		top = top[:3]
	}
	return avg, top
}

// preferredThemes counts themes over the top-engagement quartile.
func (w *AudienceWorker) preferredThemes(snap Context) []string {
	quality := snap.QualityRecords()
	if len(quality) < 4 {
		return nil
	}
	top := snap.TopByEngagement(len(quality) / 4)
	counts := make(map[string]int)
	for _, r := range top {
		for _, theme := range r.ContentThemes {
			counts[theme]++
		}
	}
	themes := make([]string, 0, len(counts))
	for theme, count := range counts {
		if count >= 2 {
			themes = append(themes, theme)
		}
	}
	sort.Strings(themes)
	if len(themes) > 5 {
		themes = themes[:5]
	}
	return themes
}
