package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
)

type fakeInsightClient struct {
	raw     []byte
	err     error
	system  string
	payload []byte
}

func (f *fakeInsightClient) GenerateInsights(_ context.Context, system string, payload []byte) ([]byte, error) {
	f.system = system
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

// workerSnapshot is one window of curated Neutrogena data with enough signal
// for every worker's local extraction to fire.
func workerSnapshot() Context {
	end := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	published := end.AddDate(0, 0, -2)
	record := func(id, title string, views int64, engagement float64, themes ...string) domain.CuratedRecord {
		return domain.CuratedRecord{
			VideoID:        id,
			Title:          title,
			ViewCount:      views,
			EngagementRate: engagement,
			ContentThemes:  themes,
			QualityScore:   1.0,
			PublishedDate:  published,
		}
	}

	r1 := record("v1", "Best sunscreen ever?", 5000, 8.0, "skincare", "sun protection")
	r1.BrandMentions = []string{"Neutrogena"}
	r1.SentimentScore = 0.5
	r2 := record("v2", "CeraVe routine review", 3000, 6.0, "skincare")
	r2.CompetitorFlag = true
	r7 := record("v7", "shelf tour", 600, 1.1)
	r7.SentimentScore = -0.8

	return Context{
		Brand: config.BrandConfig{
			Name:              "Neutrogena",
			Competitors:       []string{"CeraVe", "Cetaphil"},
			CoreThemes:        []string{"sun protection"},
			MinViews:          100,
			MinEngagementRate: 2.0,
			TrendVelocity:     50,
		},
		RunID:       "run-7",
		WindowStart: end.AddDate(0, 0, -30),
		WindowEnd:   end,
		Records: []domain.CuratedRecord{
			r1,
			r2,
			record("v3", "Daily spf habit", 1000, 1.0, "sun protection"),
			record("v4", "tiny clip", 50, 0.5),
			record("v5", "morning routine", 800, 1.5, "skincare"),
			record("v6", "texture talk", 700, 1.2),
			r7,
			record("v8", "dupe check", 500, 1.0),
		},
		Comments: []domain.Comment{
			{CommentID: "c1", VideoID: "v1", Text: "love this, the best", LikeCount: 10},
			{CommentID: "c2", VideoID: "v1", Text: "total waste, disappointed", LikeCount: 5},
			{CommentID: "c3", VideoID: "v2", Text: "came for the glow", LikeCount: 3},
			{CommentID: "c4", VideoID: "v3", Text: "just ok", LikeCount: 1},
		},
		Metric: domain.AggregateMetric{
			TotalVideos:  7,
			AvgSentiment: 0.3,
			ShareOfVoice: 0.3,
			TopThemes:    []string{"skincare", "sun protection"},
		},
		Trends: []domain.TrendSignal{
			{Topic: "retinol", Velocity: 3, Acceleration: domain.NoBaselineAcceleration, Emerging: true},
			{Topic: "skincare", Velocity: 2, Acceleration: 0.5},
		},
	}
}

func workerScorer() *Scorer {
	return NewScorer(config.AgentsConfig{MinSampleSize: 5})
}

func findInsight(t *testing.T, insights []domain.Insight, category string) domain.Insight {
	t.Helper()
	for _, ins := range insights {
		if ins.Category == category {
			return ins
		}
	}
	t.Fatalf("no %q insight in %+v", category, insights)
	return domain.Insight{}
}

func TestRegistryResolvesRegisteredWorkers(t *testing.T) {
	t.Parallel()

	scorer := workerScorer()
	reg := NewRegistry()
	reg.Register(NewDiscoveryWorker(nil, scorer, nil))
	reg.Register(NewContextualWorker(nil, scorer, nil))
	reg.Register(NewAudienceWorker(nil, scorer, nil))
	reg.Register(NewCreativeWorker(nil, scorer, nil))
	reg.Register(NewCompetitiveWorker(nil, scorer, nil))

	want := []string{
		WorkerAudienceInsight,
		WorkerCompetitiveIntelligence,
		WorkerContentDiscovery,
		WorkerContextualIntelligence,
		WorkerCreativeStrategy,
	}
	all := reg.All()
	if len(all) != len(want) {
		t.Fatalf("got %d workers, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name() != name {
			t.Fatalf("worker %d = %q, want %q", i, all[i].Name(), name)
		}
	}

	if _, err := reg.Resolve(WorkerContentDiscovery); err != nil {
		t.Fatalf("Resolve known worker: %v", err)
	}
	if _, err := reg.Resolve("astrology"); err == nil {
		t.Fatal("Resolve unknown worker succeeded, want error")
	}
}

func TestDiscoveryWorkerLocalInsights(t *testing.T) {
	t.Parallel()

	w := NewDiscoveryWorker(nil, workerScorer(), nil)
	report, err := w.Analyze(context.Background(), workerSnapshot())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Worker != WorkerContentDiscovery {
		t.Fatalf("worker = %q, want %q", report.Worker, WorkerContentDiscovery)
	}
	if len(report.Insights) != 3 {
		t.Fatalf("got %d insights, want 3", len(report.Insights))
	}

	trending := findInsight(t, report.Insights, "Trending Themes")
	if len(trending.Evidence) != 2 || trending.Evidence[0] != "theme:skincare" {
		t.Fatalf("trending evidence = %v", trending.Evidence)
	}
	// volume 0.08*0.25 + quality 1*0.25 + evidence 0.4*0.20 + significance 0.15
	if trending.Confidence != 0.5 {
		t.Fatalf("trending confidence = %.2f, want 0.50", trending.Confidence)
	}

	// v4 sits under the view floor, the remaining five clear 50 views/day.
	viral := findInsight(t, report.Insights, "Viral Patterns")
	if len(viral.Evidence) != 5 {
		t.Fatalf("viral evidence = %v, want five momentum videos", viral.Evidence)
	}
	for _, ref := range viral.Evidence {
		if ref == "video:v4" {
			t.Fatal("momentum videos include v4, which is under the brand's view floor")
		}
	}

	emerging := findInsight(t, report.Insights, "Emerging Opportunities")
	if !strings.Contains(emerging.Finding, "retinol") || strings.Contains(emerging.Finding, "skincare") {
		t.Fatalf("emerging finding = %q, want retinol only", emerging.Finding)
	}
	if emerging.Priority != domain.PriorityMedium {
		t.Fatalf("emerging priority = %q, want medium", emerging.Priority)
	}

	if report.Summary != "content_discovery: 3 insights from 8 records (2 high priority)" {
		t.Fatalf("summary = %q", report.Summary)
	}
	if report.Confidence <= 0 || report.Confidence > 1 {
		t.Fatalf("report confidence = %.2f", report.Confidence)
	}
}

func TestContextualWorkerLocalInsights(t *testing.T) {
	t.Parallel()

	w := NewContextualWorker(nil, workerScorer(), nil)
	report, err := w.Analyze(context.Background(), workerSnapshot())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	semantic := findInsight(t, report.Insights, "Semantic Themes")
	if !strings.Contains(semantic.Finding, "1 of the brand's core themes") {
		t.Fatalf("semantic finding = %q", semantic.Finding)
	}
	if !strings.Contains(semantic.Finding, "skincare") {
		t.Fatalf("semantic finding misses the drifted theme: %q", semantic.Finding)
	}

	cultural := findInsight(t, report.Insights, "Cultural Relevance")
	if !strings.Contains(cultural.Finding, "positive") || cultural.Priority != domain.PriorityMedium {
		t.Fatalf("cultural insight = %q/%s, want positive/medium", cultural.Finding, cultural.Priority)
	}

	safety := findInsight(t, report.Insights, "Brand Safety")
	if len(safety.Evidence) != 1 || safety.Evidence[0] != "video:v7" {
		t.Fatalf("safety evidence = %v, want only v7", safety.Evidence)
	}
	if safety.Priority != domain.PriorityLow {
		t.Fatalf("safety priority = %q, want low", safety.Priority)
	}
}

func TestAudienceWorkerLocalInsights(t *testing.T) {
	t.Parallel()

	w := NewAudienceWorker(nil, workerScorer(), nil)
	report, err := w.Analyze(context.Background(), workerSnapshot())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	engagement := findInsight(t, report.Insights, "Engagement Behavior")
	if !strings.Contains(engagement.Finding, "2 of 8 videos") {
		t.Fatalf("engagement finding = %q", engagement.Finding)
	}
	// 2 of 8 over the bar is exactly the quarter that flips priority.
	if engagement.Priority != domain.PriorityHigh {
		t.Fatalf("engagement priority = %q, want high", engagement.Priority)
	}

	sentiment := findInsight(t, report.Insights, "Audience Sentiment")
	if !strings.Contains(sentiment.Finding, "4 comments") || !strings.Contains(sentiment.Finding, "positive") {
		t.Fatalf("sentiment finding = %q", sentiment.Finding)
	}
	wantEvidence := []string{"metric:comment_sentiment:0.25", "comment:c1", "comment:c2", "comment:c3"}
	if len(sentiment.Evidence) != len(wantEvidence) {
		t.Fatalf("sentiment evidence = %v", sentiment.Evidence)
	}
	for i, ref := range wantEvidence {
		if sentiment.Evidence[i] != ref {
			t.Fatalf("sentiment evidence[%d] = %q, want %q", i, sentiment.Evidence[i], ref)
		}
	}

	preferences := findInsight(t, report.Insights, "Content Preferences")
	if len(preferences.Evidence) != 1 || preferences.Evidence[0] != "theme:skincare" {
		t.Fatalf("preferences evidence = %v, want only the theme both leaders share", preferences.Evidence)
	}
}

func TestCreativeWorkerLocalInsights(t *testing.T) {
	t.Parallel()

	w := NewCreativeWorker(nil, workerScorer(), nil)
	report, err := w.Analyze(context.Background(), workerSnapshot())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	format := findInsight(t, report.Insights, "Creative Format")
	if !strings.Contains(format.Finding, "beat") || format.Priority != domain.PriorityHigh {
		t.Fatalf("format insight = %q/%s, want the question hook winning", format.Finding, format.Priority)
	}

	messaging := findInsight(t, report.Insights, "Messaging Strategy")
	if messaging.Priority != domain.PriorityHigh {
		t.Fatalf("messaging priority = %q, want high when branded engagement leads", messaging.Priority)
	}

	visual := findInsight(t, report.Insights, "Visual Design")
	want := []string{"video:v1", "video:v2", "video:v5"}
	if len(visual.Evidence) != len(want) {
		t.Fatalf("visual evidence = %v", visual.Evidence)
	}
	for i, ref := range want {
		if visual.Evidence[i] != ref {
			t.Fatalf("visual evidence[%d] = %q, want %q", i, visual.Evidence[i], ref)
		}
	}
}

func TestCompetitiveWorkerLocalInsights(t *testing.T) {
	t.Parallel()

	w := NewCompetitiveWorker(nil, workerScorer(), nil)
	report, err := w.Analyze(context.Background(), workerSnapshot())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	share := findInsight(t, report.Insights, "Market Share")
	if !strings.Contains(share.Finding, "losing ground") || share.Priority != domain.PriorityHigh {
		t.Fatalf("share insight = %q/%s, want high at 30%% share of voice", share.Finding, share.Priority)
	}

	strategy := findInsight(t, report.Insights, "Competitive Strategy")
	if len(strategy.Evidence) != 1 || strategy.Evidence[0] != "video:v2" {
		t.Fatalf("strategy evidence = %v, want the flagged competitor video", strategy.Evidence)
	}
	if !strings.Contains(strategy.Finding, "3K") {
		t.Fatalf("strategy finding = %q, want the 3K reach", strategy.Finding)
	}

	positioning := findInsight(t, report.Insights, "Strategic Positioning")
	if !strings.Contains(positioning.Finding, "CeraVe") || strings.Contains(positioning.Finding, "Cetaphil") {
		t.Fatalf("positioning finding = %q, want only the competitor seen in titles", positioning.Finding)
	}
}

func TestModelBackedWorkerParsesInsights(t *testing.T) {
	t.Parallel()

	client := &fakeInsightClient{raw: []byte(`{"insights":[
		{"insight_category":"Trending Themes","finding":"glow routines are compounding","evidence":["theme:glow"],"actionable_recommendation":"brief against glow","priority":"urgent","confidence_score":0.99},
		{"insight_category":"Noise","finding":"   ","priority":"low"}
	]}`)}

	w := NewDiscoveryWorker(client, workerScorer(), nil)
	report, err := w.Analyze(context.Background(), workerSnapshot())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if client.system == "" || !strings.Contains(string(client.payload), `"brand":"Neutrogena"`) {
		t.Fatalf("client called with system %q, payload %s", client.system, client.payload)
	}
	if len(report.Insights) != 1 {
		t.Fatalf("got %d insights, want the blank finding dropped", len(report.Insights))
	}

	got := report.Insights[0]
	if got.Finding != "glow routines are compounding" {
		t.Fatalf("finding = %q", got.Finding)
	}
	if got.Priority != domain.PriorityMedium {
		t.Fatalf("priority = %q, want unknown value coerced to medium", got.Priority)
	}
	// volume 0.08*0.25 + quality 1*0.25 + evidence 0.2*0.20 + significance 0.15,
	// never the model's own 0.99.
	if got.Confidence != 0.46 {
		t.Fatalf("confidence = %.2f, want 0.46", got.Confidence)
	}
}

func TestModelBackedWorkerRejectsBadResponses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "here is your analysis"},
		{name: "no insights", raw: `{"insights":[]}`},
		{name: "all blank", raw: `{"insights":[{"finding":"  "}]}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := NewAudienceWorker(&fakeInsightClient{raw: []byte(tc.raw)}, workerScorer(), nil)
			_, err := w.Analyze(context.Background(), workerSnapshot())
			if err == nil {
				t.Fatal("Analyze succeeded on a bad model response, want error")
			}
			if !strings.Contains(err.Error(), WorkerAudienceInsight) {
				t.Fatalf("error %q does not name the worker", err)
			}
		})
	}
}
