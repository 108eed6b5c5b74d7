package medallion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// Quality scoring checks the presence of these fields; the score is the
// fraction that are filled.
const qualityChecks = 10

// Transformer moves collected data through the warehouse layers. Each layer
// write is a barrier: on failure the error is returned immediately and later
// layers must not run.
type Transformer struct {
	warehouse ports.Warehouse
	cfg       config.MedallionConfig
	logger    *slog.Logger
}

// New builds a Transformer over the given warehouse.
func New(warehouse ports.Warehouse, cfg config.MedallionConfig, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		warehouse: warehouse,
		cfg:       cfg,
		logger:    logger.With("component", "medallion"),
	}
}

// IngestBronze appends the run's observations and comments as-is. Bronze is
// append-only: nothing already stored is touched.
func (t *Transformer) IngestBronze(ctx context.Context, brand config.BrandConfig, obs []domain.RawObservation, comments []domain.Comment) error {
	if len(obs) > 0 {
		if err := t.warehouse.AppendRaw(ctx, brand.Name, obs); err != nil {
			return fmt.Errorf("bronze append: %w", err)
		}
	}
	if len(comments) > 0 {
		if err := t.warehouse.AppendComments(ctx, brand.Name, comments); err != nil {
			return fmt.Errorf("bronze comments append: %w", err)
		}
	}
	t.logger.Info("bronze ingested", "brand", brand.Name, "observations", len(obs), "comments", len(comments))
	return nil
}

// CurateSilver reads bronze versions from the window start, collapses them to
// one validated record per video, enriches and scores each, and overwrites
// the affected publish-date partitions. Unchanged bronze always produces
// identical silver.
func (t *Transformer) CurateSilver(ctx context.Context, brand config.BrandConfig, since time.Time) ([]domain.CuratedRecord, error) {
	raw, err := t.warehouse.RawObservations(ctx, brand.Name, since)
	if err != nil {
		return nil, fmt.Errorf("silver read bronze: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	records := t.curate(raw, brand)

	partitions := make(map[string][]domain.CuratedRecord)
	for _, r := range records {
		key := r.PartitionKey()
		partitions[key] = append(partitions[key], r)
	}
	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := t.warehouse.OverwriteCurated(ctx, brand.Name, key, partitions[key]); err != nil {
			return nil, fmt.Errorf("silver overwrite partition %s: %w", key, err)
		}
	}

	t.logger.Info("silver curated", "brand", brand.Name, "records", len(records), "partitions", len(keys))
	return records, nil
}

// AggregateGold reads the curated window and overwrites the brand's gold
// aggregate. The metric depends only on the silver set and the window
// bounds, so re-running against unchanged silver rewrites identical bytes.
func (t *Transformer) AggregateGold(ctx context.Context, brand config.BrandConfig, windowStart, windowEnd time.Time) (domain.AggregateMetric, error) {
	records, err := t.warehouse.CuratedRecords(ctx, brand.Name, windowStart)
	if err != nil {
		return domain.AggregateMetric{}, fmt.Errorf("gold read silver: %w", err)
	}

	metric := t.aggregate(brand, records, windowStart, windowEnd)
	if err := t.warehouse.OverwriteAggregate(ctx, metric); err != nil {
		return domain.AggregateMetric{}, fmt.Errorf("gold overwrite: %w", err)
	}

	t.logger.Info("gold aggregated", "brand", brand.Name, "videos", metric.TotalVideos, "low_quality", metric.LowQualityCount)
	return metric, nil
}

// curate collapses raw versions into one record per video id. The most
// recent version's fields win; every consumed version lands in provenance.
func (t *Transformer) curate(raw []domain.RawObservation, brand config.BrandConfig) []domain.CuratedRecord {
	groups := make(map[string][]domain.RawObservation)
	for _, o := range raw {
		if o.VideoID == "" {
			continue
		}
		groups[o.VideoID] = append(groups[o.VideoID], o)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]domain.CuratedRecord, 0, len(ids))
	for _, id := range ids {
		versions := groups[id]
		sort.Slice(versions, func(i, j int) bool {
			return versions[i].CollectedAt.Before(versions[j].CollectedAt)
		})
		latest := versions[len(versions)-1]

		provenance := make([]domain.ProvenanceRef, 0, len(versions))
		for _, v := range versions {
			provenance = append(provenance, domain.ProvenanceRef{CollectedAt: v.CollectedAt, Source: v.Source})
		}

		quality := qualityScore(latest)
		mentions, competitor := brandSignals(latest, brand)

		records = append(records, domain.CuratedRecord{
			VideoID:        latest.VideoID,
			Title:          latest.Title,
			ChannelID:      latest.ChannelID,
			ChannelTitle:   latest.ChannelTitle,
			PublishedDate:  latest.PublishedAt.UTC().Truncate(24 * time.Hour),
			ViewCount:      latest.ViewCount,
			LikeCount:      latest.LikeCount,
			CommentCount:   latest.CommentCount,
			EngagementRate: latest.EngagementRate,
			ContentThemes:  extractThemes(latest, brand.CoreThemes),
			SentimentScore: SentimentScore(latest.Title + " " + latest.Description),
			BrandMentions:  mentions,
			CompetitorFlag: competitor,
			QualityScore:   quality,
			LowQuality:     quality < t.threshold(),
			Provenance:     provenance,
			ProcessedAt:    latest.CollectedAt,
		})
	}
	return records
}

func (t *Transformer) aggregate(brand config.BrandConfig, records []domain.CuratedRecord, windowStart, windowEnd time.Time) domain.AggregateMetric {
	metric := domain.AggregateMetric{
		BrandName:   brand.Name,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	themeCounts := make(map[string]int)
	var sumEngagement, sumQuality, sumSentiment float64
	var competitors int

	for _, r := range records {
		if r.PublishedDate.Before(windowStart) || !r.PublishedDate.Before(windowEnd) {
			continue
		}
		if r.LowQuality {
			metric.LowQualityCount++
			continue
		}
		metric.TotalVideos++
		metric.TotalViews += r.ViewCount
		metric.TotalLikes += r.LikeCount
		metric.TotalComments += r.CommentCount
		sumEngagement += r.EngagementRate
		sumQuality += r.QualityScore
		sumSentiment += r.SentimentScore
		if r.CompetitorFlag {
			competitors++
		}
		for _, theme := range r.ContentThemes {
			themeCounts[theme]++
		}
	}

	if metric.TotalVideos > 0 {
		n := float64(metric.TotalVideos)
		metric.AvgEngagementRate = round2(sumEngagement / n)
		metric.AvgQualityScore = round2(sumQuality / n)
		metric.AvgSentiment = round2(sumSentiment / n)
		metric.ShareOfVoice = round2(float64(competitors) / n)
	}
	metric.TopThemes = topThemes(themeCounts, t.topThemes())
	metric.Recommendations = recommend(metric)
	return metric
}

func (t *Transformer) threshold() float64 {
	if t.cfg.QualityThreshold > 0 {
		return t.cfg.QualityThreshold
	}
	return 0.5
}

func (t *Transformer) topThemes() int {
	if t.cfg.TopThemes > 0 {
		return t.cfg.TopThemes
	}
	return 5
}

func qualityScore(o domain.RawObservation) float64 {
	present := 0
	if o.VideoID != "" {
		present++
	}
	if o.Title != "" {
		present++
	}
	if o.ViewCount > 0 {
		present++
	}
	if o.Description != "" {
		present++
	}
	if o.ChannelID != "" {
		present++
	}
	if o.ChannelTitle != "" {
		present++
	}
	if !o.PublishedAt.IsZero() {
		present++
	}
	if o.Duration != "" {
		present++
	}
	if len(o.Tags) > 0 {
		present++
	}
	if o.LikeCount > 0 || o.CommentCount > 0 {
		present++
	}
	return round2(float64(present) / qualityChecks)
}

func topThemes(counts map[string]int, n int) []string {
	type themeCount struct {
		theme string
		count int
	}
	all := make([]themeCount, 0, len(counts))
	for theme, count := range counts {
		all = append(all, themeCount{theme, count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].theme < all[j].theme
	})
	if len(all) > n {
		all = all[:n]
	}
	themes := make([]string, 0, len(all))
	for _, tc := range all {
		themes = append(themes, tc.theme)
	}
	return themes
}

// recommend derives a ranked action list from the aggregate. Rules are fixed
// so the same metric always yields the same list.
func recommend(m domain.AggregateMetric) []domain.Recommendation {
	var recs []domain.Recommendation

	if m.AvgEngagementRate >= 5 {
		recs = append(recs, domain.Recommendation{
			Action:     "Scale the formats driving engagement above 5 percent",
			Priority:   domain.PriorityHigh,
			Confidence: 0.85,
		})
	}
	if m.ShareOfVoice >= 0.3 {
		recs = append(recs, domain.Recommendation{
			Action:     "Grow branded content share against competitor voice",
			Priority:   domain.PriorityHigh,
			Confidence: 0.80,
		})
	}
	if m.AvgSentiment < 0 {
		recs = append(recs, domain.Recommendation{
			Action:     "Address recurring negative sentiment in upcoming briefs",
			Priority:   domain.PriorityHigh,
			Confidence: 0.75,
		})
	}
	if len(m.TopThemes) > 0 {
		recs = append(recs, domain.Recommendation{
			Action:     "Align creative briefs with leading theme: " + m.TopThemes[0],
			Priority:   domain.PriorityMedium,
			Confidence: 0.70,
		})
	}
	if m.LowQualityCount > m.TotalVideos {
		recs = append(recs, domain.Recommendation{
			Action:     "Expand collection coverage, most records lack detail",
			Priority:   domain.PriorityLow,
			Confidence: 0.65,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Priority.Rank() != recs[j].Priority.Rank() {
			return recs[i].Priority.Rank() < recs[j].Priority.Rank()
		}
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		return recs[i].Action < recs[j].Action
	})
	return recs
}
