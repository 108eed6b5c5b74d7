package agents

import (
	"sort"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
)

// Context is the immutable snapshot every worker analyzes. Workers read only
// this; none of them touches the warehouse or the platform.
type Context struct {
	Brand           config.BrandConfig
	RunID           string
	WindowStart     time.Time
	WindowEnd       time.Time
	Records         []domain.CuratedRecord
	Comments        []domain.Comment
	Metric          domain.AggregateMetric
	Trends          []domain.TrendSignal
	Gaps            int
	BudgetExhausted bool
}

// SampleSize is the number of curated records backing the analysis.
func (c Context) SampleSize() int {
	return len(c.Records)
}

// AvgQuality is the mean quality score across all records.
func (c Context) AvgQuality() float64 {
	if len(c.Records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range c.Records {
		sum += r.QualityScore
	}
	return sum / float64(len(c.Records))
}

// QualityRecords returns the records that passed the quality gate.
func (c Context) QualityRecords() []domain.CuratedRecord {
	records := make([]domain.CuratedRecord, 0, len(c.Records))
	for _, r := range c.Records {
		if !r.LowQuality {
			records = append(records, r)
		}
	}
	return records
}

// TopByEngagement returns up to n quality records, most engaging first.
func (c Context) TopByEngagement(n int) []domain.CuratedRecord {
	records := c.QualityRecords()
	sort.Slice(records, func(i, j int) bool {
		if records[i].EngagementRate != records[j].EngagementRate {
			return records[i].EngagementRate > records[j].EngagementRate
		}
		return records[i].VideoID < records[j].VideoID
	})
	if len(records) > n {
		records = records[:n]
	}
	return records
}

// TopByViews returns up to n quality records, most viewed first.
func (c Context) TopByViews(n int) []domain.CuratedRecord {
	records := c.QualityRecords()
	sort.Slice(records, func(i, j int) bool {
		if records[i].ViewCount != records[j].ViewCount {
			return records[i].ViewCount > records[j].ViewCount
		}
		return records[i].VideoID < records[j].VideoID
	})
	if len(records) > n {
		records = records[:n]
	}
	return records
}
