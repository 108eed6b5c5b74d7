package trend

import (
	"math"
	"sort"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
)

// Detector derives topic movement from curated records by comparing the
// newest bucket of activity against the one before it.
type Detector struct {
	cfg config.TrendConfig
}

// New builds a Detector.
func New(cfg config.TrendConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns the strongest topic signals as of windowEnd. Topics active
// now but absent from the previous bucket carry NoBaselineAcceleration and
// the Emerging flag; no division against a zero baseline ever happens.
func (d *Detector) Detect(records []domain.CuratedRecord, windowEnd time.Time) []domain.TrendSignal {
	if len(records) == 0 {
		return nil
	}

	bucket := d.bucket()
	curStart := windowEnd.Add(-bucket)
	prevStart := windowEnd.Add(-2 * bucket)

	current := make(map[string]int)
	previous := make(map[string]int)
	for _, r := range records {
		day := r.PublishedDate
		for _, topic := range r.ContentThemes {
			switch {
			case !day.Before(curStart) && day.Before(windowEnd):
				current[topic]++
			case !day.Before(prevStart) && day.Before(curStart):
				previous[topic]++
			}
		}
	}

	days := bucket.Hours() / 24
	signals := make([]domain.TrendSignal, 0, len(current))
	for topic, cur := range current {
		sig := domain.TrendSignal{
			Topic:       topic,
			Velocity:    round2(float64(cur) / days),
			SampleSize:  cur,
			WindowStart: curStart,
			WindowEnd:   windowEnd,
		}
		if prev := previous[topic]; prev == 0 {
			sig.Acceleration = domain.NoBaselineAcceleration
			sig.Emerging = true
		} else {
			sig.Acceleration = round2(float64(cur-prev) / float64(prev))
		}
		signals = append(signals, sig)
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Acceleration != signals[j].Acceleration {
			return signals[i].Acceleration > signals[j].Acceleration
		}
		if signals[i].Velocity != signals[j].Velocity {
			return signals[i].Velocity > signals[j].Velocity
		}
		return signals[i].Topic < signals[j].Topic
	})
	if n := d.topN(); len(signals) > n {
		signals = signals[:n]
	}
	return signals
}

func (d *Detector) bucket() time.Duration {
	days := d.cfg.BucketDays
	if days <= 0 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}

func (d *Detector) topN() int {
	if d.cfg.TopN > 0 {
		return d.cfg.TopN
	}
	return 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
