package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// MemoryWarehouse keeps the medallion layers in process memory. It backs
// runs without a database DSN and mirrors the Postgres filter and ordering
// semantics so the pipeline behaves the same against either store.
type MemoryWarehouse struct {
	mu         sync.RWMutex
	raw        map[string][]domain.RawObservation
	comments   map[string][]domain.Comment
	curated    map[string]map[string][]domain.CuratedRecord
	aggregates map[string]domain.AggregateMetric
}

var _ ports.Warehouse = (*MemoryWarehouse)(nil)

func NewMemory() *MemoryWarehouse {
	return &MemoryWarehouse{
		raw:        make(map[string][]domain.RawObservation),
		comments:   make(map[string][]domain.Comment),
		curated:    make(map[string]map[string][]domain.CuratedRecord),
		aggregates: make(map[string]domain.AggregateMetric),
	}
}

func (w *MemoryWarehouse) AppendRaw(_ context.Context, brand string, obs []domain.RawObservation) error {
	if len(obs) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.raw[brand] = append(w.raw[brand], obs...)
	return nil
}

func (w *MemoryWarehouse) AppendComments(_ context.Context, brand string, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.comments[brand] = append(w.comments[brand], comments...)
	return nil
}

func (w *MemoryWarehouse) RawObservations(_ context.Context, brand string, since time.Time) ([]domain.RawObservation, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var observations []domain.RawObservation
	for _, o := range w.raw[brand] {
		if o.PublishedAt.Before(since) {
			continue
		}
		observations = append(observations, o)
	}
	sort.Slice(observations, func(i, j int) bool {
		if !observations[i].CollectedAt.Equal(observations[j].CollectedAt) {
			return observations[i].CollectedAt.Before(observations[j].CollectedAt)
		}
		return observations[i].VideoID < observations[j].VideoID
	})
	return observations, nil
}

func (w *MemoryWarehouse) RawComments(_ context.Context, brand string, since time.Time) ([]domain.Comment, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var comments []domain.Comment
	for _, c := range w.comments[brand] {
		if c.PublishedAt.Before(since) {
			continue
		}
		comments = append(comments, c)
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].VideoID != comments[j].VideoID {
			return comments[i].VideoID < comments[j].VideoID
		}
		return comments[i].CommentID < comments[j].CommentID
	})
	return comments, nil
}

func (w *MemoryWarehouse) OverwriteCurated(_ context.Context, brand string, partition string, records []domain.CuratedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	partitions, ok := w.curated[brand]
	if !ok {
		partitions = make(map[string][]domain.CuratedRecord)
		w.curated[brand] = partitions
	}
	if len(records) == 0 {
		delete(partitions, partition)
		return nil
	}
	partitions[partition] = append([]domain.CuratedRecord(nil), records...)
	return nil
}

func (w *MemoryWarehouse) CuratedRecords(_ context.Context, brand string, since time.Time) ([]domain.CuratedRecord, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var records []domain.CuratedRecord
	for _, partition := range w.curated[brand] {
		for _, r := range partition {
			if r.PublishedDate.Before(since) {
				continue
			}
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].PublishedDate.Equal(records[j].PublishedDate) {
			return records[i].PublishedDate.Before(records[j].PublishedDate)
		}
		return records[i].VideoID < records[j].VideoID
	})
	return records, nil
}

func (w *MemoryWarehouse) OverwriteAggregate(_ context.Context, metric domain.AggregateMetric) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aggregates[aggregateKey(metric.BrandName, metric.WindowStart, metric.WindowEnd)] = metric
	return nil
}

// Aggregate returns the stored gold row for a window, if any.
func (w *MemoryWarehouse) Aggregate(brand string, start, end time.Time) (domain.AggregateMetric, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	metric, ok := w.aggregates[aggregateKey(brand, start, end)]
	return metric, ok
}

func aggregateKey(brand string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s", brand, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}
