package warehouse

import (
	"context"
	"testing"
	"time"

	"ShortsIntel/internal/domain"
)

func TestMemoryRawObservationsFiltersAndSorts(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	first := []domain.RawObservation{
		{VideoID: "v2", PublishedAt: base.AddDate(0, 0, 2), CollectedAt: base.AddDate(0, 0, 3)},
		{VideoID: "v1", PublishedAt: base.AddDate(0, 0, 1), CollectedAt: base.AddDate(0, 0, 3)},
	}
	second := []domain.RawObservation{
		{VideoID: "v1", PublishedAt: base.AddDate(0, 0, 1), CollectedAt: base.AddDate(0, 0, 5), ViewCount: 900},
		{VideoID: "old", PublishedAt: base.AddDate(0, 0, -10), CollectedAt: base.AddDate(0, 0, 5)},
	}
	if err := store.AppendRaw(ctx, "Neutrogena", first); err != nil {
		t.Fatalf("AppendRaw() error = %v", err)
	}
	if err := store.AppendRaw(ctx, "Neutrogena", second); err != nil {
		t.Fatalf("AppendRaw() error = %v", err)
	}

	got, err := store.RawObservations(ctx, "Neutrogena", base)
	if err != nil {
		t.Fatalf("RawObservations() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RawObservations() returned %d rows, want 3", len(got))
	}
	order := []string{got[0].VideoID, got[1].VideoID, got[2].VideoID}
	want := []string{"v1", "v2", "v1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("RawObservations() order = %v, want %v", order, want)
		}
	}
	if got[2].ViewCount != 900 {
		t.Fatalf("latest v1 version ViewCount = %d, want 900", got[2].ViewCount)
	}

	other, err := store.RawObservations(ctx, "CeraVe", base)
	if err != nil {
		t.Fatalf("RawObservations() error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("RawObservations() for unknown brand returned %d rows", len(other))
	}
}

func TestMemoryRawCommentsFiltersByPublishDate(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	comments := []domain.Comment{
		{VideoID: "v1", CommentID: "c2", PublishedAt: base.AddDate(0, 0, 2)},
		{VideoID: "v1", CommentID: "c1", PublishedAt: base.AddDate(0, 0, 1)},
		{VideoID: "v0", CommentID: "c0", PublishedAt: base.AddDate(0, 0, -1)},
	}
	if err := store.AppendComments(ctx, "Neutrogena", comments); err != nil {
		t.Fatalf("AppendComments() error = %v", err)
	}

	got, err := store.RawComments(ctx, "Neutrogena", base)
	if err != nil {
		t.Fatalf("RawComments() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RawComments() returned %d rows, want 2", len(got))
	}
	if got[0].CommentID != "c1" || got[1].CommentID != "c2" {
		t.Fatalf("RawComments() order = [%s %s], want [c1 c2]", got[0].CommentID, got[1].CommentID)
	}
}

func TestMemoryOverwriteCuratedReplacesPartition(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	initial := []domain.CuratedRecord{
		{VideoID: "v1", PublishedDate: day, ViewCount: 100},
		{VideoID: "v2", PublishedDate: day, ViewCount: 200},
	}
	if err := store.OverwriteCurated(ctx, "Neutrogena", "2026-04-02", initial); err != nil {
		t.Fatalf("OverwriteCurated() error = %v", err)
	}

	replacement := []domain.CuratedRecord{
		{VideoID: "v1", PublishedDate: day, ViewCount: 150},
	}
	if err := store.OverwriteCurated(ctx, "Neutrogena", "2026-04-02", replacement); err != nil {
		t.Fatalf("OverwriteCurated() error = %v", err)
	}

	got, err := store.CuratedRecords(ctx, "Neutrogena", day.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("CuratedRecords() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("CuratedRecords() returned %d rows after overwrite, want 1", len(got))
	}
	if got[0].VideoID != "v1" || got[0].ViewCount != 150 {
		t.Fatalf("CuratedRecords() = %s/%d, want v1/150", got[0].VideoID, got[0].ViewCount)
	}

	if err := store.OverwriteCurated(ctx, "Neutrogena", "2026-04-02", nil); err != nil {
		t.Fatalf("OverwriteCurated() error = %v", err)
	}
	got, err = store.CuratedRecords(ctx, "Neutrogena", day.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("CuratedRecords() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("CuratedRecords() returned %d rows after clearing partition, want 0", len(got))
	}
}

func TestMemoryCuratedRecordsSpanPartitions(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()
	dayOne := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	dayTwo := dayOne.AddDate(0, 0, 1)

	if err := store.OverwriteCurated(ctx, "Neutrogena", "2026-04-02", []domain.CuratedRecord{
		{VideoID: "v1", PublishedDate: dayOne},
	}); err != nil {
		t.Fatalf("OverwriteCurated() error = %v", err)
	}
	if err := store.OverwriteCurated(ctx, "Neutrogena", "2026-04-03", []domain.CuratedRecord{
		{VideoID: "v3", PublishedDate: dayTwo},
		{VideoID: "v2", PublishedDate: dayTwo},
	}); err != nil {
		t.Fatalf("OverwriteCurated() error = %v", err)
	}

	got, err := store.CuratedRecords(ctx, "Neutrogena", dayOne)
	if err != nil {
		t.Fatalf("CuratedRecords() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("CuratedRecords() returned %d rows, want 3", len(got))
	}
	order := []string{got[0].VideoID, got[1].VideoID, got[2].VideoID}
	want := []string{"v1", "v2", "v3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("CuratedRecords() order = %v, want %v", order, want)
		}
	}

	fresh, err := store.CuratedRecords(ctx, "Neutrogena", dayTwo)
	if err != nil {
		t.Fatalf("CuratedRecords() error = %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("CuratedRecords() since dayTwo returned %d rows, want 2", len(fresh))
	}
}

func TestMemoryOverwriteAggregateReplacesWindow(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()
	start := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	if err := store.OverwriteAggregate(ctx, domain.AggregateMetric{
		BrandName: "Neutrogena", WindowStart: start, WindowEnd: end, TotalVideos: 5,
	}); err != nil {
		t.Fatalf("OverwriteAggregate() error = %v", err)
	}
	if err := store.OverwriteAggregate(ctx, domain.AggregateMetric{
		BrandName: "Neutrogena", WindowStart: start, WindowEnd: end, TotalVideos: 9,
	}); err != nil {
		t.Fatalf("OverwriteAggregate() error = %v", err)
	}

	metric, ok := store.Aggregate("Neutrogena", start, end)
	if !ok {
		t.Fatalf("Aggregate() missing stored window")
	}
	if metric.TotalVideos != 9 {
		t.Fatalf("Aggregate() TotalVideos = %d, want 9", metric.TotalVideos)
	}

	if _, ok := store.Aggregate("Neutrogena", start, end.AddDate(0, 0, 1)); ok {
		t.Fatalf("Aggregate() matched a different window")
	}
}
