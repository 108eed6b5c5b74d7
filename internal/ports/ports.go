package ports

import (
	"context"
	"time"

	"ShortsIntel/internal/domain"
)

// VideoPlatform pulls short-form video data from an upstream provider.
type VideoPlatform interface {
	Search(ctx context.Context, query string, max int, publishedAfter time.Time) ([]domain.RawObservation, error)
	VideoDetails(ctx context.Context, ids []string) ([]domain.RawObservation, error)
	Comments(ctx context.Context, videoID string, max int) ([]domain.Comment, error)
}

// Warehouse persists the bronze, silver and gold layers.
type Warehouse interface {
	AppendRaw(ctx context.Context, brand string, obs []domain.RawObservation) error
	AppendComments(ctx context.Context, brand string, comments []domain.Comment) error
	RawObservations(ctx context.Context, brand string, since time.Time) ([]domain.RawObservation, error)
	RawComments(ctx context.Context, brand string, since time.Time) ([]domain.Comment, error)
	OverwriteCurated(ctx context.Context, brand string, partition string, records []domain.CuratedRecord) error
	CuratedRecords(ctx context.Context, brand string, since time.Time) ([]domain.CuratedRecord, error)
	OverwriteAggregate(ctx context.Context, metric domain.AggregateMetric) error
}

// InsightClient sends an analysis payload to a language model and returns its
// raw response for the caller to parse.
type InsightClient interface {
	GenerateInsights(ctx context.Context, system string, payload []byte) ([]byte, error)
}

// ReportSink writes run artifacts: collected data, the synthesized
// intelligence report and a human-readable summary.
type ReportSink interface {
	SaveCollection(ctx context.Context, brand string, runID string, payload []byte) (string, error)
	SaveIntelligence(ctx context.Context, brand string, runID string, payload []byte) (string, error)
	SaveSummary(ctx context.Context, brand string, runID string, text string) (string, error)
	SaveFailure(ctx context.Context, brand string, runID string, payload []byte) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
