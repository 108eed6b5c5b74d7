package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS bronze_observations (
    brand           TEXT        NOT NULL,
    video_id        TEXT        NOT NULL,
    title           TEXT        NOT NULL DEFAULT '',
    description     TEXT        NOT NULL DEFAULT '',
    channel_id      TEXT        NOT NULL DEFAULT '',
    channel_title   TEXT        NOT NULL DEFAULT '',
    published_at    TIMESTAMPTZ,
    duration        TEXT        NOT NULL DEFAULT '',
    view_count      BIGINT      NOT NULL DEFAULT 0,
    like_count      BIGINT      NOT NULL DEFAULT 0,
    comment_count   BIGINT      NOT NULL DEFAULT 0,
    engagement_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    tags            TEXT[]      NOT NULL DEFAULT '{}',
    category_id     TEXT        NOT NULL DEFAULT '',
    thumbnail_url   TEXT        NOT NULL DEFAULT '',
    keyword         TEXT        NOT NULL DEFAULT '',
    source          TEXT        NOT NULL DEFAULT '',
    collected_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bronze_observations_brand_published
    ON bronze_observations (brand, published_at);

CREATE TABLE IF NOT EXISTS bronze_comments (
    brand        TEXT        NOT NULL,
    video_id     TEXT        NOT NULL,
    comment_id   TEXT        NOT NULL,
    body         TEXT        NOT NULL DEFAULT '',
    author       TEXT        NOT NULL DEFAULT '',
    like_count   BIGINT      NOT NULL DEFAULT 0,
    published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS bronze_comments_brand_published
    ON bronze_comments (brand, published_at);

CREATE TABLE IF NOT EXISTS silver_records (
    brand           TEXT        NOT NULL,
    partition_key   TEXT        NOT NULL,
    video_id        TEXT        NOT NULL,
    title           TEXT        NOT NULL DEFAULT '',
    channel_id      TEXT        NOT NULL DEFAULT '',
    channel_title   TEXT        NOT NULL DEFAULT '',
    published_date  TIMESTAMPTZ NOT NULL,
    view_count      BIGINT      NOT NULL DEFAULT 0,
    like_count      BIGINT      NOT NULL DEFAULT 0,
    comment_count   BIGINT      NOT NULL DEFAULT 0,
    engagement_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    content_themes  TEXT[]      NOT NULL DEFAULT '{}',
    sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    brand_mentions  TEXT[]      NOT NULL DEFAULT '{}',
    competitor_flag BOOLEAN     NOT NULL DEFAULT FALSE,
    quality_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    low_quality     BOOLEAN     NOT NULL DEFAULT FALSE,
    provenance      JSONB       NOT NULL DEFAULT '[]',
    processed_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (brand, partition_key, video_id)
);

CREATE TABLE IF NOT EXISTS gold_metrics (
    brand_name          TEXT        NOT NULL,
    window_start        TIMESTAMPTZ NOT NULL,
    window_end          TIMESTAMPTZ NOT NULL,
    total_videos        INTEGER     NOT NULL DEFAULT 0,
    total_views         BIGINT      NOT NULL DEFAULT 0,
    total_likes         BIGINT      NOT NULL DEFAULT 0,
    total_comments      BIGINT      NOT NULL DEFAULT 0,
    avg_engagement_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_quality_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_sentiment       DOUBLE PRECISION NOT NULL DEFAULT 0,
    low_quality_count   INTEGER     NOT NULL DEFAULT 0,
    share_of_voice      DOUBLE PRECISION NOT NULL DEFAULT 0,
    top_themes          TEXT[]      NOT NULL DEFAULT '{}',
    recommendations     JSONB       NOT NULL DEFAULT '[]',
    PRIMARY KEY (brand_name, window_start, window_end)
);
`

// PostgresWarehouse persists the three medallion layers in Postgres. Bronze
// tables are append-only; silver is replaced per publish-date partition in
// one transaction; gold rows are upserted per window.
type PostgresWarehouse struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

var _ ports.Warehouse = (*PostgresWarehouse)(nil)

// NewPostgres wires a sql.DB into the warehouse.
func NewPostgres(db *sql.DB, logger *slog.Logger) *PostgresWarehouse {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresWarehouse{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger.With("component", "warehouse.postgres"),
	}
}

// Migrate creates the warehouse tables when they do not exist yet.
func (w *PostgresWarehouse) Migrate(ctx context.Context) error {
	if w.db == nil {
		return nil
	}
	if _, err := w.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply warehouse schema: %w", err)
	}
	w.logger.Debug("schema ensured")
	return nil
}

// AppendRaw inserts one bronze row per observation. Nothing is updated or
// deleted; repeated captures of the same video become new versions.
func (w *PostgresWarehouse) AppendRaw(ctx context.Context, brand string, obs []domain.RawObservation) error {
	if w.db == nil || len(obs) == 0 {
		return nil
	}

	insert := w.builder.Insert("bronze_observations").Columns(
		"brand", "video_id", "title", "description", "channel_id", "channel_title",
		"published_at", "duration", "view_count", "like_count", "comment_count",
		"engagement_rate", "tags", "category_id", "thumbnail_url", "keyword",
		"source", "collected_at",
	)
	for _, o := range obs {
		insert = insert.Values(
			brand, o.VideoID, o.Title, o.Description, o.ChannelID, o.ChannelTitle,
			o.PublishedAt, o.Duration, o.ViewCount, o.LikeCount, o.CommentCount,
			o.EngagementRate, pq.Array(o.Tags), o.CategoryID, o.ThumbnailURL, o.Keyword,
			o.Source, o.CollectedAt,
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build bronze insert: %w", err)
	}
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append bronze observations: %w", err)
	}
	return nil
}

// AppendComments inserts bronze comment rows.
func (w *PostgresWarehouse) AppendComments(ctx context.Context, brand string, comments []domain.Comment) error {
	if w.db == nil || len(comments) == 0 {
		return nil
	}

	insert := w.builder.Insert("bronze_comments").Columns(
		"brand", "video_id", "comment_id", "body", "author", "like_count", "published_at",
	)
	for _, c := range comments {
		insert = insert.Values(brand, c.VideoID, c.CommentID, c.Text, c.Author, c.LikeCount, c.PublishedAt)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build comment insert: %w", err)
	}
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append bronze comments: %w", err)
	}
	return nil
}

// RawObservations returns every bronze version of videos published on or
// after since, oldest capture first.
func (w *PostgresWarehouse) RawObservations(ctx context.Context, brand string, since time.Time) ([]domain.RawObservation, error) {
	if w.db == nil {
		return nil, nil
	}

	query, args, err := w.builder.Select(
		"video_id", "title", "description", "channel_id", "channel_title",
		"published_at", "duration", "view_count", "like_count", "comment_count",
		"engagement_rate", "tags", "category_id", "thumbnail_url", "keyword",
		"source", "collected_at",
	).
		From("bronze_observations").
		Where(sq.Eq{"brand": brand}).
		Where(sq.GtOrEq{"published_at": since}).
		OrderBy("collected_at", "video_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bronze select: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bronze observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.RawObservation
	for rows.Next() {
		var o domain.RawObservation
		if err := rows.Scan(
			&o.VideoID, &o.Title, &o.Description, &o.ChannelID, &o.ChannelTitle,
			&o.PublishedAt, &o.Duration, &o.ViewCount, &o.LikeCount, &o.CommentCount,
			&o.EngagementRate, pq.Array(&o.Tags), &o.CategoryID, &o.ThumbnailURL, &o.Keyword,
			&o.Source, &o.CollectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bronze observation: %w", err)
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bronze observations: %w", err)
	}
	return observations, nil
}

// RawComments returns bronze comments published on or after since.
func (w *PostgresWarehouse) RawComments(ctx context.Context, brand string, since time.Time) ([]domain.Comment, error) {
	if w.db == nil {
		return nil, nil
	}

	query, args, err := w.builder.Select(
		"video_id", "comment_id", "body", "author", "like_count", "published_at",
	).
		From("bronze_comments").
		Where(sq.Eq{"brand": brand}).
		Where(sq.GtOrEq{"published_at": since}).
		OrderBy("video_id", "comment_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comment select: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bronze comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.VideoID, &c.CommentID, &c.Text, &c.Author, &c.LikeCount, &c.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan bronze comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bronze comments: %w", err)
	}
	return comments, nil
}

// OverwriteCurated replaces one silver partition atomically: delete plus
// insert inside a single transaction, so readers never see a half-written
// partition.
func (w *PostgresWarehouse) OverwriteCurated(ctx context.Context, brand string, partition string, records []domain.CuratedRecord) error {
	if w.db == nil {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin silver tx: %w", err)
	}
	defer tx.Rollback()

	del, args, err := w.builder.Delete("silver_records").
		Where(sq.Eq{"brand": brand, "partition_key": partition}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build silver delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clear silver partition %s: %w", partition, err)
	}

	if len(records) > 0 {
		insert := w.builder.Insert("silver_records").Columns(
			"brand", "partition_key", "video_id", "title", "channel_id", "channel_title",
			"published_date", "view_count", "like_count", "comment_count", "engagement_rate",
			"content_themes", "sentiment_score", "brand_mentions", "competitor_flag",
			"quality_score", "low_quality", "provenance", "processed_at",
		)
		for _, r := range records {
			provenance, mErr := json.Marshal(r.Provenance)
			if mErr != nil {
				return fmt.Errorf("encode provenance for %s: %w", r.VideoID, mErr)
			}
			insert = insert.Values(
				brand, partition, r.VideoID, r.Title, r.ChannelID, r.ChannelTitle,
				r.PublishedDate, r.ViewCount, r.LikeCount, r.CommentCount, r.EngagementRate,
				pq.Array(r.ContentThemes), r.SentimentScore, pq.Array(r.BrandMentions), r.CompetitorFlag,
				r.QualityScore, r.LowQuality, provenance, r.ProcessedAt,
			)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build silver insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write silver partition %s: %w", partition, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit silver partition %s: %w", partition, err)
	}
	return nil
}

// CuratedRecords returns silver records published on or after since.
func (w *PostgresWarehouse) CuratedRecords(ctx context.Context, brand string, since time.Time) ([]domain.CuratedRecord, error) {
	if w.db == nil {
		return nil, nil
	}

	query, args, err := w.builder.Select(
		"video_id", "title", "channel_id", "channel_title", "published_date",
		"view_count", "like_count", "comment_count", "engagement_rate",
		"content_themes", "sentiment_score", "brand_mentions", "competitor_flag",
		"quality_score", "low_quality", "provenance", "processed_at",
	).
		From("silver_records").
		Where(sq.Eq{"brand": brand}).
		Where(sq.GtOrEq{"published_date": since}).
		OrderBy("published_date", "video_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build silver select: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query silver records: %w", err)
	}
	defer rows.Close()

	var records []domain.CuratedRecord
	for rows.Next() {
		var r domain.CuratedRecord
		var provenance []byte
		if err := rows.Scan(
			&r.VideoID, &r.Title, &r.ChannelID, &r.ChannelTitle, &r.PublishedDate,
			&r.ViewCount, &r.LikeCount, &r.CommentCount, &r.EngagementRate,
			pq.Array(&r.ContentThemes), &r.SentimentScore, pq.Array(&r.BrandMentions), &r.CompetitorFlag,
			&r.QualityScore, &r.LowQuality, &provenance, &r.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan silver record: %w", err)
		}
		if err := json.Unmarshal(provenance, &r.Provenance); err != nil {
			return nil, fmt.Errorf("decode provenance for %s: %w", r.VideoID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate silver records: %w", err)
	}
	return records, nil
}

// OverwriteAggregate upserts the gold row for the metric's window.
func (w *PostgresWarehouse) OverwriteAggregate(ctx context.Context, metric domain.AggregateMetric) error {
	if w.db == nil {
		return nil
	}

	recommendations, err := json.Marshal(metric.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	query, args, err := w.builder.Insert("gold_metrics").Columns(
		"brand_name", "window_start", "window_end", "total_videos", "total_views",
		"total_likes", "total_comments", "avg_engagement_rate", "avg_quality_score",
		"avg_sentiment", "low_quality_count", "share_of_voice", "top_themes", "recommendations",
	).Values(
		metric.BrandName, metric.WindowStart, metric.WindowEnd, metric.TotalVideos, metric.TotalViews,
		metric.TotalLikes, metric.TotalComments, metric.AvgEngagementRate, metric.AvgQualityScore,
		metric.AvgSentiment, metric.LowQualityCount, metric.ShareOfVoice, pq.Array(metric.TopThemes), recommendations,
	).Suffix(`ON CONFLICT (brand_name, window_start, window_end) DO UPDATE SET
		total_videos = EXCLUDED.total_videos,
		total_views = EXCLUDED.total_views,
		total_likes = EXCLUDED.total_likes,
		total_comments = EXCLUDED.total_comments,
		avg_engagement_rate = EXCLUDED.avg_engagement_rate,
		avg_quality_score = EXCLUDED.avg_quality_score,
		avg_sentiment = EXCLUDED.avg_sentiment,
		low_quality_count = EXCLUDED.low_quality_count,
		share_of_voice = EXCLUDED.share_of_voice,
		top_themes = EXCLUDED.top_themes,
		recommendations = EXCLUDED.recommendations`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build gold upsert: %w", err)
	}

	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert gold metrics: %w", err)
	}
	return nil
}
