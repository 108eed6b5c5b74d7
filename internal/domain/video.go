package domain

import "time"

// RawObservation is one bronze-layer capture of a short-form video.
// Observations are immutable: a later collection of the same video appends a
// new version distinguished by CollectedAt, it never rewrites an old one.
type RawObservation struct {
	VideoID        string    `json:"video_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ChannelID      string    `json:"channel_id"`
	ChannelTitle   string    `json:"channel_title"`
	PublishedAt    time.Time `json:"published_at"`
	Duration       string    `json:"duration"`
	ViewCount      int64     `json:"view_count"`
	LikeCount      int64     `json:"like_count"`
	CommentCount   int64     `json:"comment_count"`
	EngagementRate float64   `json:"engagement_rate"`
	Tags           []string  `json:"tags"`
	CategoryID     string    `json:"category_id"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	Keyword        string    `json:"keyword"`
	Source         string    `json:"source"`
	CollectedAt    time.Time `json:"collected_at"`
}

// Comment is a single top-level comment collected for audience analysis.
type Comment struct {
	VideoID     string    `json:"video_id"`
	CommentID   string    `json:"comment_id"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	LikeCount   int64     `json:"like_count"`
	PublishedAt time.Time `json:"published_at"`
}

// ProvenanceRef points at one bronze version consumed by silver curation.
type ProvenanceRef struct {
	CollectedAt time.Time `json:"collected_at"`
	Source      string    `json:"source"`
}

// CuratedRecord is the silver layer: exactly one validated, enriched record
// per video id per curation run.
type CuratedRecord struct {
	VideoID        string          `json:"video_id"`
	Title          string          `json:"title"`
	ChannelID      string          `json:"channel_id"`
	ChannelTitle   string          `json:"channel_title"`
	PublishedDate  time.Time       `json:"published_date"`
	ViewCount      int64           `json:"view_count"`
	LikeCount      int64           `json:"like_count"`
	CommentCount   int64           `json:"comment_count"`
	EngagementRate float64         `json:"engagement_rate"`
	ContentThemes  []string        `json:"content_themes"`
	SentimentScore float64         `json:"sentiment_score"`
	BrandMentions  []string        `json:"brand_mentions"`
	CompetitorFlag bool            `json:"competitor_flag"`
	QualityScore   float64         `json:"quality_score"`
	LowQuality     bool            `json:"low_quality"`
	Provenance     []ProvenanceRef `json:"provenance"`
	ProcessedAt    time.Time       `json:"processed_at"`
}

// PartitionKey is the publish-date partition the record belongs to.
func (c CuratedRecord) PartitionKey() string {
	return c.PublishedDate.UTC().Format("2006-01-02")
}

// Recommendation is one ranked action candidate inside a gold aggregate.
type Recommendation struct {
	Action     string   `json:"action"`
	Priority   Priority `json:"priority"`
	Confidence float64  `json:"confidence"`
}

// AggregateMetric is one gold row: brand-level metrics over a rolling window.
// It is a pure function of the silver set and the window bounds, so it carries
// no wall-clock fields and can be recomputed at any time.
type AggregateMetric struct {
	BrandName         string           `json:"brand_name"`
	WindowStart       time.Time        `json:"window_start"`
	WindowEnd         time.Time        `json:"window_end"`
	TotalVideos       int              `json:"total_videos"`
	TotalViews        int64            `json:"total_views"`
	TotalLikes        int64            `json:"total_likes"`
	TotalComments     int64            `json:"total_comments"`
	AvgEngagementRate float64          `json:"avg_engagement_rate"`
	AvgQualityScore   float64          `json:"avg_quality_score"`
	AvgSentiment      float64          `json:"avg_sentiment"`
	LowQualityCount   int              `json:"low_quality_count"`
	ShareOfVoice      float64          `json:"competitor_share_of_voice"`
	TopThemes         []string         `json:"top_themes"`
	Recommendations   []Recommendation `json:"recommendations"`
}
