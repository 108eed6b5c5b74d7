package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// SourceAPI tags observations collected through the Data API.
const SourceAPI = "youtube-api"

const (
	maxSearchResults  = 50
	maxCommentResults = 100
)

// Client implements ports.VideoPlatform against the YouTube Data API v3.
// Counts arrive as JSON strings and are parsed into integers here, so the
// rest of the pipeline never sees the wire encoding.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.VideoPlatform = (*Client)(nil)

// NewClient builds a Data API client from platform configuration.
func NewClient(cfg config.PlatformConfig, logger *slog.Logger, now func() time.Time) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	timeout := 15 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "youtube.api"),
		now:     now,
	}
}

// Search queries the search endpoint restricted to short videos. Search
// results carry no statistics; VideoDetails fills those in.
func (c *Client) Search(ctx context.Context, query string, max int, publishedAfter time.Time) ([]domain.RawObservation, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("videoDuration", "short")
	params.Set("order", "viewCount")
	params.Set("maxResults", strconv.Itoa(clampMax(max, maxSearchResults)))
	if !publishedAfter.IsZero() {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	var payload searchResponse
	if err := c.getJSON(ctx, "search", params, &payload); err != nil {
		return nil, err
	}

	collected := c.now().UTC()
	observations := make([]domain.RawObservation, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" {
			continue
		}
		obs := item.Snippet.observation()
		obs.VideoID = item.ID.VideoID
		obs.Source = SourceAPI
		obs.CollectedAt = collected
		observations = append(observations, obs)
	}
	c.logger.Debug("search complete", "query", query, "results", len(observations))
	return observations, nil
}

// VideoDetails fetches snippet, duration and statistics for up to 50 ids per
// call. IDs unknown upstream are simply absent from the result.
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]domain.RawObservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", strings.Join(ids, ","))

	var payload videosResponse
	if err := c.getJSON(ctx, "videos", params, &payload); err != nil {
		return nil, err
	}

	collected := c.now().UTC()
	observations := make([]domain.RawObservation, 0, len(payload.Items))
	for _, item := range payload.Items {
		obs := item.Snippet.observation()
		obs.VideoID = item.ID
		obs.Duration = item.ContentDetails.Duration
		obs.ViewCount = parseCount(item.Statistics.ViewCount)
		obs.LikeCount = parseCount(item.Statistics.LikeCount)
		obs.CommentCount = parseCount(item.Statistics.CommentCount)
		obs.Source = SourceAPI
		obs.CollectedAt = collected
		observations = append(observations, obs)
	}
	return observations, nil
}

// Comments pulls top-level comments for one video, most relevant first.
func (c *Client) Comments(ctx context.Context, videoID string, max int) ([]domain.Comment, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("order", "relevance")
	params.Set("textFormat", "plainText")
	params.Set("maxResults", strconv.Itoa(clampMax(max, maxCommentResults)))

	var payload commentsResponse
	if err := c.getJSON(ctx, "commentThreads", params, &payload); err != nil {
		return nil, err
	}

	comments := make([]domain.Comment, 0, len(payload.Items))
	for _, item := range payload.Items {
		top := item.Snippet.TopLevelComment
		if top.ID == "" {
			continue
		}
		comments = append(comments, domain.Comment{
			VideoID:     videoID,
			CommentID:   top.ID,
			Text:        top.Snippet.TextDisplay,
			Author:      top.Snippet.AuthorDisplayName,
			LikeCount:   top.Snippet.LikeCount,
			PublishedAt: top.Snippet.PublishedAt,
		})
	}
	return comments, nil
}

func (c *Client) getJSON(ctx context.Context, resource string, params url.Values, v any) error {
	params.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, resource, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", resource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &ports.TransientError{Op: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return &ports.TransientError{Op: resource, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: youtube returned %s: %s", resource, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", resource, err)
	}
	return nil
}

func clampMax(max, ceiling int) int {
	if max <= 0 || max > ceiling {
		return ceiling
	}
	return max
}

// parseCount reads the Data API's string-encoded counters. Missing or
// malformed values count as zero rather than failing the batch.
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type snippetJSON struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channelId"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	Tags         []string  `json:"tags"`
	CategoryID   string    `json:"categoryId"`
	Thumbnails   struct {
		Default struct {
			URL string `json:"url"`
		} `json:"default"`
	} `json:"thumbnails"`
}

func (s snippetJSON) observation() domain.RawObservation {
	return domain.RawObservation{
		Title:        s.Title,
		Description:  s.Description,
		ChannelID:    s.ChannelID,
		ChannelTitle: s.ChannelTitle,
		PublishedAt:  s.PublishedAt,
		Tags:         s.Tags,
		CategoryID:   s.CategoryID,
		ThumbnailURL: s.Thumbnails.Default.URL,
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippetJSON `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID             string      `json:"id"`
		Snippet        snippetJSON `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type commentsResponse struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				ID      string `json:"id"`
				Snippet struct {
					TextDisplay       string    `json:"textDisplay"`
					AuthorDisplayName string    `json:"authorDisplayName"`
					LikeCount         int64     `json:"likeCount"`
					PublishedAt       time.Time `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}
