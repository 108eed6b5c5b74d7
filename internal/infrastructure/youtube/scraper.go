package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
)

// SourceWeb tags observations scraped from public results pages.
const SourceWeb = "youtube-web"

// shortsFilter is the results-page filter for videos under four minutes.
const shortsFilter = "EgIYAQ%3D%3D"

// Scraper implements ports.VideoPlatform over public search results pages.
// It is the keyless fallback: search works from the embedded ytInitialData
// blob, while details and comments have no public page equivalent and return
// empty so the collector keeps the search copies.
type Scraper struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.VideoPlatform = (*Scraper)(nil)

// NewScraper builds a results-page scraper from platform configuration.
func NewScraper(cfg config.PlatformConfig, logger *slog.Logger, now func() time.Time) *Scraper {
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
	return &Scraper{
		baseURL: strings.TrimSuffix(cfg.WebBaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "youtube.web"),
		now:     now,
	}
}

// Search fetches one results page and extracts video observations from the
// ytInitialData payload embedded in it.
func (s *Scraper) Search(ctx context.Context, query string, max int, publishedAfter time.Time) ([]domain.RawObservation, error) {
	pageURL, err := s.buildSearchURL(query)
	if err != nil {
		return nil, err
	}

	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	raw, ok := initialData(doc)
	if !ok {
		return nil, fmt.Errorf("search page for %q carries no ytInitialData", query)
	}

	now := s.now().UTC()
	observations, err := extractObservations(raw, now)
	if err != nil {
		return nil, fmt.Errorf("extract results for %q: %w", query, err)
	}

	filtered := observations[:0]
	for _, obs := range observations {
		if !publishedAfter.IsZero() && obs.PublishedAt.Before(publishedAfter) {
			continue
		}
		filtered = append(filtered, obs)
		if max > 0 && len(filtered) == max {
			break
		}
	}
	s.logger.Debug("scrape complete", "query", query, "results", len(filtered))
	return filtered, nil
}

// VideoDetails has no scrapeable equivalent; the collector falls back to the
// search-stage observations.
func (s *Scraper) VideoDetails(ctx context.Context, ids []string) ([]domain.RawObservation, error) {
	return nil, nil
}

// Comments has no scrapeable equivalent.
func (s *Scraper) Comments(ctx context.Context, videoID string, max int) ([]domain.Comment, error) {
	return nil, nil
}

func (s *Scraper) buildSearchURL(query string) (string, error) {
	parsed, err := url.Parse(s.baseURL + "/results")
	if err != nil {
		return "", fmt.Errorf("invalid web base url %s: %w", s.baseURL, err)
	}
	params := parsed.Query()
	params.Set("search_query", query)
	parsed.RawQuery = params.Encode() + "&sp=" + shortsFilter
	return parsed.String(), nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ShortsIntel/1.0)")
	req.Header.Set("Accept-Language", "en")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ports.TransientError{Op: "results page", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &ports.TransientError{Op: "results page", Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// initialData locates the script element that assigns ytInitialData and cuts
// the JSON object out of it.
func initialData(doc *goquery.Document) (string, bool) {
	var payload string
	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := sel.Text()
		idx := strings.Index(text, "ytInitialData")
		if idx < 0 {
			return true
		}
		start := strings.Index(text[idx:], "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end < idx+start {
			return true
		}
		payload = text[idx+start : end+1]
		return false
	})
	return payload, payload != ""
}

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
	SimpleText string `json:"simpleText"`
}

func (t textRuns) text() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var b strings.Builder
	for _, run := range t.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

type videoRenderer struct {
	VideoID   string   `json:"videoId"`
	Title     textRuns `json:"title"`
	OwnerText struct {
		Runs []struct {
			Text               string `json:"text"`
			NavigationEndpoint struct {
				BrowseEndpoint struct {
					BrowseID string `json:"browseId"`
				} `json:"browseEndpoint"`
			} `json:"navigationEndpoint"`
		} `json:"runs"`
	} `json:"ownerText"`
	ViewCountText     textRuns `json:"viewCountText"`
	LengthText        textRuns `json:"lengthText"`
	PublishedTimeText textRuns `json:"publishedTimeText"`
	Thumbnail         struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"thumbnail"`
}

type resultsPayload struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []struct {
								VideoRenderer *videoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

func extractObservations(raw string, now time.Time) ([]domain.RawObservation, error) {
	var payload resultsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode ytInitialData: %w", err)
	}

	var observations []domain.RawObservation
	sections := payload.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		for _, item := range section.ItemSectionRenderer.Contents {
			vr := item.VideoRenderer
			if vr == nil || vr.VideoID == "" {
				continue
			}
			obs := domain.RawObservation{
				VideoID:     vr.VideoID,
				Title:       vr.Title.text(),
				ViewCount:   parseViewText(vr.ViewCountText.text()),
				Duration:    isoDuration(vr.LengthText.text()),
				PublishedAt: relativeTime(vr.PublishedTimeText.text(), now),
				Source:      SourceWeb,
				CollectedAt: now,
			}
			if len(vr.OwnerText.Runs) > 0 {
				obs.ChannelTitle = vr.OwnerText.Runs[0].Text
				obs.ChannelID = vr.OwnerText.Runs[0].NavigationEndpoint.BrowseEndpoint.BrowseID
			}
			if len(vr.Thumbnail.Thumbnails) > 0 {
				obs.ThumbnailURL = vr.Thumbnail.Thumbnails[0].URL
			}
			observations = append(observations, obs)
		}
	}
	return observations, nil
}

// parseViewText reads counters like "1,234,567 views". "No views" and
// anything unreadable count as zero.
func parseViewText(text string) int64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	digits := strings.ReplaceAll(fields[0], ",", "")
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// isoDuration converts a results-page length like "0:58" or "1:02:10" into
// the ISO form the rest of the pipeline expects.
func isoDuration(length string) string {
	parts := strings.Split(strings.TrimSpace(length), ":")
	if length == "" || len(parts) > 3 {
		return ""
	}
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return ""
		}
		values = append(values, n)
	}
	for len(values) < 3 {
		values = append([]int{0}, values...)
	}
	h, m, sec := values[0], values[1], values[2]

	out := "PT"
	if h > 0 {
		out += strconv.Itoa(h) + "H"
	}
	if m > 0 {
		out += strconv.Itoa(m) + "M"
	}
	if sec > 0 || (h == 0 && m == 0) {
		out += strconv.Itoa(sec) + "S"
	}
	return out
}

// relativeTime resolves phrases like "3 weeks ago" against the collection
// time. Unreadable phrases resolve to the collection time itself.
func relativeTime(text string, now time.Time) time.Time {
	text = strings.TrimPrefix(strings.TrimSpace(text), "Streamed ")
	fields := strings.Fields(text)
	if len(fields) < 3 || fields[len(fields)-1] != "ago" {
		return now
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return now
	}

	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "second":
		return now.Add(-time.Duration(n) * time.Second)
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour)
	case "day":
		return now.AddDate(0, 0, -n)
	case "week":
		return now.AddDate(0, 0, -7*n)
	case "month":
		return now.AddDate(0, -n, 0)
	case "year":
		return now.AddDate(-n, 0, 0)
	default:
		return now
	}
}
