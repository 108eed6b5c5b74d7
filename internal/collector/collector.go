package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/domain"
	"ShortsIntel/internal/ports"
	"ShortsIntel/internal/quota"
)

// Collection stages, as recorded in gaps.
const (
	StageSearch   = "search"
	StageDetails  = "details"
	StageComments = "comments"
)

// detailBatchSize is the platform's bound on ids per details call.
const detailBatchSize = 50

// Gap records a collection step abandoned after retries. Gaps are annotated
// metadata, never run failures.
type Gap struct {
	Stage  string `json:"stage"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Result is everything one collection run produced, including how much of
// the plan was actually executed.
type Result struct {
	Brand           string                  `json:"brand"`
	CollectedAt     time.Time               `json:"collected_at"`
	Observations    []domain.RawObservation `json:"observations"`
	Comments        []domain.Comment        `json:"comments"`
	Gaps            []Gap                   `json:"gaps"`
	BudgetExhausted bool                    `json:"budget_exhausted"`
	Searches        int                     `json:"searches"`
	DetailCalls     int                     `json:"detail_calls"`
	CommentCalls    int                     `json:"comment_calls"`
}

// Collector gathers short-form video data for a brand within the quota
// budget. Partial results are normal output, not failures.
type Collector struct {
	platform ports.VideoPlatform
	ledger   *quota.Ledger
	cfg      config.CollectorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Collector. A nil clock falls back to time.Now.
func New(platform ports.VideoPlatform, ledger *quota.Ledger, cfg config.CollectorConfig, logger *slog.Logger, now func() time.Time) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Collector{
		platform: platform,
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger.With("component", "collector"),
		now:      now,
	}
}

// Collect runs the search, details and comments phases for one brand.
// It returns an error only on context cancellation or an unusable ledger;
// budget exhaustion, retry exhaustion and partial batches all end up inside
// the Result.
func (c *Collector) Collect(ctx context.Context, brand config.BrandConfig) (Result, error) {
	collectedAt := c.now().UTC().Truncate(time.Second)
	publishedAfter := collectedAt.AddDate(0, 0, -brand.LookbackDays)

	s := &session{c: c}

	c.logger.Info("collection started",
		"brand", brand.Name,
		"keywords", len(brand.AllKeywords()),
		"quota_remaining", c.ledger.Remaining())

	found, err := c.searchPhase(ctx, s, brand, publishedAfter)
	if err != nil {
		return Result{}, fmt.Errorf("search phase: %w", err)
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	detailed, err := c.detailsPhase(ctx, s, ids)
	if err != nil {
		return Result{}, fmt.Errorf("details phase: %w", err)
	}

	observations := make([]domain.RawObservation, 0, len(ids))
	for _, id := range ids {
		obs := found[id]
		if det, ok := detailed[id]; ok {
			obs = mergeDetails(obs, det)
		}
		if !c.isShort(obs.Duration) {
			continue
		}
		obs.EngagementRate = engagementRate(obs.ViewCount, obs.LikeCount, obs.CommentCount)
		obs.CollectedAt = collectedAt
		observations = append(observations, obs)
	}

	comments, err := c.commentsPhase(ctx, s, observations)
	if err != nil {
		return Result{}, fmt.Errorf("comments phase: %w", err)
	}

	res := Result{
		Brand:           brand.Name,
		CollectedAt:     collectedAt,
		Observations:    observations,
		Comments:        comments,
		Gaps:            s.sortedGaps(),
		BudgetExhausted: s.budgetExhausted(),
		Searches:        s.searches,
		DetailCalls:     s.details,
		CommentCalls:    s.comments,
	}

	c.logger.Info("collection finished",
		"brand", brand.Name,
		"videos", len(res.Observations),
		"comments", len(res.Comments),
		"gaps", len(res.Gaps),
		"budget_exhausted", res.BudgetExhausted)

	return res, nil
}

func (c *Collector) searchPhase(ctx context.Context, s *session, brand config.BrandConfig, publishedAfter time.Time) (map[string]domain.RawObservation, error) {
	found := make(map[string]domain.RawObservation)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout())
	for _, kw := range brand.AllKeywords() {
		kw := kw
		g.Go(func() error {
			return s.call(gctx, quota.OpSearch, StageSearch, kw, func(ctx context.Context) error {
				items, err := c.platform.Search(ctx, kw, brand.VideosPerKeyword, publishedAfter)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, it := range items {
					if it.VideoID == "" {
						continue
					}
					if it.Keyword == "" {
						it.Keyword = kw
					}
					if _, seen := found[it.VideoID]; !seen {
						found[it.VideoID] = it
					}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

func (c *Collector) detailsPhase(ctx context.Context, s *session, ids []string) (map[string]domain.RawObservation, error) {
	detailed := make(map[string]domain.RawObservation, len(ids))
	if len(ids) == 0 {
		return detailed, nil
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout())
	for start := 0; start < len(ids); start += detailBatchSize {
		batch := ids[start:min(start+detailBatchSize, len(ids))]
		g.Go(func() error {
			return s.call(gctx, quota.OpDetails, StageDetails, batchKey(batch), func(ctx context.Context) error {
				items, err := c.platform.VideoDetails(ctx, batch)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, it := range items {
					detailed[it.VideoID] = it
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detailed, nil
}

func (c *Collector) commentsPhase(ctx context.Context, s *session, observations []domain.RawObservation) ([]domain.Comment, error) {
	if c.cfg.CommentVideos <= 0 || len(observations) == 0 {
		return nil, nil
	}

	top := topByViews(observations, c.cfg.CommentVideos)
	var (
		mu       sync.Mutex
		comments []domain.Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout())
	for _, obs := range top {
		obs := obs
		g.Go(func() error {
			return s.call(gctx, quota.OpComments, StageComments, obs.VideoID, func(ctx context.Context) error {
				items, err := c.platform.Comments(ctx, obs.VideoID, c.cfg.CommentsPerVideo)
				if err != nil {
					return err
				}
				mu.Lock()
				comments = append(comments, items...)
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(comments, func(i, j int) bool {
		if comments[i].VideoID != comments[j].VideoID {
			return comments[i].VideoID < comments[j].VideoID
		}
		return comments[i].CommentID < comments[j].CommentID
	})
	return comments, nil
}

func (c *Collector) fanout() int {
	if c.cfg.Fanout > 0 {
		return c.cfg.Fanout
	}
	return 4
}

func (c *Collector) attempts() int {
	if c.cfg.MaxAttempts > 0 {
		return c.cfg.MaxAttempts
	}
	return 3
}

func (c *Collector) backoff(retry int) time.Duration {
	base := time.Duration(c.cfg.BackoffBaseMS) * time.Millisecond
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base << (retry - 1)
	return d + time.Duration(rand.Int63n(int64(base)))
}

func (c *Collector) isShort(isoDuration string) bool {
	cutoff := c.cfg.ShortsMaxSeconds
	if cutoff <= 0 {
		cutoff = 60
	}
	secs, ok := durationSeconds(isoDuration)
	if !ok {
		// Search results carry no duration; details decide later.
		return true
	}
	return secs <= cutoff
}

// session accumulates the mutable state of one collection run.
type session struct {
	c *Collector

	mu        sync.Mutex
	exhausted bool
	gaps      []Gap
	searches  int
	details   int
	comments  int
}

// call runs one platform operation with quota accounting and bounded retry.
// Every attempt reserves its own units first. A denied reservation trips the
// run's budget flag; exhausted retries and permanent failures become gaps.
// Only context cancellation propagates as an error.
func (s *session) call(ctx context.Context, op quota.Operation, stage, key string, fn func(context.Context) error) error {
	if s.budgetExhausted() {
		return nil
	}

	var lastErr error
	attempts := s.c.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.c.backoff(attempt - 1)):
			}
		}

		if _, err := s.c.ledger.Reserve(op, 1); err != nil {
			var exceeded *quota.ExceededError
			if errors.As(err, &exceeded) {
				s.exhaust()
				s.c.logger.Warn("budget exhausted, truncating collection",
					"stage", stage, "key", key, "remaining", exceeded.Remaining)
				return nil
			}
			s.addGap(stage, key, err.Error())
			return nil
		}
		s.count(op)

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		var transient *ports.TransientError
		if !errors.As(err, &transient) {
			break
		}
		s.c.logger.Warn("transient platform failure",
			"stage", stage, "key", key, "attempt", attempt, "err", err)
	}

	s.addGap(stage, key, lastErr.Error())
	return nil
}

func (s *session) exhaust() {
	s.mu.Lock()
	s.exhausted = true
	s.mu.Unlock()
}

func (s *session) budgetExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

func (s *session) addGap(stage, key, reason string) {
	s.mu.Lock()
	s.gaps = append(s.gaps, Gap{Stage: stage, Key: key, Reason: reason})
	s.mu.Unlock()
}

func (s *session) count(op quota.Operation) {
	s.mu.Lock()
	switch op {
	case quota.OpSearch:
		s.searches++
	case quota.OpDetails:
		s.details++
	case quota.OpComments:
		s.comments++
	}
	s.mu.Unlock()
}

func (s *session) sortedGaps() []Gap {
	s.mu.Lock()
	defer s.mu.Unlock()
	gaps := make([]Gap, len(s.gaps))
	copy(gaps, s.gaps)
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Stage != gaps[j].Stage {
			return gaps[i].Stage < gaps[j].Stage
		}
		return gaps[i].Key < gaps[j].Key
	})
	return gaps
}

func mergeDetails(base, det domain.RawObservation) domain.RawObservation {
	base.ViewCount = det.ViewCount
	base.LikeCount = det.LikeCount
	base.CommentCount = det.CommentCount
	if det.Duration != "" {
		base.Duration = det.Duration
	}
	if det.Title != "" {
		base.Title = det.Title
	}
	if det.Description != "" {
		base.Description = det.Description
	}
	if det.ChannelID != "" {
		base.ChannelID = det.ChannelID
	}
	if det.ChannelTitle != "" {
		base.ChannelTitle = det.ChannelTitle
	}
	if !det.PublishedAt.IsZero() {
		base.PublishedAt = det.PublishedAt
	}
	if len(det.Tags) > 0 {
		base.Tags = det.Tags
	}
	if det.CategoryID != "" {
		base.CategoryID = det.CategoryID
	}
	if det.ThumbnailURL != "" {
		base.ThumbnailURL = det.ThumbnailURL
	}
	return base
}

func engagementRate(views, likes, comments int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes+comments) / float64(views) * 100
}

func topByViews(observations []domain.RawObservation, n int) []domain.RawObservation {
	top := make([]domain.RawObservation, len(observations))
	copy(top, observations)
	sort.Slice(top, func(i, j int) bool {
		if top[i].ViewCount != top[j].ViewCount {
			return top[i].ViewCount > top[j].ViewCount
		}
		return top[i].VideoID < top[j].VideoID
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}

func batchKey(ids []string) string {
	if len(ids) == 1 {
		return ids[0]
	}
	return ids[0] + "(+" + strconv.Itoa(len(ids)-1) + ")"
}

// durationSeconds parses an ISO-8601 duration like PT1M5S. The second return
// is false when the string is empty or not a duration.
func durationSeconds(iso string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(iso))
	if !strings.HasPrefix(s, "PT") {
		return 0, false
	}
	s = strings.TrimPrefix(s, "PT")
	if s == "" {
		return 0, false
	}

	total := 0
	num := 0
	seen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			seen = true
		case r == 'H':
			total += num * 3600
			num = 0
		case r == 'M':
			total += num * 60
			num = 0
		case r == 'S':
			total += num
			num = 0
		default:
			return 0, false
		}
	}
	if !seen {
		return 0, false
	}
	return total, true
}
