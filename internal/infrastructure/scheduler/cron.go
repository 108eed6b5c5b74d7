package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ShortsIntel/internal/ports"
)

// CronScheduler fires a job on a five-field cron expression, evaluated in a
// configured location.
type CronScheduler struct {
	spec string
	loc  *time.Location
	now  func() time.Time
	stop chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a cron expression like
// "0 6 * * *". A nil location defaults to UTC.
func NewCronScheduler(spec string, loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, loc: loc, now: time.Now}
}

// Start launches the firing goroutine. It returns an error when the cron
// expression does not parse; starting twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.stop != nil {
		return nil
	}

	schedule, err := parseSpec(c.spec)
	if err != nil {
		return fmt.Errorf("parse cron spec %q: %w", c.spec, err)
	}

	stop := make(chan struct{})
	c.stop = stop
	go func() {
		for {
			now := c.now().In(c.loc)
			next := schedule.next(now)
			if next.IsZero() {
				return
			}
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-timer.C:
				job(next)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the firing goroutine.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}

// cronSchedule holds one bitmask per field. domAny and dowAny remember
// whether the day fields were written as "*", which controls the either/or
// day-matching rule.
type cronSchedule struct {
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
	domAny bool
	dowAny bool
}

func parseSpec(spec string) (*cronSchedule, error) {
	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return nil, fmt.Errorf("want 5 fields, got %d", len(fields))
	}

	var s cronSchedule
	var err error
	if s.minute, _, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("minute: %w", err)
	}
	if s.hour, _, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("hour: %w", err)
	}
	if s.dom, s.domAny, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("day of month: %w", err)
	}
	if s.month, _, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("month: %w", err)
	}
	if s.dow, s.dowAny, err = parseField(fields[4], 0, 7); err != nil {
		return nil, fmt.Errorf("day of week: %w", err)
	}
	// Both 0 and 7 mean Sunday.
	if s.dow&(1<<7) != 0 {
		s.dow |= 1
		s.dow &^= 1 << 7
	}
	return &s, nil
}

func parseField(expr string, min, max int) (uint64, bool, error) {
	var mask uint64
	for _, part := range strings.Split(expr, ",") {
		step := 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			v, err := strconv.Atoi(part[i+1:])
			if err != nil || v <= 0 {
				return 0, false, fmt.Errorf("bad step %q", part)
			}
			step = v
			part = part[:i]
		}

		lo, hi := min, max
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			var err error
			if lo, err = strconv.Atoi(bounds[0]); err != nil {
				return 0, false, fmt.Errorf("bad range %q", part)
			}
			if hi, err = strconv.Atoi(bounds[1]); err != nil {
				return 0, false, fmt.Errorf("bad range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return 0, false, fmt.Errorf("bad value %q", part)
			}
			lo, hi = v, v
		}
		if lo < min || hi > max || lo > hi {
			return 0, false, fmt.Errorf("value out of range in %q", part)
		}
		for v := lo; v <= hi; v += step {
			mask |= 1 << uint(v)
		}
	}
	return mask, expr == "*", nil
}

// next returns the first firing instant strictly after t, or the zero time
// when no instant exists within the scan horizon.
func (s *cronSchedule) next(t time.Time) time.Time {
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if s.month&(1<<uint(t.Month())) == 0 {
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			continue
		}
		if s.hour&(1<<uint(t.Hour())) == 0 {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
			continue
		}
		if s.minute&(1<<uint(t.Minute())) == 0 {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// dayMatches applies the cron day rule: when both day fields are
// restricted, either one matching is enough.
func (s *cronSchedule) dayMatches(t time.Time) bool {
	domHit := s.dom&(1<<uint(t.Day())) != 0
	dowHit := s.dow&(1<<uint(t.Weekday())) != 0
	switch {
	case s.domAny && s.dowAny:
		return true
	case s.domAny:
		return dowHit
	case s.dowAny:
		return domHit
	default:
		return domHit || dowHit
	}
}
