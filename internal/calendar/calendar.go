// Package calendar answers working-day questions from a weekly rest day and
// a per-year holiday set fetched from an external source.
package calendar

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/freight-cli/internal/model"
)

// ErrCalendarUnavailable is returned under the fail-closed policy when the
// holiday source cannot be reached.
var ErrCalendarUnavailable = eris.New("calendar: holiday source unavailable")

// Source fetches the holidays for one year.
type Source interface {
	Holidays(ctx context.Context, year int) ([]time.Time, error)
}

// Policy decides what a holiday-source failure means.
type Policy string

const (
	// PolicyFailOpen caches an empty set for the year: every date that is not
	// the rest day is treated as a working day for the rest of the run.
	PolicyFailOpen Policy = "fail_open"
	// PolicyFailClosed leaves the year unpopulated and surfaces
	// ErrCalendarUnavailable so the caller can retry later.
	PolicyFailClosed Policy = "fail_closed"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFailOpen:
		return PolicyFailOpen, nil
	case PolicyFailClosed:
		return PolicyFailClosed, nil
	}
	return "", eris.Errorf("calendar: unknown outage policy %q", s)
}

// ParseWeekday parses an English weekday name ("sunday", "Sun").
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, eris.Errorf("calendar: unknown weekday %q", s)
}

// Options configures a Service.
type Options struct {
	RestDay time.Weekday
	Policy  Policy
}

// Service answers whether a date is a working day.
type Service struct {
	source Source
	cache  *Cache
	opts   Options
}

// NewService creates a Service. The cache is injected so callers (and tests)
// control its lifetime; a nil cache gets a fresh one.
func NewService(source Source, cache *Cache, opts Options) *Service {
	if cache == nil {
		cache = NewCache()
	}
	if opts.Policy == "" {
		opts.Policy = PolicyFailOpen
	}
	return &Service{source: source, cache: cache, opts: opts}
}

// Cache returns the service's holiday cache.
func (s *Service) Cache() *Cache {
	return s.cache
}

// IsNonWorkingDay reports whether date is the rest day or a holiday.
func (s *Service) IsNonWorkingDay(ctx context.Context, date time.Time) (bool, error) {
	date = model.Day(date)
	if date.Weekday() == s.opts.RestDay {
		return true, nil
	}
	if err := s.ensureYear(ctx, date.Year()); err != nil {
		return false, err
	}
	holiday, _ := s.cache.Contains(date)
	return holiday, nil
}

// Holidays returns the sorted holiday dates for year, fetching if needed.
func (s *Service) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	if err := s.ensureYear(ctx, year); err != nil {
		return nil, err
	}
	return s.cache.Dates(year), nil
}

// Warm populates several years concurrently.
func (s *Service) Warm(ctx context.Context, years ...int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, year := range years {
		g.Go(func() error {
			return s.ensureYear(gctx, year)
		})
	}
	return g.Wait()
}

func (s *Service) ensureYear(ctx context.Context, year int) error {
	if s.cache.Populated(year) {
		return nil
	}
	if s.source == nil {
		s.cache.Put(year, nil)
		return nil
	}

	dates, err := s.source.Holidays(ctx, year)
	if err != nil {
		if s.opts.Policy == PolicyFailClosed {
			zap.L().Error("calendar: holiday fetch failed, failing closed",
				zap.Int("year", year),
				zap.Error(err),
			)
			return eris.Wrapf(ErrCalendarUnavailable, "year %d: %v", year, err)
		}
		zap.L().Warn("calendar: holiday fetch failed, treating year as having no holidays",
			zap.Int("year", year),
			zap.Error(err),
		)
		dates = nil
	}

	if s.cache.Put(year, dates) {
		zap.L().Debug("calendar: cached holidays",
			zap.Int("year", year),
			zap.Int("count", len(dates)),
		)
	}
	return nil
}
