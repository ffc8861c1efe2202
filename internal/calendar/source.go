package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/fetcher"
	"github.com/sells-group/freight-cli/internal/model"
)

// DefaultHolidayURL is the public Japanese holiday API; %d is the year.
const DefaultHolidayURL = "https://holidays-jp.github.io/api/v1/%d/date.json"

// HTTPSource fetches holidays from a JSON API that returns an object keyed by
// date ("2024-01-01": "New Year's Day").
type HTTPSource struct {
	fetcher     fetcher.Fetcher
	urlTemplate string
}

// NewHTTPSource creates an HTTPSource. urlTemplate must contain one %d verb
// for the year; empty uses DefaultHolidayURL.
func NewHTTPSource(f fetcher.Fetcher, urlTemplate string) *HTTPSource {
	if urlTemplate == "" {
		urlTemplate = DefaultHolidayURL
	}
	return &HTTPSource{fetcher: f, urlTemplate: urlTemplate}
}

// Holidays implements Source.
func (s *HTTPSource) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	url := fmt.Sprintf(s.urlTemplate, year)
	body, err := s.fetcher.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "calendar: fetch holidays %d", year)
	}
	defer body.Close() //nolint:errcheck

	named, err := fetcher.DecodeJSONObject[map[string]string](body)
	if err != nil {
		return nil, eris.Wrapf(err, "calendar: decode holidays %d", year)
	}

	dates := make([]time.Time, 0, len(*named))
	for key := range *named {
		d, err := model.ParseDate(key)
		if err != nil {
			return nil, eris.Wrapf(err, "calendar: holidays %d", year)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// StaticSource serves a fixed list of dates, such as company closure days.
type StaticSource []time.Time

// ParseStaticSource parses YYYY/MM/DD strings.
func ParseStaticSource(dates []string) (StaticSource, error) {
	out := make(StaticSource, 0, len(dates))
	for _, s := range dates {
		d, err := model.ParseDate(s)
		if err != nil {
			return nil, eris.Wrap(err, "calendar: extra holidays")
		}
		out = append(out, d)
	}
	return out, nil
}

// Holidays implements Source.
func (s StaticSource) Holidays(_ context.Context, year int) ([]time.Time, error) {
	var out []time.Time
	for _, d := range s {
		if d.Year() == year {
			out = append(out, d)
		}
	}
	return out, nil
}

// MergedSource unions a primary source with fixed extra dates. A primary
// failure is returned as-is so the outage policy still applies.
type MergedSource struct {
	Primary Source
	Extra   StaticSource
}

// Holidays implements Source.
func (m MergedSource) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	extra, _ := m.Extra.Holidays(ctx, year)
	if m.Primary == nil {
		return extra, nil
	}
	dates, err := m.Primary.Holidays(ctx, year)
	if err != nil {
		return nil, err
	}
	return append(dates, extra...), nil
}
