package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the canonical YYYY/MM/DD form used at every boundary.
const DateLayout = "2006/01/02"

var dateLayouts = []string{
	DateLayout,
	"2006/1/2",
	"2006-01-02",
	"2006-1-2",
}

// Day truncates t to a calendar date at midnight UTC. All dates handled by the
// engine are normalized through Day so that equality and map keys are stable.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a normalized calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY/MM/DD (or the dashed equivalent) into a normalized date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, eris.Errorf("model: invalid date %q (want YYYY/MM/DD)", s)
}

// FormatDate renders a date as YYYY/MM/DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
