package calendar

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

// DayChecker reports whether a date is a non-working day. *Service is the
// production implementation.
type DayChecker interface {
	IsNonWorkingDay(ctx context.Context, date time.Time) (bool, error)
}

// BusinessDays adds working days to a date.
type BusinessDays struct {
	cal         DayChecker
	maxWalkDays int
}

// NewBusinessDays creates a calculator over cal. maxWalkDays bounds how many
// consecutive non-working days may be skipped before giving up; <= 0 means 366.
func NewBusinessDays(cal DayChecker, maxWalkDays int) *BusinessDays {
	if maxWalkDays <= 0 {
		maxWalkDays = 366
	}
	return &BusinessDays{cal: cal, maxWalkDays: maxWalkDays}
}

// AddWorkingDays walks forward from start one calendar day at a time and
// returns the day on which the n-th working day is reached. The start date is
// never counted; n == 0 returns start.
func (b *BusinessDays) AddWorkingDays(ctx context.Context, start time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, eris.Errorf("calendar: working days must be >= 0, got %d", n)
	}

	day := model.Day(start)
	skipped := 0
	for remaining := n; remaining > 0; {
		day = day.AddDate(0, 0, 1)

		nonWorking, err := b.cal.IsNonWorkingDay(ctx, day)
		if err != nil {
			return time.Time{}, err
		}
		if nonWorking {
			skipped++
			if skipped > b.maxWalkDays {
				return time.Time{}, eris.Errorf("calendar: no working day found within %d days after %s",
					b.maxWalkDays, model.FormatDate(start))
			}
			continue
		}
		skipped = 0
		remaining--
	}
	return day, nil
}
