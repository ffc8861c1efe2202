package freight

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// WorkingDays adds working days to a date. *calendar.BusinessDays implements it.
type WorkingDays interface {
	AddWorkingDays(ctx context.Context, start time.Time, n int) (time.Time, error)
}

// Scheduled is a line with its group case count, tier, and delivery date.
type Scheduled struct {
	Item         model.LineItem
	CaseCount    int
	Tier         model.VolumeTier
	DeliveryDate time.Time
}

// Aggregator groups a document's lines into shipments.
type Aggregator struct {
	days      WorkingDays
	threshold int
}

// NewAggregator creates an Aggregator. threshold <= 0 uses
// DefaultLowVolumeThreshold.
func NewAggregator(days WorkingDays, threshold int) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultLowVolumeThreshold
	}
	return &Aggregator{days: days, threshold: threshold}
}

// Threshold returns the low-volume threshold in use.
func (a *Aggregator) Threshold() int { return a.threshold }

// CaseCounts sums quantities per (destination, pickup date). Unassigned lines
// are not counted.
func CaseCounts(items []model.LineItem) map[model.GroupKey]int {
	counts := make(map[model.GroupKey]int)
	for _, item := range items {
		if item.Unassigned() {
			continue
		}
		counts[item.Key()] += item.Quantity
	}
	return counts
}

// GroupAndSchedule assigns every line its group's case count and tier and
// computes its delivery date from the destination's lead time. Group totals
// are taken over the whole item list before any tier is assigned. Unassigned
// lines and lines for destinations missing from table are delivered on the
// pickup date.
func (a *Aggregator) GroupAndSchedule(ctx context.Context, items []model.LineItem, table *RateTable) ([]Scheduled, error) {
	counts := CaseCounts(items)
	delivery := make(map[model.GroupKey]time.Time, len(counts))

	out := make([]Scheduled, 0, len(items))
	for _, item := range items {
		pickup := model.Day(item.PickupDate)
		s := Scheduled{Item: item, DeliveryDate: pickup}
		if item.Unassigned() {
			out = append(out, s)
			continue
		}

		key := item.Key()
		s.CaseCount = counts[key]
		s.Tier = TierFor(s.CaseCount, a.threshold)

		date, ok := delivery[key]
		if !ok {
			var err error
			date, err = a.deliveryDate(ctx, item.Destination, pickup, table)
			if err != nil {
				return nil, err
			}
			delivery[key] = date
		}
		s.DeliveryDate = date
		out = append(out, s)
	}
	return out, nil
}

func (a *Aggregator) deliveryDate(ctx context.Context, destination string, pickup time.Time, table *RateTable) (time.Time, error) {
	dest, ok := table.Destination(destination)
	if !ok {
		zap.L().Warn("freight: destination not in master, delivery date is pickup date",
			zap.String("destination", destination),
			zap.String("pickup_date", model.FormatDate(pickup)),
		)
		return pickup, nil
	}
	date, err := a.days.AddWorkingDays(ctx, pickup, dest.LeadTimeDays)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "freight: schedule %s from %s", destination, model.FormatDate(pickup))
	}
	return date, nil
}

// Price resolves every scheduled line against table. Freight is rate times
// quantity with no rounding; unassigned lines carry zero freight.
func Price(scheduled []Scheduled, table *RateTable) []model.ResolvedLineItem {
	out := make([]model.ResolvedLineItem, 0, len(scheduled))
	for _, s := range scheduled {
		r := model.ResolvedLineItem{
			LineItem:     s.Item,
			DeliveryDate: s.DeliveryDate,
			Tier:         s.Tier,
			CaseCount:    s.CaseCount,
			RatePerUnit:  decimal.Zero,
			TotalFreight: decimal.Zero,
		}
		if !s.Item.Unassigned() {
			res := table.ResolveRate(s.Item.Destination, s.Item.Rank, s.Tier)
			r.RatePerUnit = res.Amount
			r.TotalFreight = res.Amount.Mul(decimal.NewFromInt(int64(s.Item.Quantity)))
		}
		out = append(out, r)
	}
	return out
}

// Resolve runs GroupAndSchedule followed by Price.
func (a *Aggregator) Resolve(ctx context.Context, items []model.LineItem, table *RateTable) ([]model.ResolvedLineItem, error) {
	scheduled, err := a.GroupAndSchedule(ctx, items, table)
	if err != nil {
		return nil, err
	}
	return Price(scheduled, table), nil
}
