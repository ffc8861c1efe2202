// Package invoice rolls the freight ledger up into billing-period totals.
package invoice

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/freight-cli/internal/model"
)

// Taxonomy selects the rank buckets used for per-rank subtotals.
type Taxonomy string

const (
	// TaxonomyMinimal buckets A and everything else (as B).
	TaxonomyMinimal Taxonomy = "minimal"
	// TaxonomyExtended buckets A, B, C, D; unknown ranks go to B.
	TaxonomyExtended Taxonomy = "extended"
	// TaxonomyAuto uses extended buckets for destinations that price C or D
	// and minimal buckets for the rest.
	TaxonomyAuto Taxonomy = "auto"
)

// Rounding is the tax rounding policy.
type Rounding string

const (
	RoundHalfUp Rounding = "half_up"
	RoundFloor  Rounding = "floor"
)

// ParseTaxonomy validates a configured taxonomy.
func ParseTaxonomy(s string) (Taxonomy, error) {
	switch t := Taxonomy(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TaxonomyAuto, nil
	case TaxonomyMinimal, TaxonomyExtended, TaxonomyAuto:
		return t, nil
	}
	return "", eris.Errorf("invoice: unknown rank taxonomy %q", s)
}

// ParseRounding validates a configured rounding policy.
func ParseRounding(s string) (Rounding, error) {
	switch r := Rounding(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoundHalfUp, nil
	case RoundHalfUp, RoundFloor:
		return r, nil
	}
	return "", eris.Errorf("invoice: unknown tax rounding %q", s)
}

// Options configures an Aggregator.
type Options struct {
	TaxRate        decimal.Decimal
	Rounding       Rounding
	CurrencyPlaces int32
	Taxonomy       Taxonomy
	// Extended reports whether a destination prices ranks C or D. Only
	// consulted under TaxonomyAuto; nil means no destination does.
	Extended func(destination string) bool
}

// Aggregator builds invoice totals from resolved ledger lines.
type Aggregator struct {
	opts Options
}

// NewAggregator creates an Aggregator with defaults for unset options.
func NewAggregator(opts Options) *Aggregator {
	if opts.Rounding == "" {
		opts.Rounding = RoundHalfUp
	}
	if opts.Taxonomy == "" {
		opts.Taxonomy = TaxonomyAuto
	}
	return &Aggregator{opts: opts}
}

// Aggregate totals the lines whose pickup date falls in [start, end]. Stored
// freight amounts are summed as recorded; nothing is re-priced.
func (a *Aggregator) Aggregate(items []model.ResolvedLineItem, start, end time.Time) *model.InvoicePeriodTotals {
	start, end = model.Day(start), model.Day(end)
	totals := &model.InvoicePeriodTotals{
		PeriodStart:    start,
		PeriodEnd:      end,
		PerDestination: make(map[string]*model.DestinationTotals),
		PerRank:        make(map[model.Rank]decimal.Decimal),
		GrandTotal:     decimal.Zero,
		TaxRate:        a.opts.TaxRate,
	}

	var inPeriod []model.ResolvedLineItem
	for _, item := range items {
		day := model.Day(item.PickupDate)
		if day.Before(start) || day.After(end) {
			continue
		}
		inPeriod = append(inPeriod, item)
	}
	sort.SliceStable(inPeriod, func(i, j int) bool {
		return model.Day(inPeriod[i].PickupDate).Before(model.Day(inPeriod[j].PickupDate))
	})

	for _, item := range inPeriod {
		totals.LineCount++
		totals.GrandTotal = totals.GrandTotal.Add(item.TotalFreight)

		bucket := a.bucket(item)
		totals.PerRank[bucket] = totals.PerRank[bucket].Add(item.TotalFreight)

		name := strings.TrimSpace(item.Destination)
		if name == "" {
			continue
		}
		dt, ok := totals.PerDestination[name]
		if !ok {
			dt = &model.DestinationTotals{
				Name:     name,
				Subtotal: decimal.Zero,
				PerRank:  make(map[model.Rank]decimal.Decimal),
			}
			totals.PerDestination[name] = dt
			totals.DestinationOrder = append(totals.DestinationOrder, name)
		}
		dt.Subtotal = dt.Subtotal.Add(item.TotalFreight)
		dt.PerRank[bucket] = dt.PerRank[bucket].Add(item.TotalFreight)
		dt.LineItems = append(dt.LineItems, item)
	}

	totals.Tax = RoundTax(totals.GrandTotal.Mul(a.opts.TaxRate), a.opts.CurrencyPlaces, a.opts.Rounding)
	totals.TotalWithTax = totals.GrandTotal.Add(totals.Tax)
	return totals
}

func (a *Aggregator) bucket(item model.ResolvedLineItem) model.Rank {
	rank := model.NormalizeRank(string(item.Rank))
	extended := false
	switch a.opts.Taxonomy {
	case TaxonomyExtended:
		extended = true
	case TaxonomyAuto:
		extended = a.opts.Extended != nil && a.opts.Extended(item.Destination)
	}

	if rank == model.RankA {
		return model.RankA
	}
	if extended && rank.Known() {
		return rank
	}
	return model.RankB
}

// RoundTax rounds amount to places decimal places under the given policy.
func RoundTax(amount decimal.Decimal, places int32, rounding Rounding) decimal.Decimal {
	if rounding == RoundFloor {
		return amount.RoundFloor(places)
	}
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts invoices carry.
	return amount.Round(places)
}
