// Package freight groups shipment lines, schedules their delivery dates, and
// prices them against the destination rate table.
package freight

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// DefaultLowVolumeThreshold is the group quantity below which the low-volume
// fee applies.
const DefaultLowVolumeThreshold = 5

// Diagnostic explains a resolution that fell back to a default.
type Diagnostic string

const (
	DiagnosticNone               Diagnostic = ""
	DiagnosticRankDefaulted      Diagnostic = "rank_defaulted"
	DiagnosticUnknownDestination Diagnostic = "unknown_destination"
	DiagnosticFeeUnset           Diagnostic = "fee_unset"
	DiagnosticUnassigned         Diagnostic = "unassigned"
)

// Resolution is the outcome of a rate lookup.
type Resolution struct {
	Amount     decimal.Decimal
	Rank       model.Rank // rank actually priced
	Diagnostic Diagnostic
}

// RateTable is an immutable snapshot of the destination master.
type RateTable struct {
	destinations map[string]model.Destination
}

// NewRateTable snapshots dests. Later edits to the master do not affect the table.
func NewRateTable(dests []model.Destination) *RateTable {
	t := &RateTable{destinations: make(map[string]model.Destination, len(dests))}
	for _, d := range dests {
		fees := make(map[model.Rank]model.RankFees, len(d.Fees))
		for r, f := range d.Fees {
			fees[r] = f
		}
		d.Fees = fees
		t.destinations[strings.TrimSpace(d.Name)] = d
	}
	return t
}

// Destination looks up a master record by name.
func (t *RateTable) Destination(name string) (model.Destination, bool) {
	d, ok := t.destinations[strings.TrimSpace(name)]
	return d, ok
}

// Names returns the destination names in sorted order.
func (t *RateTable) Names() []string {
	names := make([]string, 0, len(t.destinations))
	for n := range t.destinations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of destinations in the table.
func (t *RateTable) Len() int { return len(t.destinations) }

// ResolveRate returns the per-unit fee for a destination, rank, and tier.
// Ranks outside A-D are priced as B. A missing destination or unset fee
// resolves to zero with a diagnostic; it is never an error.
func (t *RateTable) ResolveRate(destination string, rank model.Rank, tier model.VolumeTier) Resolution {
	res := Resolution{Amount: decimal.Zero, Rank: model.NormalizeRank(string(rank))}
	if !res.Rank.Known() {
		res.Rank = model.RankB
		res.Diagnostic = DiagnosticRankDefaulted
	}

	d, ok := t.Destination(destination)
	if !ok {
		res.Diagnostic = DiagnosticUnknownDestination
		zap.L().Warn("freight: destination not in master, freight is zero",
			zap.String("destination", destination),
		)
		return res
	}

	amount, ok := d.Fee(res.Rank, tier)
	if !ok {
		res.Diagnostic = DiagnosticFeeUnset
		zap.L().Warn("freight: fee not set, freight is zero",
			zap.String("destination", destination),
			zap.String("rank", string(res.Rank)),
			zap.String("tier", string(tier)),
		)
		return res
	}
	res.Amount = amount
	return res
}

// TierFor returns the volume tier for a group quantity.
func TierFor(caseCount, threshold int) model.VolumeTier {
	if caseCount < threshold {
		return model.TierLow
	}
	return model.TierStandard
}
