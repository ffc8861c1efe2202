package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// Rank is the service class assigned to a shipment line.
type Rank string

const (
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
	RankD Rank = "D"
)

// Ranks lists the known ranks in display order.
var Ranks = []Rank{RankA, RankB, RankC, RankD}

// NormalizeRank trims, folds full-width characters, and uppercases a raw rank
// cell. Unrecognized values are returned as-is (uppercased) so they can still
// be displayed; use Known to test membership.
func NormalizeRank(raw string) Rank {
	s := width.Fold.String(strings.TrimSpace(raw))
	return Rank(strings.ToUpper(s))
}

// Known reports whether r is one of A, B, C, D.
func (r Rank) Known() bool {
	switch r {
	case RankA, RankB, RankC, RankD:
		return true
	}
	return false
}

// VolumeTier is the pricing band derived from the same-day case count.
type VolumeTier string

const (
	TierLow      VolumeTier = "low"
	TierStandard VolumeTier = "standard"
)

// RankFees holds the two tier fees for one rank. An invalid NullDecimal means
// the cell is unset in the master.
type RankFees struct {
	Standard decimal.NullDecimal `json:"standard" yaml:"standard"`
	Low      decimal.NullDecimal `json:"low" yaml:"low"`
}

// Destination is a delivery destination master record.
type Destination struct {
	Name         string            `json:"name"`
	FormalName   string            `json:"formal_name"`
	Phone        string            `json:"phone"`
	Address      string            `json:"address"`
	LeadTimeDays int               `json:"lead_time_days"`
	Fees         map[Rank]RankFees `json:"fees"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty"`
}

// Fee returns the configured fee for rank/tier and whether it is set.
func (d *Destination) Fee(rank Rank, tier VolumeTier) (decimal.Decimal, bool) {
	fees, ok := d.Fees[rank]
	if !ok {
		return decimal.Zero, false
	}
	cell := fees.Standard
	if tier == TierLow {
		cell = fees.Low
	}
	if !cell.Valid {
		return decimal.Zero, false
	}
	return cell.Decimal, true
}

// SetFee sets a single rank/tier cell.
func (d *Destination) SetFee(rank Rank, tier VolumeTier, amount decimal.Decimal) {
	if d.Fees == nil {
		d.Fees = make(map[Rank]RankFees, len(Ranks))
	}
	fees := d.Fees[rank]
	if tier == TierLow {
		fees.Low = decimal.NewNullDecimal(amount)
	} else {
		fees.Standard = decimal.NewNullDecimal(amount)
	}
	d.Fees[rank] = fees
}

// HasExtendedRanks reports whether any C or D fee is configured.
func (d *Destination) HasExtendedRanks() bool {
	for _, r := range []Rank{RankC, RankD} {
		fees := d.Fees[r]
		if fees.Standard.Valid || fees.Low.Valid {
			return true
		}
	}
	return false
}

// Validate checks the master record invariants.
func (d *Destination) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return eris.New("destination: name is required")
	}
	if d.LeadTimeDays < 0 {
		return eris.Errorf("destination %s: lead time must be >= 0, got %d", d.Name, d.LeadTimeDays)
	}
	for rank, fees := range d.Fees {
		if !rank.Known() {
			return eris.Errorf("destination %s: unknown rank %q in fee table", d.Name, rank)
		}
		for _, cell := range []decimal.NullDecimal{fees.Standard, fees.Low} {
			if cell.Valid && cell.Decimal.IsNegative() {
				return eris.Errorf("destination %s: rank %s fee must be >= 0", d.Name, rank)
			}
		}
	}
	return nil
}

// ParseLeadTime parses lead times written as "D+2", "2", or "" (zero).
func ParseLeadTime(s string) (int, error) {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(strings.ToUpper(s), "D+")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "destination: invalid lead time %q", s)
	}
	if n < 0 {
		return 0, eris.Errorf("destination: lead time must be >= 0, got %d", n)
	}
	return n, nil
}

// FormatLeadTime renders a lead time in the master's "D+N" notation.
func FormatLeadTime(days int) string {
	return "D+" + strconv.Itoa(days)
}
