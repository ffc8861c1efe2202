package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// LineItem is one parsed row of a source document. It is immutable once built.
type LineItem struct {
	PickupDate      time.Time `json:"pickup_date"`
	TemperatureZone string    `json:"temperature_zone"`
	ProductCode     string    `json:"product_code"`
	ProductName     string    `json:"product_name"`
	Rank            Rank      `json:"rank"`
	Weight          string    `json:"weight"`
	Quantity        int       `json:"quantity"`
	Destination     string    `json:"destination"`
}

// Unassigned reports whether the line has no destination.
func (l LineItem) Unassigned() bool {
	return strings.TrimSpace(l.Destination) == ""
}

// GroupKey identifies a shipment group: all lines sharing a destination and
// pickup date.
type GroupKey struct {
	Destination string
	PickupDate  string
}

// Key returns the shipment group key for the line.
func (l LineItem) Key() GroupKey {
	return GroupKey{Destination: strings.TrimSpace(l.Destination), PickupDate: FormatDate(l.PickupDate)}
}

// ParseQuantity parses a quantity cell. Absent, invalid, and non-positive
// values default to 1.
func ParseQuantity(s string) int {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f < 1 {
			return 1
		}
		n = int(f)
	}
	if n < 1 {
		return 1
	}
	return n
}

// ResolvedLineItem is a LineItem with its schedule and freight applied.
type ResolvedLineItem struct {
	LineItem
	DeliveryDate time.Time       `json:"delivery_date"`
	Tier         VolumeTier      `json:"tier"`
	CaseCount    int             `json:"case_count"`
	RatePerUnit  decimal.Decimal `json:"rate_per_unit"`
	TotalFreight decimal.Decimal `json:"total_freight"`
	DocumentKey  string          `json:"document_key,omitempty"`
}
