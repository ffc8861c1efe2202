package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DestinationTotals is one destination's share of an invoice period.
type DestinationTotals struct {
	Name      string                   `json:"name"`
	Subtotal  decimal.Decimal          `json:"subtotal"`
	PerRank   map[Rank]decimal.Decimal `json:"per_rank"`
	LineItems []ResolvedLineItem       `json:"line_items"`
}

// InvoicePeriodTotals is built fresh from the ledger for each invocation and
// never persisted.
type InvoicePeriodTotals struct {
	PeriodStart      time.Time                     `json:"period_start"`
	PeriodEnd        time.Time                     `json:"period_end"`
	PerDestination   map[string]*DestinationTotals `json:"per_destination"`
	DestinationOrder []string                      `json:"destination_order"`
	PerRank          map[Rank]decimal.Decimal      `json:"per_rank"`
	GrandTotal       decimal.Decimal               `json:"grand_total"`
	TaxRate          decimal.Decimal               `json:"tax_rate"`
	Tax              decimal.Decimal               `json:"tax"`
	TotalWithTax     decimal.Decimal               `json:"total_with_tax"`
	LineCount        int                           `json:"line_count"`
}
