package invoice

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/fetcher"
	"github.com/sells-group/freight-cli/internal/model"
)

func item(dest string, pickup time.Time, rank model.Rank, qty int, rate int64) model.ResolvedLineItem {
	r := decimal.NewFromInt(rate)
	return model.ResolvedLineItem{
		LineItem:     model.LineItem{Destination: dest, PickupDate: pickup, Rank: rank, Quantity: qty},
		RatePerUnit:  r,
		TotalFreight: r.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAggregate_PeriodAndTotals(t *testing.T) {
	start, end := Month(2024, time.June)
	items := []model.ResolvedLineItem{
		item("Tokyo-DC", model.Date(2024, time.June, 10), model.RankB, 2, 800),
		item("Osaka", model.Date(2024, time.June, 1), model.RankA, 1, 1000),
		item("Tokyo-DC", model.Date(2024, time.June, 3), model.RankA, 1, 1500),
		item("Tokyo-DC", model.Date(2024, time.May, 31), model.RankA, 1, 99999),
		item("Tokyo-DC", model.Date(2024, time.July, 1), model.RankA, 1, 99999),
		item("Tokyo-DC", model.Date(2024, time.June, 30), "Z", 1, 700),
	}

	agg := NewAggregator(Options{TaxRate: decimal.RequireFromString("0.10"), Taxonomy: TaxonomyMinimal})
	got := agg.Aggregate(items, start, end)

	assert.Equal(t, 4, got.LineCount)
	assert.True(t, got.GrandTotal.Equal(dec(4800)), got.GrandTotal.String())
	assert.True(t, got.Tax.Equal(dec(480)))
	assert.True(t, got.TotalWithTax.Equal(dec(5280)))

	assert.True(t, got.PerRank[model.RankA].Equal(dec(2500)))
	assert.True(t, got.PerRank[model.RankB].Equal(dec(2300)))

	assert.Equal(t, []string{"Osaka", "Tokyo-DC"}, got.DestinationOrder)
	tokyo := got.PerDestination["Tokyo-DC"]
	require.Len(t, tokyo.LineItems, 3)
	assert.True(t, tokyo.Subtotal.Equal(dec(3800)))
	assert.Equal(t, model.Date(2024, time.June, 3), tokyo.LineItems[0].PickupDate, "ordered by pickup date")
	assert.Equal(t, model.Date(2024, time.June, 30), tokyo.LineItems[2].PickupDate)
	assert.True(t, tokyo.PerRank[model.RankA].Equal(dec(1500)))
}

func TestAggregate_BoundariesInclusive(t *testing.T) {
	agg := NewAggregator(Options{})
	items := []model.ResolvedLineItem{
		item("X", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), model.RankA, 1, 1),
		item("X", time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC), model.RankA, 1, 1),
	}
	got := agg.Aggregate(items, model.Date(2024, time.June, 1), model.Date(2024, time.June, 30))
	assert.Equal(t, 2, got.LineCount)
}

func TestAggregate_EmptyPeriod(t *testing.T) {
	agg := NewAggregator(Options{TaxRate: decimal.RequireFromString("0.1")})
	got := agg.Aggregate(nil, model.Date(2024, time.June, 1), model.Date(2024, time.June, 30))
	assert.Zero(t, got.LineCount)
	assert.True(t, got.GrandTotal.IsZero())
	assert.True(t, got.TotalWithTax.IsZero())
	assert.Empty(t, got.DestinationOrder)
}

func TestAggregate_UnassignedCountsTowardGrandTotalOnly(t *testing.T) {
	agg := NewAggregator(Options{})
	got := agg.Aggregate([]model.ResolvedLineItem{
		item("", model.Date(2024, time.June, 2), model.RankA, 1, 0),
		item("Tokyo-DC", model.Date(2024, time.June, 2), model.RankA, 1, 100),
	}, model.Date(2024, time.June, 1), model.Date(2024, time.June, 30))
	assert.Equal(t, 2, got.LineCount)
	assert.Len(t, got.PerDestination, 1)
}

func TestAggregate_Taxonomy(t *testing.T) {
	pickup := model.Date(2024, time.June, 3)
	items := []model.ResolvedLineItem{
		item("Tokyo-DC", pickup, model.RankC, 1, 300),
		item("Tokyo-DC", pickup, model.RankD, 1, 400),
		item("Osaka", pickup, model.RankC, 1, 50),
		item("Osaka", pickup, "?", 1, 5),
	}
	start, end := Month(2024, time.June)

	minimal := NewAggregator(Options{Taxonomy: TaxonomyMinimal}).Aggregate(items, start, end)
	assert.Len(t, minimal.PerRank, 1)
	assert.True(t, minimal.PerRank[model.RankB].Equal(dec(755)))

	extended := NewAggregator(Options{Taxonomy: TaxonomyExtended}).Aggregate(items, start, end)
	assert.True(t, extended.PerRank[model.RankC].Equal(dec(350)))
	assert.True(t, extended.PerRank[model.RankD].Equal(dec(400)))
	assert.True(t, extended.PerRank[model.RankB].Equal(dec(5)))

	auto := NewAggregator(Options{
		Taxonomy: TaxonomyAuto,
		Extended: func(dest string) bool { return dest == "Tokyo-DC" },
	}).Aggregate(items, start, end)
	assert.True(t, auto.PerRank[model.RankC].Equal(dec(300)))
	assert.True(t, auto.PerRank[model.RankD].Equal(dec(400)))
	assert.True(t, auto.PerRank[model.RankB].Equal(dec(55)))
}

func TestRoundTax(t *testing.T) {
	rate := decimal.RequireFromString("0.10")
	tests := []struct {
		name     string
		grand    int64
		rounding Rounding
		want     int64
	}{
		{"exact half up", 100000, RoundHalfUp, 10000},
		{"exact floor", 100000, RoundFloor, 10000},
		{"half up rounds .5 up", 100005, RoundHalfUp, 10001},
		{"floor drops .5", 100005, RoundFloor, 10000},
		{"half up rounds .4 down", 100004, RoundHalfUp, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundTax(dec(tt.grand).Mul(rate), 0, tt.rounding)
			assert.True(t, got.Equal(dec(tt.want)), got.String())
		})
	}

	agg := NewAggregator(Options{TaxRate: rate, Rounding: RoundFloor})
	totals := agg.Aggregate([]model.ResolvedLineItem{
		item("X", model.Date(2024, time.June, 1), model.RankA, 1, 100005),
	}, model.Date(2024, time.June, 1), model.Date(2024, time.June, 30))
	assert.True(t, totals.Tax.Equal(dec(10000)))
	assert.True(t, totals.TotalWithTax.Equal(dec(110005)))
}

func TestParseOptions(t *testing.T) {
	tx, err := ParseTaxonomy("")
	require.NoError(t, err)
	assert.Equal(t, TaxonomyAuto, tx)
	tx, err = ParseTaxonomy("Extended")
	require.NoError(t, err)
	assert.Equal(t, TaxonomyExtended, tx)
	_, err = ParseTaxonomy("full")
	require.Error(t, err)

	r, err := ParseRounding("")
	require.NoError(t, err)
	assert.Equal(t, RoundHalfUp, r)
	r, err = ParseRounding("FLOOR")
	require.NoError(t, err)
	assert.Equal(t, RoundFloor, r)
	_, err = ParseRounding("banker")
	require.Error(t, err)
}

func TestNewHeader(t *testing.T) {
	h := NewHeader(2024, time.June, time.Date(2024, 7, 2, 15, 0, 0, 0, time.UTC), 30)
	assert.Equal(t, "INV-202406-001", h.Number)
	assert.Equal(t, model.Date(2024, time.June, 1), h.PeriodStart)
	assert.Equal(t, model.Date(2024, time.June, 30), h.PeriodEnd)
	assert.Equal(t, model.Date(2024, time.July, 30), h.DueDate)
	assert.Equal(t, model.Date(2024, time.July, 2), h.IssueDate)

	december := NewHeader(2024, time.December, time.Now(), 10)
	assert.Equal(t, "INV-202412-001", december.Number)
	assert.Equal(t, model.Date(2025, time.January, 10), december.DueDate)

	jan := NewHeader(2025, time.January, time.Now(), 31)
	assert.Equal(t, model.Date(2025, time.March, 3), jan.DueDate, "Feb 31 rolls over")

	_, end := Month(2024, time.February)
	assert.Equal(t, model.Date(2024, time.February, 29), end)
}

func TestFormatYen(t *testing.T) {
	assert.Equal(t, "¥1,234,567", FormatYen(dec(1234567), 0))
	assert.Equal(t, "¥0", FormatYen(decimal.Zero, 0))
	assert.Equal(t, "¥1,234.50", FormatYen(decimal.RequireFromString("1234.5"), 2))
	assert.Equal(t, "-¥800", FormatYen(dec(-800), 0))
}

func TestFormatYen_BeyondFloatPrecision(t *testing.T) {
	// 2^53 + 1 is the first integer a float64 cannot hold.
	assert.Equal(t, "¥9,007,199,254,740,993", FormatYen(decimal.RequireFromString("9007199254740993"), 0))
	assert.Equal(t, "¥12,345,678,901,234,567.89",
		FormatYen(decimal.RequireFromString("12345678901234567.891"), 2))
	assert.Equal(t, "¥123,456,789,012,345,678,901",
		FormatYen(decimal.RequireFromString("123456789012345678901"), 0))
}

func TestExportXLSX(t *testing.T) {
	start, end := Month(2024, time.June)
	agg := NewAggregator(Options{TaxRate: decimal.RequireFromString("0.10")})
	totals := agg.Aggregate([]model.ResolvedLineItem{
		item("Tokyo-DC", model.Date(2024, time.June, 3), model.RankB, 5, 800),
	}, start, end)

	path := filepath.Join(t.TempDir(), "invoice.xlsx")
	require.NoError(t, ExportXLSX(path, NewHeader(2024, time.June, start, 30), totals, 0))

	summary, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: "Summary"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice number", "INV-202406-001"}, summary[0])

	detail, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: "Detail"})
	require.NoError(t, err)
	require.Len(t, detail, 2)
	assert.Equal(t, "Tokyo-DC", detail[1][0])
	assert.Equal(t, "5", detail[1][6])
	assert.Equal(t, "4000", detail[1][8])
}
