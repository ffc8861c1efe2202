package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func tokyoDC() model.Destination {
	d := model.Destination{
		Name:         "Tokyo-DC",
		FormalName:   "Tokyo Distribution Center",
		Phone:        "03-0000-0000",
		Address:      "1-1 Koto, Tokyo",
		LeadTimeDays: 1,
	}
	d.SetFee(model.RankA, model.TierStandard, decimal.NewFromInt(500))
	d.SetFee(model.RankA, model.TierLow, decimal.NewFromInt(700))
	d.SetFee(model.RankB, model.TierStandard, decimal.NewFromInt(400))
	return d
}

func ledgerLine(dest string, pickup time.Time, qty int, rate int64) model.ResolvedLineItem {
	return model.ResolvedLineItem{
		LineItem: model.LineItem{
			PickupDate:  pickup,
			ProductCode: "P-1",
			ProductName: "Frozen gyoza",
			Rank:        model.RankA,
			Weight:      "10kg",
			Quantity:    qty,
			Destination: dest,
		},
		DeliveryDate: pickup.AddDate(0, 0, 1),
		Tier:         model.TierStandard,
		CaseCount:    qty,
		RatePerUnit:  decimal.NewFromInt(rate),
		TotalFreight: decimal.NewFromInt(rate * int64(qty)),
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertAndGetDestination", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertDestination(ctx, tokyoDC()))

		got, err := s.GetDestination(ctx, "Tokyo-DC")
		require.NoError(t, err)
		assert.Equal(t, "Tokyo Distribution Center", got.FormalName)
		assert.Equal(t, 1, got.LeadTimeDays)
		assert.False(t, got.UpdatedAt.IsZero())

		fee, ok := got.Fee(model.RankA, model.TierLow)
		require.True(t, ok)
		assert.True(t, fee.Equal(decimal.NewFromInt(700)))
		_, ok = got.Fee(model.RankB, model.TierLow)
		assert.False(t, ok, "unset cell must survive the round trip as unset")
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		d := tokyoDC()
		require.NoError(t, s.UpsertDestination(ctx, d))
		d.LeadTimeDays = 3
		d.Phone = "03-1111-1111"
		require.NoError(t, s.UpsertDestination(ctx, d))

		got, err := s.GetDestination(ctx, "Tokyo-DC")
		require.NoError(t, err)
		assert.Equal(t, 3, got.LeadTimeDays)
		assert.Equal(t, "03-1111-1111", got.Phone)

		all, err := s.ListDestinations(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("UpsertRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		err := s.UpsertDestination(context.Background(), model.Destination{Name: "Bad", LeadTimeDays: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lead time")
	})

	t.Run("GetDestinationNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDestination(context.Background(), "Nowhere")
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("DeleteDestination", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertDestination(ctx, tokyoDC()))

		require.NoError(t, s.DeleteDestination(ctx, "Tokyo-DC"))
		_, err := s.GetDestination(ctx, "Tokyo-DC")
		assert.True(t, eris.Is(err, ErrNotFound))

		err = s.DeleteDestination(ctx, "Tokyo-DC")
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("ImportAndList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.ImportDestinations(ctx, []model.Destination{
			{Name: "Osaka-DC", Address: "Osaka"},
			tokyoDC(),
			{Name: "Fukuoka-DC", Address: "Fukuoka", Phone: "092-000-0000"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		all, err := s.ListDestinations(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Fukuoka-DC", all[0].Name)
		assert.Equal(t, "Osaka-DC", all[1].Name)
		assert.Equal(t, "Tokyo-DC", all[2].Name)
	})

	t.Run("ImportIsAllOrNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.ImportDestinations(ctx, []model.Destination{
			tokyoDC(),
			{Name: ""},
		})
		require.Error(t, err)

		all, err := s.ListDestinations(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("SearchDestinations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.ImportDestinations(ctx, []model.Destination{
			tokyoDC(),
			{Name: "Osaka-DC", Address: "Suita, Osaka", Phone: "06-1234-5678"},
			{Name: "100%_Store", Address: "Nagoya"},
		})
		require.NoError(t, err)

		got, err := s.SearchDestinations(ctx, "osaka")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Osaka-DC", got[0].Name)

		got, err = s.SearchDestinations(ctx, "1234")
		require.NoError(t, err)
		require.Len(t, got, 1)

		got, err = s.SearchDestinations(ctx, "%_")
		require.NoError(t, err)
		require.Len(t, got, 1, "wildcards are matched literally")
		assert.Equal(t, "100%_Store", got[0].Name)

		got, err = s.SearchDestinations(ctx, "Sapporo")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("AppendAndListLedger", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		jul1 := model.Date(2024, time.July, 1)
		jul2 := model.Date(2024, time.July, 2)
		aug1 := model.Date(2024, time.August, 1)

		n, err := s.AppendLedger(ctx, "doc-1", []model.ResolvedLineItem{
			ledgerLine("Tokyo-DC", jul2, 2, 500),
			ledgerLine("Osaka-DC", jul1, 1, 450),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, err = s.AppendLedger(ctx, "doc-2", []model.ResolvedLineItem{ledgerLine("Tokyo-DC", aug1, 3, 500)})
		require.NoError(t, err)

		all, err := s.ListLedger(ctx, LedgerFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, jul1, all[0].PickupDate)
		assert.Equal(t, "doc-1", all[0].DocumentKey)
		assert.Equal(t, model.Date(2024, time.July, 2), all[0].DeliveryDate)
		assert.True(t, all[1].TotalFreight.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, model.RankA, all[1].Rank)
		assert.Equal(t, model.TierStandard, all[1].Tier)

		july, err := s.ListLedger(ctx, LedgerFilter{From: jul1, To: model.Date(2024, time.July, 31)})
		require.NoError(t, err)
		assert.Len(t, july, 2)

		tokyo, err := s.ListLedger(ctx, LedgerFilter{Destination: "Tokyo-DC"})
		require.NoError(t, err)
		assert.Len(t, tokyo, 2)
	})

	t.Run("AppendLedgerReplacesDocument", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		jul1 := model.Date(2024, time.July, 1)

		_, err := s.AppendLedger(ctx, "doc-1", []model.ResolvedLineItem{
			ledgerLine("Tokyo-DC", jul1, 1, 500),
			ledgerLine("Tokyo-DC", jul1, 1, 500),
		})
		require.NoError(t, err)
		_, err = s.AppendLedger(ctx, "doc-1", []model.ResolvedLineItem{ledgerLine("Tokyo-DC", jul1, 4, 500)})
		require.NoError(t, err)

		all, err := s.ListLedger(ctx, LedgerFilter{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 4, all[0].Quantity)
	})

	t.Run("MarkProcessed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		done, err := s.HasProcessed(ctx, "m1-1700000000000-a.xlsx")
		require.NoError(t, err)
		assert.False(t, done)

		require.NoError(t, s.MarkProcessed(ctx, "m1-1700000000000-a.xlsx"))
		require.NoError(t, s.MarkProcessed(ctx, "m1-1700000000000-a.xlsx"))

		done, err = s.HasProcessed(ctx, "m1-1700000000000-a.xlsx")
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("ReserveLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		key := "m1-1700000000000-a.xlsx"

		ok, err := s.Reserve(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Reserve(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "live reservation blocks a second claim")

		done, err := s.HasProcessed(ctx, key)
		require.NoError(t, err)
		assert.False(t, done, "a reservation is not a completion")

		require.NoError(t, s.Release(ctx, key))
		ok, err = s.Reserve(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "released key can be claimed again")

		require.NoError(t, s.MarkProcessed(ctx, key))
		ok, err = s.Reserve(ctx, key, time.Nanosecond)
		require.NoError(t, err)
		assert.False(t, ok, "done key is never reclaimed")

		require.NoError(t, s.Release(ctx, key))
		done, err = s.HasProcessed(ctx, key)
		require.NoError(t, err)
		assert.True(t, done, "release does not undo a completion")
	})

	t.Run("ReserveReclaimsStale", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		key := "m2-1700000000000-b.xlsx"

		ok, err := s.Reserve(ctx, key, 0)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Reserve(ctx, key, 0)
		require.NoError(t, err)
		assert.False(t, ok, "zero staleAfter never reclaims")

		time.Sleep(5 * time.Millisecond)
		ok, err = s.Reserve(ctx, key, time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSearchPattern(t *testing.T) {
	assert.Equal(t, "%Tokyo%", searchPattern("  Tokyo "))
	assert.Equal(t, `%100\%\_x%`, searchPattern("100%_x"))
	assert.Equal(t, `%a\\b%`, searchPattern(`a\b`))
}

func TestFeesCodec(t *testing.T) {
	d := tokyoDC()
	b, err := encodeFees(d.Fees)
	require.NoError(t, err)

	fees, err := decodeFees(b)
	require.NoError(t, err)
	assert.True(t, fees[model.RankB].Standard.Valid)
	assert.False(t, fees[model.RankB].Low.Valid)

	empty, err := decodeFees(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = decodeFees([]byte("{not json"))
	assert.Error(t, err)
}
