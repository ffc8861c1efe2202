package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetDestination(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	updated := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`get_destination`).
		WithArgs("Tokyo-DC").
		WillReturnRows(pgxmock.NewRows([]string{"name", "formal_name", "phone", "address", "lead_time_days", "fees", "updated_at"}).
			AddRow("Tokyo-DC", "Tokyo Distribution Center", "03", "Koto", 1, []byte(`{"A":{"standard":"500","low":null}}`), updated))

	d, err := s.GetDestination(context.Background(), " Tokyo-DC ")
	require.NoError(t, err)
	assert.Equal(t, "Tokyo Distribution Center", d.FormalName)
	assert.Equal(t, updated, d.UpdatedAt)
	fee, ok := d.Fee(model.RankA, model.TierStandard)
	require.True(t, ok)
	assert.True(t, fee.Equal(decimal.NewFromInt(500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDestination_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`get_destination`).
		WithArgs("Nowhere").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDestination(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertDestination(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO destinations .* ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("Tokyo-DC", "Tokyo Distribution Center", "03-0000-0000", "1-1 Koto, Tokyo", 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertDestination(context.Background(), tokyoDC()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteDestination_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM destinations WHERE name = \$1`).
		WithArgs("Nowhere").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteDestination(context.Background(), "Nowhere")
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportDestinations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_destinations"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_destinations"}, destinationColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "destinations"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.ImportDestinations(context.Background(), []model.Destination{tokyoDC(), {Name: "Osaka-DC"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportDestinations_Invalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.ImportDestinations(context.Background(), []model.Destination{{Name: " "}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLedger(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	jul1 := model.Date(2024, time.July, 1)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM freight_ledger WHERE document_key = \$1`).
		WithArgs("doc-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"freight_ledger"}, ledgerColumns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := s.AppendLedger(context.Background(), "doc-1", []model.ResolvedLineItem{
		ledgerLine("Tokyo-DC", jul1, 1, 500),
		ledgerLine("Tokyo-DC", jul1, 1, 500),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLedger_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM freight_ledger`).WithArgs("doc-1").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"freight_ledger"}, ledgerColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.AppendLedger(context.Background(), "doc-1", []model.ResolvedLineItem{
		ledgerLine("Tokyo-DC", model.Date(2024, time.July, 1), 1, 500),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append ledger for doc-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLedger(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	jul1 := model.Date(2024, time.July, 1)
	jul2 := model.Date(2024, time.July, 2)

	mock.ExpectQuery(`SELECT document_key, .* FROM freight_ledger WHERE true AND pickup_date >= \$1 AND destination = \$2 ORDER BY pickup_date, id`).
		WithArgs(jul1, "Tokyo-DC").
		WillReturnRows(pgxmock.NewRows(ledgerColumns).
			AddRow("doc-1", 0, jul1, "frozen", "P-1", "Gyoza", "A", "10kg", 2, "Tokyo-DC", jul2, "standard", 2,
				toNumeric(decimal.NewFromInt(500)), toNumeric(decimal.RequireFromString("1000.50"))))

	items, err := s.ListLedger(context.Background(), LedgerFilter{From: jul1, Destination: "Tokyo-DC"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "doc-1", items[0].DocumentKey)
	assert.Equal(t, jul2, items[0].DeliveryDate)
	assert.Equal(t, model.TierStandard, items[0].Tier)
	assert.Equal(t, "1000.5", items[0].TotalFreight.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasProcessed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`has_processed`).
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	done, err := s.HasProcessed(context.Background(), "k1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Reserve(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO processed_documents .* ON CONFLICT \(doc_key\) DO UPDATE`).
		WithArgs("k1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO processed_documents .* ON CONFLICT \(doc_key\) DO UPDATE`).
		WithArgs("k1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := s.Reserve(context.Background(), "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(context.Background(), "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkAndRelease(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO processed_documents .* WHERE processed_documents.state = 'reserved'`).
		WithArgs("k1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM processed_documents WHERE doc_key = \$1 AND state = 'reserved'`).
		WithArgs("k2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.MarkProcessed(context.Background(), "k1"))
	require.NoError(t, s.Release(context.Background(), "k2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNumericRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1234.567")
	assert.True(t, fromNumeric(toNumeric(d)).Equal(d))
	assert.True(t, fromNumeric(toNumeric(decimal.Zero)).IsZero())
	assert.True(t, fromNumeric(toNumeric(decimal.Zero)).Equal(decimal.Zero))
}
