package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/freight-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS destinations (
	name           TEXT PRIMARY KEY,
	formal_name    TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	lead_time_days INTEGER NOT NULL DEFAULT 0,
	fees           TEXT NOT NULL DEFAULT '{}',
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS freight_ledger (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	document_key     TEXT NOT NULL,
	line_no          INTEGER NOT NULL,
	pickup_date      TEXT NOT NULL,
	temperature_zone TEXT NOT NULL DEFAULT '',
	product_code     TEXT NOT NULL DEFAULT '',
	product_name     TEXT NOT NULL DEFAULT '',
	rank             TEXT NOT NULL DEFAULT '',
	weight           TEXT NOT NULL DEFAULT '',
	quantity         INTEGER NOT NULL,
	destination      TEXT NOT NULL DEFAULT '',
	delivery_date    TEXT NOT NULL,
	tier             TEXT NOT NULL DEFAULT '',
	case_count       INTEGER NOT NULL DEFAULT 0,
	rate_per_unit    TEXT NOT NULL DEFAULT '0',
	total_freight    TEXT NOT NULL DEFAULT '0',
	UNIQUE (document_key, line_no)
);

CREATE TABLE IF NOT EXISTS processed_documents (
	doc_key      TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	reserved_at  TEXT NOT NULL,
	completed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_pickup_date ON freight_ledger(pickup_date);
CREATE INDEX IF NOT EXISTS idx_ledger_destination ON freight_ledger(destination);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Destinations

const sqliteUpsertDestination = `INSERT INTO destinations (name, formal_name, phone, address, lead_time_days, fees, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		formal_name = excluded.formal_name,
		phone = excluded.phone,
		address = excluded.address,
		lead_time_days = excluded.lead_time_days,
		fees = excluded.fees,
		updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertDestination(ctx context.Context, d model.Destination) error {
	_, err := s.ImportDestinations(ctx, []model.Destination{d})
	return err
}

func (s *SQLiteStore) ImportDestinations(ctx context.Context, ds []model.Destination) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(timeLayout)
	for _, d := range ds {
		if err := d.Validate(); err != nil {
			return 0, err
		}
		fees, err := encodeFees(d.Fees)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, sqliteUpsertDestination,
			strings.TrimSpace(d.Name), d.FormalName, d.Phone, d.Address, d.LeadTimeDays, string(fees), now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert destination %s", d.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return len(ds), nil
}

func (s *SQLiteStore) GetDestination(ctx context.Context, name string) (*model.Destination, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, formal_name, phone, address, lead_time_days, fees, updated_at FROM destinations WHERE name = ?`,
		strings.TrimSpace(name),
	)
	d, err := scanDestination(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "destination %s", name)
	}
	return d, err
}

func (s *SQLiteStore) DeleteDestination(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM destinations WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete destination %s", name)
	}
	return checkRowsAffected(res, "destination", name)
}

func (s *SQLiteStore) ListDestinations(ctx context.Context) ([]model.Destination, error) {
	return s.queryDestinations(ctx,
		`SELECT name, formal_name, phone, address, lead_time_days, fees, updated_at FROM destinations ORDER BY name`)
}

func (s *SQLiteStore) SearchDestinations(ctx context.Context, query string) ([]model.Destination, error) {
	p := searchPattern(query)
	return s.queryDestinations(ctx,
		`SELECT name, formal_name, phone, address, lead_time_days, fees, updated_at FROM destinations
		 WHERE name LIKE ? ESCAPE '\' OR formal_name LIKE ? ESCAPE '\'
		    OR phone LIKE ? ESCAPE '\' OR address LIKE ? ESCAPE '\'
		 ORDER BY name`,
		p, p, p, p,
	)
}

func (s *SQLiteStore) queryDestinations(ctx context.Context, query string, args ...any) ([]model.Destination, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query destinations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate destinations")
}

// Ledger

func (s *SQLiteStore) AppendLedger(ctx context.Context, documentKey string, items []model.ResolvedLineItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin ledger append")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM freight_ledger WHERE document_key = ?`, documentKey); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear ledger for %s", documentKey)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO freight_ledger (`+strings.Join(ledgerColumns, ", ")+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare ledger insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range ledgerRows(documentKey, items) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert ledger line %d of %s", i, documentKey)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit ledger append")
	}
	return len(items), nil
}

func (s *SQLiteStore) ListLedger(ctx context.Context, f LedgerFilter) ([]model.ResolvedLineItem, error) {
	query := `SELECT ` + strings.Join(ledgerColumns, ", ") + ` FROM freight_ledger WHERE 1=1`
	var args []any
	if !f.From.IsZero() {
		query += ` AND pickup_date >= ?`
		args = append(args, model.FormatDate(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND pickup_date <= ?`
		args = append(args, model.FormatDate(f.To))
	}
	if f.Destination != "" {
		query += ` AND destination = ?`
		args = append(args, f.Destination)
	}
	query += ` ORDER BY pickup_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ledger")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ResolvedLineItem
	for rows.Next() {
		item, err := scanLedgerLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate ledger")
}

// Processed documents

func (s *SQLiteStore) HasProcessed(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_documents WHERE doc_key = ? AND state = ?`, key, stateDone,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has processed %s", key)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, key string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_documents (doc_key, state, reserved_at, completed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(doc_key) DO UPDATE SET state = excluded.state, completed_at = excluded.completed_at
		 WHERE processed_documents.state = ?`,
		key, stateDone, now, now, stateReserved,
	)
	return eris.Wrapf(err, "sqlite: mark processed %s", key)
}

func (s *SQLiteStore) Reserve(ctx context.Context, key string, staleAfter time.Duration) (bool, error) {
	now := time.Now().UTC()
	// An empty cutoff sorts before every timestamp, so nothing is reclaimed.
	cutoff := ""
	if staleAfter > 0 {
		cutoff = now.Add(-staleAfter).Format(timeLayout)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_documents (doc_key, state, reserved_at) VALUES (?, ?, ?)
		 ON CONFLICT(doc_key) DO UPDATE SET reserved_at = excluded.reserved_at
		 WHERE processed_documents.state = ? AND processed_documents.reserved_at < ?`,
		key, stateReserved, now.Format(timeLayout), stateReserved, cutoff,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: reserve %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) Release(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_documents WHERE doc_key = ? AND state = ?`, key, stateReserved)
	return eris.Wrapf(err, "sqlite: release %s", key)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDestination(row scannable) (*model.Destination, error) {
	var d model.Destination
	var fees, updated string
	if err := row.Scan(&d.Name, &d.FormalName, &d.Phone, &d.Address, &d.LeadTimeDays, &fees, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan destination")
	}
	var err error
	if d.Fees, err = decodeFees([]byte(fees)); err != nil {
		return nil, err
	}
	d.UpdatedAt = parseTime(updated)
	return &d, nil
}

func ledgerRows(documentKey string, items []model.ResolvedLineItem) [][]any {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{
			documentKey, i, model.FormatDate(it.PickupDate), it.TemperatureZone, it.ProductCode, it.ProductName,
			string(it.Rank), it.Weight, it.Quantity, strings.TrimSpace(it.Destination), model.FormatDate(it.DeliveryDate),
			string(it.Tier), it.CaseCount, it.RatePerUnit.String(), it.TotalFreight.String(),
		}
	}
	return rows
}

func scanLedgerLine(row scannable) (*model.ResolvedLineItem, error) {
	var it model.ResolvedLineItem
	var lineNo int
	var pickup, delivery, rank, tier, rate, total string
	if err := row.Scan(
		&it.DocumentKey, &lineNo, &pickup, &it.TemperatureZone, &it.ProductCode, &it.ProductName,
		&rank, &it.Weight, &it.Quantity, &it.Destination, &delivery, &tier, &it.CaseCount, &rate, &total,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan ledger line")
	}
	var err error
	if it.PickupDate, err = model.ParseDate(pickup); err != nil {
		return nil, err
	}
	if it.DeliveryDate, err = model.ParseDate(delivery); err != nil {
		return nil, err
	}
	if it.RatePerUnit, err = parseDecimal(rate); err != nil {
		return nil, err
	}
	if it.TotalFreight, err = parseDecimal(total); err != nil {
		return nil, err
	}
	it.Rank = model.Rank(rank)
	it.Tier = model.VolumeTier(tier)
	return &it, nil
}
