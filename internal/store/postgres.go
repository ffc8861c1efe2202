package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/freight-cli/internal/db"
	"github.com/sells-group/freight-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection and invoked by name.
var preparedStatements = map[string]string{
	"get_destination": `SELECT name, formal_name, phone, address, lead_time_days, fees, updated_at FROM destinations WHERE name = $1`,
	"has_processed":   `SELECT EXISTS (SELECT 1 FROM processed_documents WHERE doc_key = $1 AND state = 'done')`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS destinations (
	name           TEXT PRIMARY KEY,
	formal_name    TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	lead_time_days INTEGER NOT NULL DEFAULT 0 CHECK (lead_time_days >= 0),
	fees           JSONB NOT NULL DEFAULT '{}',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS freight_ledger (
	id               BIGSERIAL PRIMARY KEY,
	document_key     TEXT NOT NULL,
	line_no          INTEGER NOT NULL,
	pickup_date      DATE NOT NULL,
	temperature_zone TEXT NOT NULL DEFAULT '',
	product_code     TEXT NOT NULL DEFAULT '',
	product_name     TEXT NOT NULL DEFAULT '',
	rank             TEXT NOT NULL DEFAULT '',
	weight           TEXT NOT NULL DEFAULT '',
	quantity         INTEGER NOT NULL,
	destination      TEXT NOT NULL DEFAULT '',
	delivery_date    DATE NOT NULL,
	tier             TEXT NOT NULL DEFAULT '',
	case_count       INTEGER NOT NULL DEFAULT 0,
	rate_per_unit    NUMERIC NOT NULL DEFAULT 0,
	total_freight    NUMERIC NOT NULL DEFAULT 0,
	UNIQUE (document_key, line_no)
);

CREATE TABLE IF NOT EXISTS processed_documents (
	doc_key      TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	reserved_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ledger_pickup_date ON freight_ledger(pickup_date);
CREATE INDEX IF NOT EXISTS idx_ledger_destination ON freight_ledger(destination);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Destinations

func (s *PostgresStore) UpsertDestination(ctx context.Context, d model.Destination) error {
	if err := d.Validate(); err != nil {
		return err
	}
	fees, err := encodeFees(d.Fees)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO destinations (name, formal_name, phone, address, lead_time_days, fees, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE SET
			formal_name = EXCLUDED.formal_name, phone = EXCLUDED.phone, address = EXCLUDED.address,
			lead_time_days = EXCLUDED.lead_time_days, fees = EXCLUDED.fees, updated_at = EXCLUDED.updated_at`,
		strings.TrimSpace(d.Name), d.FormalName, d.Phone, d.Address, d.LeadTimeDays, fees, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert destination %s", d.Name)
}

func (s *PostgresStore) ImportDestinations(ctx context.Context, ds []model.Destination) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(ds))
	for _, d := range ds {
		if err := d.Validate(); err != nil {
			return 0, err
		}
		fees, err := encodeFees(d.Fees)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{strings.TrimSpace(d.Name), d.FormalName, d.Phone, d.Address, d.LeadTimeDays, fees, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "destinations",
		Columns:      destinationColumns,
		ConflictKeys: []string{"name"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import destinations")
	}
	return int(n), nil
}

func (s *PostgresStore) GetDestination(ctx context.Context, name string) (*model.Destination, error) {
	row := s.pool.QueryRow(ctx, "get_destination", strings.TrimSpace(name))
	d, err := scanPgDestination(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "destination %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get destination %s", name)
	}
	return d, nil
}

func (s *PostgresStore) DeleteDestination(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM destinations WHERE name = $1`, strings.TrimSpace(name))
	if err != nil {
		return eris.Wrapf(err, "postgres: delete destination %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "destination %s", name)
	}
	return nil
}

func (s *PostgresStore) ListDestinations(ctx context.Context) ([]model.Destination, error) {
	return s.queryDestinations(ctx,
		`SELECT name, formal_name, phone, address, lead_time_days, fees, updated_at FROM destinations ORDER BY name`)
}

func (s *PostgresStore) SearchDestinations(ctx context.Context, query string) ([]model.Destination, error) {
	return s.queryDestinations(ctx,
		`SELECT name, formal_name, phone, address, lead_time_days, fees, updated_at FROM destinations
		 WHERE name ILIKE $1 OR formal_name ILIKE $1 OR phone ILIKE $1 OR address ILIKE $1
		 ORDER BY name`,
		searchPattern(query),
	)
}

func (s *PostgresStore) queryDestinations(ctx context.Context, query string, args ...any) ([]model.Destination, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query destinations")
	}
	defer rows.Close()

	var out []model.Destination
	for rows.Next() {
		d, err := scanPgDestination(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan destination")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate destinations")
}

func scanPgDestination(row pgx.Row) (*model.Destination, error) {
	var d model.Destination
	var fees []byte
	if err := row.Scan(&d.Name, &d.FormalName, &d.Phone, &d.Address, &d.LeadTimeDays, &fees, &d.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if d.Fees, err = decodeFees(fees); err != nil {
		return nil, err
	}
	return &d, nil
}

// Ledger

func (s *PostgresStore) AppendLedger(ctx context.Context, documentKey string, items []model.ResolvedLineItem) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin ledger append")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM freight_ledger WHERE document_key = $1`, documentKey); err != nil {
		return 0, eris.Wrapf(err, "postgres: clear ledger for %s", documentKey)
	}

	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{
			documentKey, i, model.Day(it.PickupDate), it.TemperatureZone, it.ProductCode, it.ProductName,
			string(it.Rank), it.Weight, it.Quantity, strings.TrimSpace(it.Destination), model.Day(it.DeliveryDate),
			string(it.Tier), it.CaseCount, toNumeric(it.RatePerUnit), toNumeric(it.TotalFreight),
		}
	}
	if _, err := db.CopyFrom(ctx, tx, "freight_ledger", ledgerColumns, rows); err != nil {
		return 0, eris.Wrapf(err, "postgres: append ledger for %s", documentKey)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit ledger append")
	}
	return len(items), nil
}

func (s *PostgresStore) ListLedger(ctx context.Context, f LedgerFilter) ([]model.ResolvedLineItem, error) {
	query := `SELECT ` + strings.Join(ledgerColumns, ", ") + ` FROM freight_ledger WHERE true`
	var args []any
	if !f.From.IsZero() {
		args = append(args, model.Day(f.From))
		query += fmt.Sprintf(` AND pickup_date >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, model.Day(f.To))
		query += fmt.Sprintf(` AND pickup_date <= $%d`, len(args))
	}
	if f.Destination != "" {
		args = append(args, f.Destination)
		query += fmt.Sprintf(` AND destination = $%d`, len(args))
	}
	query += ` ORDER BY pickup_date, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ledger")
	}
	defer rows.Close()

	var out []model.ResolvedLineItem
	for rows.Next() {
		var it model.ResolvedLineItem
		var lineNo int
		var rank, tier string
		var rate, total pgtype.Numeric
		if err := rows.Scan(
			&it.DocumentKey, &lineNo, &it.PickupDate, &it.TemperatureZone, &it.ProductCode, &it.ProductName,
			&rank, &it.Weight, &it.Quantity, &it.Destination, &it.DeliveryDate, &tier, &it.CaseCount, &rate, &total,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ledger line")
		}
		it.Rank = model.Rank(rank)
		it.Tier = model.VolumeTier(tier)
		it.RatePerUnit = fromNumeric(rate)
		it.TotalFreight = fromNumeric(total)
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate ledger")
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// Processed documents

func (s *PostgresStore) HasProcessed(ctx context.Context, key string) (bool, error) {
	var done bool
	err := s.pool.QueryRow(ctx, "has_processed", key).Scan(&done)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has processed %s", key)
	}
	return done, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processed_documents (doc_key, state, reserved_at, completed_at) VALUES ($1, 'done', now(), now())
		 ON CONFLICT (doc_key) DO UPDATE SET state = 'done', completed_at = now()
		 WHERE processed_documents.state = 'reserved'`,
		key,
	)
	return eris.Wrapf(err, "postgres: mark processed %s", key)
}

func (s *PostgresStore) Reserve(ctx context.Context, key string, staleAfter time.Duration) (bool, error) {
	var cutoff time.Time
	if staleAfter > 0 {
		cutoff = time.Now().UTC().Add(-staleAfter)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO processed_documents (doc_key, state, reserved_at) VALUES ($1, 'reserved', now())
		 ON CONFLICT (doc_key) DO UPDATE SET reserved_at = now()
		 WHERE processed_documents.state = 'reserved' AND processed_documents.reserved_at < $2`,
		key, cutoff,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: reserve %s", key)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM processed_documents WHERE doc_key = $1 AND state = 'reserved'`, key)
	return eris.Wrapf(err, "postgres: release %s", key)
}
