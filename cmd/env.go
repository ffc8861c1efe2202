package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/calendar"
	"github.com/sells-group/freight-cli/internal/config"
	"github.com/sells-group/freight-cli/internal/dedup"
	"github.com/sells-group/freight-cli/internal/fetcher"
	"github.com/sells-group/freight-cli/internal/freight"
	"github.com/sells-group/freight-cli/internal/ordersheet"
	"github.com/sells-group/freight-cli/internal/pipeline"
	"github.com/sells-group/freight-cli/internal/resilience"
	"github.com/sells-group/freight-cli/internal/store"
)

// initStore opens the configured store and applies its schema.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "freight.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCalendar builds the working-day calendar: the holiday API merged with
// any configured extra holidays.
func initCalendar(c *config.Config) (*calendar.Service, error) {
	restDay, err := calendar.ParseWeekday(c.Calendar.RestDay)
	if err != nil {
		return nil, err
	}
	policy, err := calendar.ParsePolicy(c.Calendar.OutagePolicy)
	if err != nil {
		return nil, err
	}
	extra, err := calendar.ParseStaticSource(c.Calendar.ExtraHolidays)
	if err != nil {
		return nil, err
	}

	var primary calendar.Source
	if c.Calendar.HolidayURL != "" {
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:       time.Duration(c.Calendar.FetchTimeoutSecs) * time.Second,
			RatePerSecond: c.Calendar.RatePerSecond,
			Retry:         resilience.FromSettings(c.Calendar.RetryAttempts, 0, 0),
		})
		primary = calendar.NewHTTPSource(f, c.Calendar.HolidayURL)
	}

	source := calendar.MergedSource{Primary: primary, Extra: extra}
	return calendar.NewService(source, calendar.NewCache(), calendar.Options{
		RestDay: restDay,
		Policy:  policy,
	}), nil
}

// initDedup builds the deduplicator over the configured backend. The returned
// cleanup func releases any connection the backend opened.
func initDedup(ctx context.Context, c *config.Config, st store.Store) (*dedup.Deduplicator, func(), error) {
	mode, err := dedup.ParseMode(c.Dedup.Mode)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var backend dedup.Backend
	switch c.Dedup.Driver {
	case "", "store":
		backend = st
	case "memory":
		backend = dedup.NewMemoryBackend()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, eris.Wrapf(err, "connect redis %s", c.Redis.Addr)
		}
		backend = dedup.NewRedisBackend(client, c.Redis.Prefix)
		cleanup = func() { _ = client.Close() }
	default:
		return nil, nil, eris.Errorf("unsupported dedup driver: %s", c.Dedup.Driver)
	}

	return dedup.New(backend, mode, c.Dedup.StaleAfter()), cleanup, nil
}

// ingestEnv holds everything the ingest command needs.
type ingestEnv struct {
	Store     store.Store
	Calendar  *calendar.Service
	Processor *pipeline.Processor
	cleanup   []func()
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// initIngest wires the store, calendar, deduplicator, and processor. When
// ordersDir is empty no order files are written. Callers should defer
// env.Close().
func initIngest(ctx context.Context, c *config.Config, ordersDir string) (*ingestEnv, error) {
	if err := c.Validate("ingest"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &ingestEnv{Store: st, cleanup: []func(){func() { _ = st.Close() }}}

	cal, err := initCalendar(c)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Calendar = cal

	gate, closeDedup, err := initDedup(ctx, c, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.cleanup = append(env.cleanup, closeDedup)

	days := calendar.NewBusinessDays(cal, c.Calendar.MaxWalkDays)
	resolver := freight.NewAggregator(days, c.Freight.LowVolumeThreshold)

	var orders pipeline.OrderWriter
	if ordersDir != "" {
		dests, err := st.ListDestinations(ctx)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "load destination master")
		}
		orders = ordersheet.NewWriter(ordersDir, freight.NewRateTable(dests))
	}

	env.Processor = pipeline.NewProcessor(gate, st, resolver, st, orders, pipeline.Options{
		LedgerRetry: resilience.FromSettings(
			c.Pipeline.LedgerRetryAttempts,
			c.Pipeline.LedgerRetryInitMs,
			c.Pipeline.LedgerRetryMaxMs,
		),
		DocumentTimeout: time.Duration(c.Pipeline.DocumentTimeoutSecs) * time.Second,
	})

	zap.L().Debug("ingest environment ready",
		zap.String("store", c.Store.Driver),
		zap.String("dedup_mode", string(gate.Mode())),
		zap.String("dedup_driver", c.Dedup.Driver),
		zap.Bool("orders", orders != nil),
	)
	return env, nil
}
