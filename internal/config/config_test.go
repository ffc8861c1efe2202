package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "freight.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "check", cfg.Dedup.Mode)
	assert.Equal(t, "store", cfg.Dedup.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Dedup.StaleAfter())
	assert.Equal(t, "sunday", cfg.Calendar.RestDay)
	assert.Equal(t, "fail_open", cfg.Calendar.OutagePolicy)
	assert.Equal(t, 366, cfg.Calendar.MaxWalkDays)
	assert.Contains(t, cfg.Calendar.HolidayURL, "holidays-jp")
	assert.Equal(t, 5, cfg.Freight.LowVolumeThreshold)
	assert.Equal(t, "half_up", cfg.Invoice.Rounding)
	assert.Equal(t, "auto", cfg.Invoice.Taxonomy)
	assert.Equal(t, 30, cfg.Invoice.PaymentTermDays)
	assert.Equal(t, 120, cfg.Pipeline.DocumentTimeoutSecs)
	assert.True(t, cfg.Orders.Enabled)
	assert.Equal(t, "orders", cfg.Orders.OutputDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	rate, err := cfg.Invoice.Rate()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.1")))

	for _, mode := range []string{"ingest", "invoice", "destinations", "holidays", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/freight
calendar:
  rest_day: saturday
  outage_policy: fail_closed
  extra_holidays:
    - 2024/12/30
    - 2024/12/31
invoice:
  rounding: floor
  tax_rate: "0.08"
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "saturday", cfg.Calendar.RestDay)
	assert.Equal(t, "fail_closed", cfg.Calendar.OutagePolicy)
	assert.Equal(t, []string{"2024/12/30", "2024/12/31"}, cfg.Calendar.ExtraHolidays)
	assert.Equal(t, "floor", cfg.Invoice.Rounding)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Freight.LowVolumeThreshold)
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FREIGHT_STORE_DRIVER", "postgres")
	t.Setenv("FREIGHT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FREIGHT_SERVER_PORT", "3000")
	t.Setenv("FREIGHT_DEDUP_MODE", "reserve")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "reserve", cfg.Dedup.Mode)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "freight.db"
	cfg.Dedup.Mode = "check"
	cfg.Dedup.Driver = "store"
	cfg.Calendar.RestDay = "sunday"
	cfg.Calendar.OutagePolicy = "fail_open"
	cfg.Freight.LowVolumeThreshold = 5
	cfg.Invoice.TaxRate = "0.10"
	cfg.Invoice.PaymentTermDays = 30
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateIngest_BadPolicies(t *testing.T) {
	cfg := validDefaults()
	cfg.Dedup.Mode = "optimistic"
	cfg.Calendar.OutagePolicy = "retry"
	cfg.Calendar.RestDay = "funday"
	cfg.Calendar.ExtraHolidays = []string{"12/30"}
	cfg.Freight.LowVolumeThreshold = 0

	err := cfg.Validate("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown outage policy")
	assert.Contains(t, err.Error(), "unknown weekday")
	assert.Contains(t, err.Error(), "extra holidays")
	assert.Contains(t, err.Error(), "low_volume_threshold")
}

func TestValidateIngest_RedisNeedsAddr(t *testing.T) {
	cfg := validDefaults()
	cfg.Dedup.Driver = "redis"

	err := cfg.Validate("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr is required")

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate("ingest"))

	cfg.Dedup.Driver = "etcd"
	assert.Error(t, cfg.Validate("ingest"))
}

func TestValidateInvoice(t *testing.T) {
	cfg := validDefaults()
	cfg.Invoice.TaxRate = "ten percent"
	cfg.Invoice.Rounding = "banker"
	cfg.Invoice.Taxonomy = "huge"
	cfg.Invoice.PaymentTermDays = 0

	err := cfg.Validate("invoice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tax_rate")
	assert.Contains(t, err.Error(), "unknown tax rounding")
	assert.Contains(t, err.Error(), "unknown rank taxonomy")
	assert.Contains(t, err.Error(), "payment_term_days")

	cfg = validDefaults()
	cfg.Invoice.TaxRate = "-0.1"
	assert.Error(t, cfg.Validate("invoice"))
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("destinations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
