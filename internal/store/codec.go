package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/freight-cli/internal/model"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var ledgerColumns = []string{
	"document_key", "line_no", "pickup_date", "temperature_zone", "product_code", "product_name",
	"rank", "weight", "quantity", "destination", "delivery_date", "tier", "case_count",
	"rate_per_unit", "total_freight",
}

var destinationColumns = []string{
	"name", "formal_name", "phone", "address", "lead_time_days", "fees", "updated_at",
}

func encodeFees(fees map[model.Rank]model.RankFees) ([]byte, error) {
	if fees == nil {
		fees = map[model.Rank]model.RankFees{}
	}
	b, err := json.Marshal(fees)
	return b, eris.Wrap(err, "store: encode fees")
}

func decodeFees(b []byte) (map[model.Rank]model.RankFees, error) {
	fees := map[model.Rank]model.RankFees{}
	if len(b) == 0 {
		return fees, nil
	}
	if err := json.Unmarshal(b, &fees); err != nil {
		return nil, eris.Wrap(err, "store: decode fees")
	}
	return fees, nil
}

// searchPattern builds a LIKE pattern for a substring search.
func searchPattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	return d, eris.Wrapf(err, "store: parse amount %q", s)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
