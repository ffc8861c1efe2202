package master

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/freight-cli/internal/fetcher"
	"github.com/sells-group/freight-cli/internal/model"
)

// jsonEntry is one value of the legacy master object, keyed by destination
// name.
type jsonEntry struct {
	FormalName  string              `json:"formalName,omitempty"`
	Address     string              `json:"address"`
	Phone       string              `json:"phone"`
	LeadTime    string              `json:"leadTime"`
	ARankFee    decimal.NullDecimal `json:"aRankFee"`
	BRankFee    decimal.NullDecimal `json:"bRankFee"`
	CRankFee    decimal.NullDecimal `json:"cRankFee"`
	DRankFee    decimal.NullDecimal `json:"dRankFee"`
	ARankFeeLow decimal.NullDecimal `json:"aRankFeeLow"`
	BRankFeeLow decimal.NullDecimal `json:"bRankFeeLow"`
	CRankFeeLow decimal.NullDecimal `json:"cRankFeeLow"`
	DRankFeeLow decimal.NullDecimal `json:"dRankFeeLow"`
}

func (e *jsonEntry) cells() map[model.Rank][2]*decimal.NullDecimal {
	return map[model.Rank][2]*decimal.NullDecimal{
		model.RankA: {&e.ARankFee, &e.ARankFeeLow},
		model.RankB: {&e.BRankFee, &e.BRankFeeLow},
		model.RankC: {&e.CRankFee, &e.CRankFeeLow},
		model.RankD: {&e.DRankFee, &e.DRankFeeLow},
	}
}

// ParseJSON reads the legacy freight master object.
func ParseJSON(r io.Reader) ([]model.Destination, error) {
	entries, err := fetcher.DecodeJSONObject[map[string]jsonEntry](r)
	if err != nil {
		return nil, err
	}

	out := make([]model.Destination, 0, len(*entries))
	for name, e := range *entries {
		lead, err := model.ParseLeadTime(e.LeadTime)
		if err != nil {
			return nil, eris.Wrapf(err, "master: destination %q", name)
		}
		d := model.Destination{
			Name:         name,
			FormalName:   e.FormalName,
			Phone:        e.Phone,
			Address:      e.Address,
			LeadTimeDays: lead,
		}
		for rank, pair := range e.cells() {
			if pair[0].Valid {
				d.SetFee(rank, model.TierStandard, pair[0].Decimal)
			}
			if pair[1].Valid {
				d.SetFee(rank, model.TierLow, pair[1].Decimal)
			}
		}
		out = append(out, d)
	}
	return finish(out)
}

// WriteJSON writes destinations in the legacy master shape, keys sorted.
func WriteJSON(w io.Writer, ds []model.Destination) error {
	obj := make(map[string]jsonEntry, len(ds))
	for _, d := range ds {
		e := jsonEntry{
			FormalName: d.FormalName,
			Address:    d.Address,
			Phone:      d.Phone,
			LeadTime:   model.FormatLeadTime(d.LeadTimeDays),
		}
		for rank, pair := range e.cells() {
			fees := d.Fees[rank]
			*pair[0] = fees.Standard
			*pair[1] = fees.Low
		}
		obj[d.Name] = e
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(obj), "master: encode json")
}
