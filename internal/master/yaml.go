package master

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/freight-cli/internal/model"
)

type yamlFile struct {
	Destinations []yamlDestination `yaml:"destinations"`
}

type yamlDestination struct {
	Name       string                  `yaml:"name"`
	FormalName string                  `yaml:"formal_name"`
	Phone      string                  `yaml:"phone"`
	Address    string                  `yaml:"address"`
	LeadTime   string                  `yaml:"lead_time"`
	Fees       map[string]yamlRankFees `yaml:"fees"`
}

type yamlRankFees struct {
	Standard *string `yaml:"standard"`
	Low      *string `yaml:"low"`
}

// ParseYAML reads a master file of the form:
//
//	destinations:
//	  - name: Tokyo-DC
//	    lead_time: D+1
//	    fees:
//	      A: {standard: 1000, low: 1500}
func ParseYAML(r io.Reader) ([]model.Destination, error) {
	var f yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "master: decode yaml")
	}

	out := make([]model.Destination, 0, len(f.Destinations))
	for _, y := range f.Destinations {
		lead, err := model.ParseLeadTime(y.LeadTime)
		if err != nil {
			return nil, eris.Wrapf(err, "master: destination %q", y.Name)
		}
		d := model.Destination{
			Name:         y.Name,
			FormalName:   y.FormalName,
			Phone:        y.Phone,
			Address:      y.Address,
			LeadTimeDays: lead,
		}
		for rawRank, fees := range y.Fees {
			rank := model.NormalizeRank(rawRank)
			for _, cell := range []struct {
				value *string
				tier  model.VolumeTier
			}{
				{fees.Standard, model.TierStandard},
				{fees.Low, model.TierLow},
			} {
				if cell.value == nil || strings.TrimSpace(*cell.value) == "" {
					continue
				}
				amount, err := decimal.NewFromString(strings.TrimSpace(*cell.value))
				if err != nil {
					return nil, eris.Wrapf(err, "master: destination %q rank %s", y.Name, rank)
				}
				d.SetFee(rank, cell.tier, amount)
			}
		}
		out = append(out, d)
	}
	return finish(out)
}
