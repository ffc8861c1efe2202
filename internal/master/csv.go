package master

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/width"

	"github.com/sells-group/freight-cli/internal/fetcher"
	"github.com/sells-group/freight-cli/internal/model"
)

// defaultCSVLeadTime applies when the sheet has no lead time column.
const defaultCSVLeadTime = 1

// csvLayout holds the detected column indexes; -1 means absent.
type csvLayout struct {
	formalName int
	address    int
	phone      int
	leadTime   int
	standard   map[model.Rank]int
	low        map[model.Rank]int
}

func detectLayout(header []string) csvLayout {
	l := csvLayout{
		formalName: -1,
		address:    -1,
		phone:      -1,
		leadTime:   -1,
		standard:   make(map[model.Rank]int),
		low:        make(map[model.Rank]int),
	}
	for i, raw := range header {
		h := width.Fold.String(strings.TrimSpace(raw))
		switch {
		case strings.Contains(h, "正式名称"):
			l.formalName = i
		case strings.Contains(h, "住所"):
			l.address = i
		case strings.Contains(h, "電話"):
			l.phone = i
		case strings.Contains(h, "リードタイム"):
			l.leadTime = i
		}
		for _, r := range model.Ranks {
			prefix := string(r) + "ランク"
			switch {
			case h == prefix || strings.Contains(h, prefix+"(通常)"):
				l.standard[r] = i
			case strings.Contains(h, prefix+"5ケース以下") || strings.Contains(h, prefix+"(5ケース以下)"):
				l.low[r] = i
			}
		}
	}
	// Older sheets carry the address in the third column without a header.
	if l.address < 0 && len(header) > 2 {
		l.address = 2
	}
	return l
}

// ParseCSV reads a master sheet export. The first column is the destination
// name; other columns are found by their Japanese header names.
func ParseCSV(ctx context.Context, r io.Reader) ([]model.Destination, error) {
	header, rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, eris.New("master: csv has no header row")
	}
	layout := detectLayout(header)

	var out []model.Destination
	for n, row := range rows {
		line := n + 2
		name := cell(row, 0)
		if name == "" {
			continue
		}

		d := model.Destination{
			Name:       name,
			FormalName: cell(row, layout.formalName),
			Phone:      cell(row, layout.phone),
			Address:    cell(row, layout.address),
		}
		if d.FormalName == "" {
			d.FormalName = name
		}

		d.LeadTimeDays = defaultCSVLeadTime
		if layout.leadTime >= 0 {
			if d.LeadTimeDays, err = model.ParseLeadTime(cell(row, layout.leadTime)); err != nil {
				return nil, eris.Wrapf(err, "master: csv line %d", line)
			}
		}

		for _, tier := range []struct {
			cols map[model.Rank]int
			tier model.VolumeTier
		}{
			{layout.standard, model.TierStandard},
			{layout.low, model.TierLow},
		} {
			for rank, col := range tier.cols {
				raw := strings.ReplaceAll(width.Fold.String(cell(row, col)), ",", "")
				if raw == "" {
					continue
				}
				fee, err := decimal.NewFromString(raw)
				if err != nil {
					return nil, eris.Wrapf(err, "master: csv line %d: rank %s fee %q", line, rank, raw)
				}
				d.SetFee(rank, tier.tier, fee)
			}
		}
		out = append(out, d)
	}
	return finish(out)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
