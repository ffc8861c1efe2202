package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // default ','
	HasHeader bool // first row is returned separately
	TrimSpace bool
}

// utf8BOM is written by spreadsheet exports and must not leak into the first
// header name.
const utf8BOM = "\ufeff"

// ReadCSV reads every record of r. When HasHeader is set the first record is
// returned as header and excluded from rows. Blank lines are skipped.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (header []string, rows [][]string, err error) {
	br := bufio.NewReader(r)
	if peek, perr := br.Peek(len(utf8BOM)); perr == nil && string(peek) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	first := true
	for {
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(ctx.Err(), "fetcher: csv cancelled")
		}

		record, rerr := reader.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, nil, eris.Wrap(rerr, "fetcher: read csv row")
		}
		if opts.TrimSpace {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}

		if first && opts.HasHeader {
			first = false
			header = record
			continue
		}
		first = false
		rows = append(rows, record)
	}
	return header, rows, nil
}
