package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the sheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // overrides SheetIndex
	SkipRows   int    // leading rows to drop
}

// Cell is one spreadsheet cell: Raw is the stored value (a serial number for
// dates), Text is the value as displayed with the cell's number format.
type Cell struct {
	Raw  string
	Text string
}

// ReadXLSX reads a sheet and returns the displayed text of every cell.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	cells, err := ReadXLSXCells(path, opts)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(cells))
	for i, row := range cells {
		rows[i] = make([]string, len(row))
		for j, c := range row {
			rows[i][j] = c.Text
		}
	}
	return rows, nil
}

// ReadXLSXCells reads a sheet keeping both raw and displayed cell values.
func ReadXLSXCells(path string, opts XLSXOptions) ([][]Cell, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open xlsx %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]Cell
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		cells := make([]Cell, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = Cell{Raw: c.Value, Text: c.String()}
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("fetcher: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
