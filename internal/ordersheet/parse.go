// Package ordersheet reads source order workbooks and writes per-delivery-date
// order files.
package ordersheet

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/freight-cli/internal/fetcher"
	"github.com/sells-group/freight-cli/internal/model"
)

// Sheet layout: the pickup date sits in C1 and line rows start on row 3
// with columns B..H.
const (
	firstLineRow = 2
	colZone      = 1
	colCode      = 2
	colName      = 3
	colRank      = 4
	colWeight    = 5
	colQuantity  = 6
	colDest      = 7
)

// Parse reads the first sheet of the workbook at path into a Document.
func Parse(path string, key model.DocumentKey) (*model.Document, error) {
	rows, err := fetcher.ReadXLSXCells(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "ordersheet: read %s", path)
	}
	if len(rows) == 0 || len(rows[0]) <= 2 {
		return nil, eris.Errorf("ordersheet: %s: pickup date missing in C1", path)
	}

	pickup, err := ParsePickupDate(rows[0][2])
	if err != nil {
		return nil, eris.Wrapf(err, "ordersheet: %s", path)
	}

	doc := &model.Document{Key: key, Path: path, PickupDate: pickup}
	for i := firstLineRow; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		doc.Items = append(doc.Items, model.LineItem{
			PickupDate:      pickup,
			TemperatureZone: text(row, colZone),
			ProductCode:     text(row, colCode),
			ProductName:     text(row, colName),
			Rank:            model.NormalizeRank(text(row, colRank)),
			Weight:          text(row, colWeight),
			Quantity:        model.ParseQuantity(text(row, colQuantity)),
			Destination:     text(row, colDest),
		})
	}
	return doc, nil
}

// ParsePickupDate interprets the C1 cell. Accepted forms are YYYY/MM/DD (or
// dashed), M/D/YY and M/D/YYYY with two-digit years read as 20YY, and a
// spreadsheet serial number.
func ParsePickupDate(c fetcher.Cell) (time.Time, error) {
	s := strings.TrimSpace(c.Text)
	if s == "" {
		s = strings.TrimSpace(c.Raw)
	}
	if s == "" {
		return time.Time{}, eris.New("pickup date missing in C1")
	}
	if t, err := model.ParseDate(s); err == nil {
		return t, nil
	}
	if t, ok := parseMonthDayYear(s); ok {
		return t, nil
	}
	for _, v := range []string{c.Raw, s} {
		if serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && serial > 0 {
			return model.Day(xlsx.TimeFromExcelTime(serial, false)), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized pickup date %q in C1", s)
}

func parseMonthDayYear(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		nums[i] = n
	}
	month, day, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := model.Date(year, time.Month(month), day)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func text(row []fetcher.Cell, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col].Text)
}

func blank(row []fetcher.Cell) bool {
	for col := colZone; col <= colDest; col++ {
		if text(row, col) != "" {
			return false
		}
	}
	return true
}
