package ordersheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// DestinationLookup resolves master data for an order row.
type DestinationLookup interface {
	Destination(name string) (model.Destination, bool)
}

var orderColumns = []string{
	"Delivery", "Temperature zone", "Product name", "Rank", "Weight (kg)", "Quantity",
	"Destination", "Phone", "Address",
}

// Writer generates one order workbook per delivery date.
type Writer struct {
	dir    string
	lookup DestinationLookup
	now    func() time.Time
}

// NewWriter creates a Writer that saves files under dir.
func NewWriter(dir string, lookup DestinationLookup) *Writer {
	return &Writer{dir: dir, lookup: lookup, now: time.Now}
}

// Write groups items by delivery date and saves one workbook per group,
// returning the paths in first-appearance order.
func (w *Writer) Write(ctx context.Context, doc *model.Document, items []model.ResolvedLineItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "ordersheet: create %s", w.dir)
	}

	var order []time.Time
	groups := make(map[time.Time][]model.ResolvedLineItem)
	for _, it := range items {
		d := model.Day(it.DeliveryDate)
		if _, ok := groups[d]; !ok {
			order = append(order, d)
		}
		groups[d] = append(groups[d], it)
	}

	paths := make([]string, 0, len(order))
	for _, d := range order {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(w.dir, orderFileName(d, doc.Key.Name))
		if err := w.writeOne(path, doc.PickupDate, groups[d]); err != nil {
			return paths, err
		}
		zap.L().Info("ordersheet: wrote order file",
			zap.String("path", path),
			zap.String("delivery_date", model.FormatDate(d)),
			zap.Int("lines", len(groups[d])),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) writeOne(path string, pickup time.Time, items []model.ResolvedLineItem) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Order")
	if err != nil {
		return eris.Wrap(err, "ordersheet: add sheet")
	}

	addRow(sheet, "Issue date", japaneseDate(w.now()))
	addRow(sheet, "Pickup date", japaneseDate(pickup))
	addRow(sheet)
	addRow(sheet, orderColumns...)

	for _, it := range items {
		name := strings.TrimSpace(it.Destination)
		var dest model.Destination
		if d, ok := w.lookup.Destination(name); ok {
			dest = d
		} else if name != "" {
			zap.L().Warn("ordersheet: destination not in master", zap.String("destination", name))
		}
		formal := dest.FormalName
		if formal == "" {
			formal = name
		}

		row := sheet.AddRow()
		for _, s := range []string{
			it.DeliveryDate.Format("01/02"),
			it.TemperatureZone,
			it.ProductName,
			string(it.Rank),
			it.Weight,
		} {
			row.AddCell().SetString(s)
		}
		row.AddCell().SetInt(it.Quantity)
		for _, s := range []string{formal, dest.Phone, dest.Address} {
			row.AddCell().SetString(s)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "ordersheet: save %s", path)
	}
	return nil
}

// orderFileName is order_YYYYMMDD_<document>.xlsx. The document name keeps
// two documents that deliver on the same day from overwriting each other.
func orderFileName(delivery time.Time, docName string) string {
	base := strings.TrimSuffix(filepath.Base(docName), filepath.Ext(docName))
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == ' ' {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		return fmt.Sprintf("order_%s.xlsx", delivery.Format("20060102"))
	}
	return fmt.Sprintf("order_%s_%s.xlsx", delivery.Format("20060102"), base)
}

func japaneseDate(t time.Time) string {
	return fmt.Sprintf("%04d年%02d月%02d日", t.Year(), int(t.Month()), t.Day())
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
