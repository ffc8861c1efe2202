package invoice

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/freight-cli/internal/model"
)

var detailColumns = []string{
	"Destination", "Pickup date", "Delivery date", "Rank", "Product code", "Product name",
	"Quantity", "Rate per unit", "Total freight",
}

// ExportXLSX writes a summary sheet and a per-line detail sheet to path.
func ExportXLSX(path string, h Header, totals *model.InvoicePeriodTotals, places int32) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "invoice: add summary sheet")
	}
	addRow(summary, "Invoice number", h.Number)
	addRow(summary, "Issue date", model.FormatDate(h.IssueDate))
	addRow(summary, "Period", model.FormatDate(h.PeriodStart)+" - "+model.FormatDate(h.PeriodEnd))
	addRow(summary, "Payment due", model.FormatDate(h.DueDate))
	addRow(summary)
	for _, name := range totals.DestinationOrder {
		addRow(summary, name, FormatYen(totals.PerDestination[name].Subtotal, places))
	}
	addRow(summary)
	for _, rank := range model.Ranks {
		if amount, ok := totals.PerRank[rank]; ok {
			addRow(summary, "Rank "+string(rank), FormatYen(amount, places))
		}
	}
	addRow(summary, "Subtotal", FormatYen(totals.GrandTotal, places))
	addRow(summary, "Tax", FormatYen(totals.Tax, places))
	addRow(summary, "Total", FormatYen(totals.TotalWithTax, places))

	detail, err := f.AddSheet("Detail")
	if err != nil {
		return eris.Wrap(err, "invoice: add detail sheet")
	}
	addRow(detail, detailColumns...)
	for _, name := range totals.DestinationOrder {
		for _, item := range totals.PerDestination[name].LineItems {
			row := detail.AddRow()
			for _, s := range []string{
				name,
				model.FormatDate(item.PickupDate),
				model.FormatDate(item.DeliveryDate),
				string(item.Rank),
				item.ProductCode,
				item.ProductName,
			} {
				row.AddCell().SetString(s)
			}
			row.AddCell().SetInt(item.Quantity)
			rate, _ := item.RatePerUnit.Float64()
			row.AddCell().SetFloat(rate)
			total, _ := item.TotalFreight.Float64()
			row.AddCell().SetFloat(total)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "invoice: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
