package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/config"
	"github.com/sells-group/freight-cli/internal/invoice"
	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/store"
)

var (
	invoiceYear  int
	invoiceMonth int
	invoiceXLSX  string
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Build the monthly freight invoice from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("invoice"); err != nil {
			return err
		}
		year, month, err := invoicePeriod(invoiceYear, invoiceMonth, time.Now())
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := buildInvoice(ctx, st, cfg.Invoice, year, month, time.Now())
		if err != nil {
			return err
		}
		printInvoice(cmd.OutOrStdout(), report, cfg.Invoice.CurrencyPlaces)

		if invoiceXLSX != "" {
			if err := invoice.ExportXLSX(invoiceXLSX, report.Header, report.Totals, cfg.Invoice.CurrencyPlaces); err != nil {
				return err
			}
			zap.L().Info("invoice exported", zap.String("path", invoiceXLSX))
		}
		return nil
	},
}

// invoiceReport is one month's invoice: header plus totals.
type invoiceReport struct {
	Header invoice.Header             `json:"header"`
	Totals *model.InvoicePeriodTotals `json:"totals"`
}

// invoicePeriod fills unset flags from now's previous month, the usual
// billing run.
func invoicePeriod(year, month int, now time.Time) (int, time.Month, error) {
	if year == 0 && month == 0 {
		prev := model.Date(now.Year(), now.Month(), 1).AddDate(0, -1, 0)
		return prev.Year(), prev.Month(), nil
	}
	if year == 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		return 0, 0, eris.Errorf("invoice: month must be 1-12, got %d", month)
	}
	return year, time.Month(month), nil
}

// buildInvoice aggregates the ledger lines picked up in year/month.
func buildInvoice(ctx context.Context, st store.Store, ic config.InvoiceConfig, year int, month time.Month, issued time.Time) (*invoiceReport, error) {
	rate, err := ic.Rate()
	if err != nil {
		return nil, err
	}
	rounding, err := invoice.ParseRounding(ic.Rounding)
	if err != nil {
		return nil, err
	}
	taxonomy, err := invoice.ParseTaxonomy(ic.Taxonomy)
	if err != nil {
		return nil, err
	}

	header := invoice.NewHeader(year, month, issued, ic.PaymentTermDays)
	items, err := st.ListLedger(ctx, store.LedgerFilter{From: header.PeriodStart, To: header.PeriodEnd})
	if err != nil {
		return nil, eris.Wrap(err, "invoice: list ledger")
	}

	var extended map[string]bool
	if taxonomy == invoice.TaxonomyAuto {
		dests, err := st.ListDestinations(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "invoice: load destination master")
		}
		extended = make(map[string]bool, len(dests))
		for i := range dests {
			extended[dests[i].Name] = dests[i].HasExtendedRanks()
		}
	}

	agg := invoice.NewAggregator(invoice.Options{
		TaxRate:        rate,
		Rounding:       rounding,
		CurrencyPlaces: ic.CurrencyPlaces,
		Taxonomy:       taxonomy,
		Extended:       func(name string) bool { return extended[name] },
	})
	return &invoiceReport{
		Header: header,
		Totals: agg.Aggregate(items, header.PeriodStart, header.PeriodEnd),
	}, nil
}

func printInvoice(w io.Writer, r *invoiceReport, places int32) {
	h, t := r.Header, r.Totals
	fmt.Fprintf(w, "Invoice %s\n", h.Number)
	fmt.Fprintf(w, "Period:  %s - %s\n", model.FormatDate(h.PeriodStart), model.FormatDate(h.PeriodEnd))
	fmt.Fprintf(w, "Issued:  %s\n", model.FormatDate(h.IssueDate))
	fmt.Fprintf(w, "Due:     %s\n\n", model.FormatDate(h.DueDate))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "DESTINATION\t")
	for _, rank := range model.Ranks {
		fmt.Fprintf(tw, "RANK %s\t", rank)
	}
	fmt.Fprintln(tw, "SUBTOTAL\t")
	for _, name := range t.DestinationOrder {
		dt := t.PerDestination[name]
		fmt.Fprintf(tw, "%s\t", name)
		for _, rank := range model.Ranks {
			fmt.Fprintf(tw, "%s\t", invoice.FormatYen(dt.PerRank[rank], places))
		}
		fmt.Fprintf(tw, "%s\t\n", invoice.FormatYen(dt.Subtotal, places))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nLines:          %d\n", t.LineCount)
	fmt.Fprintf(w, "Subtotal:       %s\n", invoice.FormatYen(t.GrandTotal, places))
	fmt.Fprintf(w, "Tax (%s%%):     %s\n", t.TaxRate.Shift(2).String(), invoice.FormatYen(t.Tax, places))
	fmt.Fprintf(w, "Total:          %s\n", invoice.FormatYen(t.TotalWithTax, places))
}

func init() {
	invoiceCmd.Flags().IntVar(&invoiceYear, "year", 0, "invoice year (default: previous month's year)")
	invoiceCmd.Flags().IntVar(&invoiceMonth, "month", 0, "invoice month 1-12 (default: previous month)")
	invoiceCmd.Flags().StringVar(&invoiceXLSX, "xlsx", "", "also export the invoice to this .xlsx path")
	rootCmd.AddCommand(invoiceCmd)
}
