package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/invoice"
	"github.com/sells-group/freight-cli/internal/ordersheet"
	"github.com/sells-group/freight-cli/internal/pipeline"
)

var (
	ingestDir       string
	ingestFiles     []string
	ingestMessageID string
	ingestTimestamp string
	ingestOrdersOut string
	ingestNoOrders  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest order workbooks into the freight ledger",
	Long:  "Parses order workbooks from a drop directory (or explicit files), schedules and prices every line, appends the ledger, and writes order files. Documents already ingested are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		jobs, err := collectJobs(ingestDir, ingestFiles, ingestMessageID, ingestTimestamp)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			zap.L().Info("no order workbooks to ingest")
			return nil
		}

		ordersDir := ingestOrdersOut
		if ordersDir == "" && cfg.Orders.Enabled {
			ordersDir = cfg.Orders.OutputDir
		}
		if ingestNoOrders {
			ordersDir = ""
		}

		env, err := initIngest(ctx, cfg, ordersDir)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Processor.RunBatch(ctx, jobs, ordersheet.Parse)
		printBatch(cmd.OutOrStdout(), res, cfg.Invoice.CurrencyPlaces)

		if res.Failed > 0 {
			return eris.Errorf("%d of %d documents failed", res.Failed, len(jobs))
		}
		return nil
	},
}

// collectJobs turns the command flags into pipeline jobs. Explicit files win
// over the drop directory; with neither, the configured drop directory is
// scanned.
func collectJobs(dir string, files []string, messageID, timestamp string) ([]pipeline.Job, error) {
	var sources []ordersheet.Source
	if len(files) > 0 {
		if messageID == "" {
			messageID = ordersheet.ScanMessageID
		}
		for _, f := range files {
			src, err := ordersheet.SourceFor(f, messageID)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
	} else {
		if dir == "" {
			dir = cfg.Orders.DropDir
		}
		found, err := ordersheet.Scan(dir)
		if err != nil {
			return nil, err
		}
		sources = found
	}

	jobs := make([]pipeline.Job, 0, len(sources))
	for _, src := range sources {
		if timestamp != "" {
			src.Key.Timestamp = timestamp
		}
		if err := src.Key.Validate(); err != nil {
			return nil, eris.Wrapf(err, "ingest %s", src.Path)
		}
		jobs = append(jobs, pipeline.Job{Key: src.Key, Path: src.Path})
	}
	return jobs, nil
}

func printBatch(w io.Writer, res *pipeline.BatchResult, places int32) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tSTATUS\tLINES\tFREIGHT\tORDER FILES")
	for _, r := range res.Results {
		status := "ingested"
		if r.Skipped {
			status = "skipped"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n",
			r.Key.Name, status, r.Lines, invoice.FormatYen(r.TotalFreight, places), len(r.OrderFiles))
	}
	for _, f := range res.Failures {
		fmt.Fprintf(tw, "%s\tfailed\t-\t-\t-\n", f.Key.Name)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nrun %s: %d processed, %d skipped, %d failed, freight %s (%s)\n",
		res.RunID, res.Processed, res.Skipped, res.Failed,
		invoice.FormatYen(res.TotalFreight, places), res.Duration.Round(time.Millisecond))
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "drop directory to scan (default from config)")
	ingestCmd.Flags().StringSliceVar(&ingestFiles, "file", nil, "order workbook to ingest (repeatable)")
	ingestCmd.Flags().StringVar(&ingestMessageID, "message-id", "", "message id for --file documents")
	ingestCmd.Flags().StringVar(&ingestTimestamp, "timestamp", "", "override the document timestamp in the dedup key")
	ingestCmd.Flags().StringVar(&ingestOrdersOut, "orders-out", "", "directory for generated order files (default from config)")
	ingestCmd.Flags().BoolVar(&ingestNoOrders, "no-orders", false, "skip order file generation")
	ingestCmd.MarkFlagsMutuallyExclusive("dir", "file")
	rootCmd.AddCommand(ingestCmd)
}
