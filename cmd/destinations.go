package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/invoice"
	"github.com/sells-group/freight-cli/internal/master"
	"github.com/sells-group/freight-cli/internal/model"
)

var destinationsCmd = &cobra.Command{
	Use:     "destinations",
	Aliases: []string{"dest"},
	Short:   "Manage the destination master",
}

var destinationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := st.ListDestinations(ctx)
		if err != nil {
			return err
		}
		printDestinations(cmd.OutOrStdout(), ds, cfg.Invoice.CurrencyPlaces)
		return nil
	},
}

var destinationsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search destinations by name, phone, or address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := st.SearchDestinations(ctx, args[0])
		if err != nil {
			return err
		}
		printDestinations(cmd.OutOrStdout(), ds, cfg.Invoice.CurrencyPlaces)
		return nil
	},
}

var (
	destFormalName string
	destPhone      string
	destAddress    string
	destLeadTime   string
	destFees       []string
	destLowFees    []string
)

var destinationsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a destination",
	Example: `  freight-cli destinations add 東京DC --lead-time D+1 --fee A=1200 --fee B=900 --low-fee A=1500
  freight-cli destinations add 大阪DC --formal-name "大阪物流センター" --phone 06-0000-0000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := destinationFromFlags(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpsertDestination(ctx, d); err != nil {
			return err
		}
		zap.L().Info("destination saved", zap.String("name", d.Name))
		return nil
	},
}

var destinationsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a destination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteDestination(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("destination deleted", zap.String("name", args[0]))
		return nil
	},
}

var destinationsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import destinations from a CSV, JSON, or YAML master file",
	Long:  "Replaces or adds every destination in the file. The import is all-or-nothing: one invalid record rejects the whole file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ds, err := master.Load(ctx, args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportDestinations(ctx, ds)
		if err != nil {
			return err
		}
		zap.L().Info("destinations imported", zap.String("file", args[0]), zap.Int("count", n))
		return nil
	},
}

var destinationsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the destination master as JSON (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := st.ListDestinations(ctx)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			return master.WriteJSON(cmd.OutOrStdout(), ds)
		}
		f, err := os.Create(args[0])
		if err != nil {
			return eris.Wrapf(err, "create %s", args[0])
		}
		defer f.Close() //nolint:errcheck
		return master.WriteJSON(f, ds)
	},
}

// destinationFromFlags builds a destination from the add flags.
func destinationFromFlags(name string) (model.Destination, error) {
	lead, err := model.ParseLeadTime(destLeadTime)
	if err != nil {
		return model.Destination{}, err
	}
	d := model.Destination{
		Name:         strings.TrimSpace(name),
		FormalName:   destFormalName,
		Phone:        destPhone,
		Address:      destAddress,
		LeadTimeDays: lead,
	}
	if err := applyFeeFlags(&d, destFees, model.TierStandard); err != nil {
		return model.Destination{}, err
	}
	if err := applyFeeFlags(&d, destLowFees, model.TierLow); err != nil {
		return model.Destination{}, err
	}
	return d, d.Validate()
}

// applyFeeFlags parses RANK=AMOUNT pairs into d's fees for tier.
func applyFeeFlags(d *model.Destination, pairs []string, tier model.VolumeTier) error {
	for _, p := range pairs {
		rawRank, rawAmount, ok := strings.Cut(p, "=")
		if !ok {
			return eris.Errorf("fee %q: want RANK=AMOUNT", p)
		}
		rank := model.NormalizeRank(rawRank)
		if !rank.Known() {
			return eris.Errorf("fee %q: unknown rank %q", p, rawRank)
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(rawAmount), ",", ""))
		if err != nil {
			return eris.Wrapf(err, "fee %q", p)
		}
		d.SetFee(rank, tier, amount)
	}
	return nil
}

func printDestinations(w io.Writer, ds []model.Destination, places int32) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "NAME\tLEAD\tPHONE\t")
	for _, rank := range model.Ranks {
		fmt.Fprintf(tw, "%s\t%s<=5\t", rank, rank)
	}
	fmt.Fprintln(tw, "ADDRESS")
	for i := range ds {
		d := &ds[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t", d.Name, model.FormatLeadTime(d.LeadTimeDays), d.Phone)
		for _, rank := range model.Ranks {
			fmt.Fprintf(tw, "%s\t%s\t",
				feeCell(d, rank, model.TierStandard, places),
				feeCell(d, rank, model.TierLow, places))
		}
		fmt.Fprintln(tw, d.Address)
	}
	_ = tw.Flush()
}

func feeCell(d *model.Destination, rank model.Rank, tier model.VolumeTier, places int32) string {
	fee, ok := d.Fee(rank, tier)
	if !ok {
		return "-"
	}
	return invoice.FormatYen(fee, places)
}

func init() {
	destinationsAddCmd.Flags().StringVar(&destFormalName, "formal-name", "", "formal (registered) name")
	destinationsAddCmd.Flags().StringVar(&destPhone, "phone", "", "phone number")
	destinationsAddCmd.Flags().StringVar(&destAddress, "address", "", "delivery address")
	destinationsAddCmd.Flags().StringVar(&destLeadTime, "lead-time", "D+1", "lead time as D+N working days")
	destinationsAddCmd.Flags().StringSliceVar(&destFees, "fee", nil, "standard fee as RANK=AMOUNT (repeatable)")
	destinationsAddCmd.Flags().StringSliceVar(&destLowFees, "low-fee", nil, "low-volume fee as RANK=AMOUNT (repeatable)")

	destinationsCmd.AddCommand(
		destinationsListCmd,
		destinationsSearchCmd,
		destinationsAddCmd,
		destinationsDeleteCmd,
		destinationsImportCmd,
		destinationsExportCmd,
	)
	rootCmd.AddCommand(destinationsCmd)
}
