package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/freight-cli/internal/calendar"
	"github.com/sells-group/freight-cli/internal/model"
)

var (
	holidaysYear int
	holidaysFrom string
	holidaysDays int
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "Show the holiday calendar or compute a delivery date",
	Example: `  freight-cli holidays --year 2026
  freight-cli holidays --from 2026/04/28 --days 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("holidays"); err != nil {
			return err
		}
		cal, err := initCalendar(cfg)
		if err != nil {
			return err
		}

		if holidaysFrom != "" {
			start, err := model.ParseDate(holidaysFrom)
			if err != nil {
				return err
			}
			days := calendar.NewBusinessDays(cal, cfg.Calendar.MaxWalkDays)
			due, err := days.AddWorkingDays(ctx, start, holidaysDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s + %d working days = %s\n",
				model.FormatDate(start), holidaysDays, model.FormatDate(due))
			return nil
		}

		year := holidaysYear
		if year == 0 {
			year = time.Now().Year()
		}
		// Warm the year either side so D+N walks across New Year stay cached.
		if err := cal.Warm(ctx, year-1, year, year+1); err != nil {
			return err
		}
		dates, err := cal.Holidays(ctx, year)
		if err != nil {
			return err
		}
		printHolidays(cmd.OutOrStdout(), year, dates)
		return nil
	},
}

func printHolidays(w io.Writer, year int, dates []time.Time) {
	fmt.Fprintf(w, "%d: %d holidays\n", year, len(dates))
	for _, d := range dates {
		fmt.Fprintf(w, "  %s  %s\n", model.FormatDate(d), d.Weekday())
	}
}

func init() {
	holidaysCmd.Flags().IntVar(&holidaysYear, "year", 0, "calendar year (default: current year)")
	holidaysCmd.Flags().StringVar(&holidaysFrom, "from", "", "start date (YYYY/MM/DD) for a working-day computation")
	holidaysCmd.Flags().IntVar(&holidaysDays, "days", 1, "working days to add with --from")
	rootCmd.AddCommand(holidaysCmd)
}
