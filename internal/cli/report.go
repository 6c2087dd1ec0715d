package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"finboard/internal/backend"
	"finboard/internal/core"
	"finboard/internal/dataservice"
	"finboard/internal/report"

	"github.com/spf13/cobra"
)

// reportWindow bounds how many transactions the report aggregates.
const reportWindow = 5000

type periodReport struct {
	Mode       string                   `json:"mode"`
	Period     report.Period            `json:"period"`
	Totals     report.Totals            `json:"totals"`
	Categories []report.CategoryAmount  `json:"categories"`
	Reminders  report.ReminderPartition `json:"reminders"`
}

func newReportCommand(a *app) *cobra.Command {
	var period string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print totals, the category breakdown and pending reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bcfg, err := backend.FromAppConfig(a.cfg)
			if err != nil {
				return err
			}
			be, err := backend.NewFactory(a.logger).CreateBackend(cmd.Context(), bcfg)
			if err != nil {
				return err
			}
			defer be.Close()

			rep, err := buildReport(cmd.Context(), be.Data, period, time.Now())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().StringVar(&period, "period", "3months", "1month, 3months, 6months or 1year")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func buildReport(ctx context.Context, data *dataservice.Service, period string, now time.Time) (periodReport, error) {
	snap, err := data.Snapshot(ctx, reportWindow)
	if err != nil {
		return periodReport{}, err
	}
	p := report.PresetPeriod(period, now)
	return periodReport{
		Mode:       snap.Mode.String(),
		Period:     p,
		Totals:     report.PeriodTotals(snap.Transactions, p),
		Categories: report.CategoryBreakdown(snap.Transactions, snap.Categories, p),
		Reminders:  report.PartitionReminders(snap.Reminders, now),
	}, nil
}

func printReport(out io.Writer, rep periodReport) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\t%s to %s\t(%s data)\n", rep.Period.From, orToday(rep.Period.To), rep.Mode)
	fmt.Fprintf(tw, "Income\t%s\n", rep.Totals.Income.StringFixed(2))
	fmt.Fprintf(tw, "Expenses\t%s\n", rep.Totals.Expenses.StringFixed(2))
	fmt.Fprintf(tw, "Balance\t%s\n", rep.Totals.Balance.StringFixed(2))
	fmt.Fprintf(tw, "Savings rate\t%s%%\n", rep.Totals.SavingsRate.StringFixed(2))

	fmt.Fprintln(tw, "\nCategory\tAmount")
	for _, c := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Amount.StringFixed(2))
	}

	fmt.Fprintln(tw, "\nReminder\tDue\tStatus")
	for _, r := range rep.Reminders.Overdue {
		fmt.Fprintf(tw, "%s\t%s\toverdue\n", r.Title, r.DueDate)
	}
	for _, r := range rep.Reminders.Upcoming {
		fmt.Fprintf(tw, "%s\t%s\tupcoming\n", r.Title, r.DueDate)
	}
	return tw.Flush()
}

func orToday(d core.Date) string {
	if d.IsZero() {
		return "today"
	}
	return d.String()
}
