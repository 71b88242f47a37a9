package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atmx/daybook/internal/account"
	"github.com/atmx/daybook/internal/calendar"
	"github.com/atmx/daybook/internal/local"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/summary"
)

// rootConfig holds the persistent flags shared by every subcommand.
type rootConfig struct {
	dbPath string
	userID string
}

func (rc *rootConfig) open() (*local.State, error) {
	st, err := local.Open(rc.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return st, nil
}

func newRootCmd() *cobra.Command {
	rc := &rootConfig{}
	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and edit the local daybook state",
		Long: `ledgerctl works directly on the SQLite file used by the daybook server.

Examples:
  ledgerctl show --filter month
  ledgerctl export backup.json
  ledgerctl delete 2024-01-15 --recalc
  ledgerctl theme dark`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&rc.dbPath, "db", "d", "daybook.db", "path to the local SQLite state")
	cmd.PersistentFlags().StringVarP(&rc.userID, "user", "u", account.AnonymousUser, "user whose state to use")

	cmd.AddCommand(
		newShowCmd(rc),
		newExportCmd(rc),
		newImportCmd(rc),
		newRecalcCmd(rc),
		newDeleteCmd(rc),
		newThemeCmd(rc),
		newUsersCmd(rc),
	)
	return cmd
}

func newShowCmd(rc *rootConfig) *cobra.Command {
	var from, to, filter, anchor string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List saved days with totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			days, err := st.Summaries(cmd.Context(), rc.userID)
			if err != nil {
				return err
			}

			f := summary.Filter(filter)
			switch f {
			case summary.FilterAll, summary.FilterWeek, summary.FilterMonth:
			default:
				return fmt.Errorf("bad --filter %q: want all, week or month", filter)
			}
			if anchor == "" {
				anchor = calendar.Today(nowFunc())
			}
			lo, hi := days.Bounds(f, anchor)
			if from != "" {
				lo = from
			}
			if to != "" {
				hi = to
			}

			printDays(cmd.OutOrStdout(), days.Range(lo, hi), days.Totals(lo, hi))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter, "filter", "all", "preset range: all, week or month")
	cmd.Flags().StringVar(&anchor, "anchor", "", "date week/month presets are anchored on (default today)")
	return cmd
}

func printDays(w io.Writer, days []model.DaySummary, totals summary.Totals) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tSTART\tEND\tPNL\tTRADES\tW/L\tWIN%\t")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%s\t\n",
			d.Date,
			d.StartBalance.StringFixed(2),
			d.EndBalance.StringFixed(2),
			d.PnL.StringFixed(2),
			d.Trades, d.Wins, d.Losses,
			d.WinRate.StringFixed(2)+"%",
		)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s\t%d\t%d/%d\t%s\t\n",
		totals.PnL.StringFixed(2),
		totals.Trades, totals.Wins, totals.Losses,
		totals.WinRate.StringFixed(2)+"%",
	)
	tw.Flush()
}

func newExportCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the summary snapshot as JSON (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			days, err := st.Summaries(cmd.Context(), rc.userID)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(days, "", "  ")
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			data = append(data, '\n')

			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(args[0], data, 0o644)
		},
	}
}

func newImportCmd(rc *rootConfig) *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a JSON summary snapshot",
		Long: `Load a date-keyed JSON summary snapshot. By default the stored
snapshot is replaced; with --merge imported days are upserted over it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in summary.Store
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			for _, d := range in.All() {
				if !calendar.Valid(d.Date) {
					return fmt.Errorf("decode %s: bad date %q", args[0], d.Date)
				}
			}

			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			out := in
			if merge {
				if out, err = st.Summaries(cmd.Context(), rc.userID); err != nil {
					return err
				}
				for _, d := range in.All() {
					out = out.Upsert(d)
				}
			}
			if err := st.SaveSummaries(cmd.Context(), rc.userID, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d days (%d stored)\n", in.Len(), out.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "upsert into the stored snapshot instead of replacing it")
	return cmd
}

func newRecalcCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <YYYY-MM-DD>",
		Short: "Re-chain every day after the given date from its closing balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			days, err := st.Summaries(cmd.Context(), rc.userID)
			if err != nil {
				return err
			}
			if !days.Has(date) {
				return fmt.Errorf("no saved day %s", date)
			}
			next, n := summary.RecalcForward(days, date)
			if err := st.SaveSummaries(cmd.Context(), rc.userID, next); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rewrote %d days after %s\n", n, date)
			return nil
		},
	}
}

func newDeleteCmd(rc *rootConfig) *cobra.Command {
	var recalc bool

	cmd := &cobra.Command{
		Use:   "delete <YYYY-MM-DD>",
		Short: "Delete a saved day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			days, err := st.Summaries(cmd.Context(), rc.userID)
			if err != nil {
				return err
			}
			if !days.Has(date) {
				return fmt.Errorf("no saved day %s", date)
			}

			next := days.Delete(date)
			msg := fmt.Sprintf("deleted %s", date)
			if recalc {
				// Re-chain from the closest earlier day.
				prev := ""
				for _, d := range next.Dates() {
					if d < date {
						prev = d
					}
				}
				if prev != "" {
					var n int
					next, n = summary.RecalcForward(next, prev)
					msg += fmt.Sprintf(", rewrote %d days", n)
				}
			}
			if err := st.SaveSummaries(cmd.Context(), rc.userID, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recalc, "recalc", false, "re-chain later days from the previous day's closing balance")
	return cmd
}

func newThemeCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Show or set the theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(model.ThemeDark), string(model.ThemeLight)},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				if err := st.SetTheme(cmd.Context(), rc.userID, model.Theme(args[0])); err != nil {
					return err
				}
			}
			t, err := st.Theme(cmd.Context(), rc.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newUsersCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with stored state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rc.open()
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.Users(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}
