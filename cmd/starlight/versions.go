package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newVersionsCommand(app *appContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List confirmed resource versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensure(); err != nil {
				return err
			}
			if reset {
				app.check.Reset()
				fmt.Fprintln(cmd.OutOrStdout(), "Version history and manifest index cleared.")
				return nil
			}
			recs, err := app.check.History()
			if err != nil {
				return fmt.Errorf("read version history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintf(out, "No confirmed versions yet. Latest known: %d\n", app.check.Latest())
				return nil
			}

			latest := app.check.Latest()
			rows := make([][]string, 0, len(recs))
			for _, rec := range recs {
				mark := ""
				if rec.Version == latest {
					mark = "*"
				}
				rows = append(rows, []string{
					mark,
					fmt.Sprint(rec.Version),
					string(rec.Source),
					humanize.Time(rec.ConfirmedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"", "Version", "Source", "Confirmed"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				"",
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the version history and manifest index")
	return cmd
}
