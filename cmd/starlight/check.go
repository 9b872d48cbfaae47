package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Resolve the current resource version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensure(); err != nil {
				return err
			}

			cached := app.check.Latest()
			line := newStatusLine(cmd.ErrOrStderr(), app.plain)
			v, err := app.check.Check(cmd.Context(), func(current, max int) {
				percent := 0.0
				if max > 0 {
					percent = 100 * float64(current) / float64(max)
				}
				line.update(fmt.Sprintf("Probing resource versions (%d/%d)", current, max), percent)
			})
			line.clear()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if v == cached {
				fmt.Fprintf(out, "%d (unchanged)\n", v)
				return nil
			}
			fmt.Fprintf(out, "%d (was %d)\n", v, cached)
			return nil
		},
	}
}
