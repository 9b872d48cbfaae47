package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/starlight/internal/acquire"
	"github.com/mmcdole/starlight/internal/domain"
	"github.com/mmcdole/starlight/internal/tui"
	"github.com/mmcdole/starlight/internal/tui/styles"
	"github.com/spf13/cobra"
)

func newUpdateCommand(app *appContext) *cobra.Command {
	var version int
	var background int

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fetch the manifest, master database and event assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensure(); err != nil {
				return err
			}

			req := acquire.Request{
				Version:    domain.ResourceVersion(version),
				Background: app.cfg.UI.Background,
			}
			if cmd.Flags().Changed("background") {
				req.Background = background
			}

			out := cmd.OutOrStdout()
			var (
				res *acquire.Result
				err error
			)
			if !app.plain && shouldColorize(out) {
				res, err = tui.Run(cmd.Context(), app.update, req)
			} else {
				line := newStatusLine(cmd.ErrOrStderr(), true)
				res, err = app.update.Run(cmd.Context(), req, func(ev acquire.Event) {
					if ev.Text != "" {
						line.update(ev.Text, ev.Overall)
					}
				})
			}
			if err != nil {
				return err
			}
			printResult(out, res, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Use this resource version instead of discovering one")
	cmd.Flags().IntVar(&background, "background", 0, "Background card id (0 follows the current event)")
	return cmd
}

func printResult(w io.Writer, res *acquire.Result, color bool) {
	fmt.Fprintln(w, joinNonEmpty(
		fmt.Sprintf("Resource version %d (%s)", res.Version, res.Source),
		offlineTag(res.Offline),
	))
	fmt.Fprintf(w, "  manifest  %s\n", res.ManifestPath)
	fmt.Fprintf(w, "  master    %s\n", res.MasterPath)
	if res.Master != nil && res.Master.EventHappening {
		fmt.Fprintf(w, "  event     %s\n", colorize(color, styles.AccentStyle.Render, res.Master.Event.Name))
	}
	if len(res.RewardCards) > 0 {
		ids := make([]string, len(res.RewardCards))
		for i, id := range res.RewardCards {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "  rewards   %s\n", strings.Join(ids, ", "))
	}
	for _, p := range res.Assets {
		fmt.Fprintf(w, "  asset     %s\n", p)
	}
}

func offlineTag(offline bool) string {
	if offline {
		return "[offline]"
	}
	return ""
}
