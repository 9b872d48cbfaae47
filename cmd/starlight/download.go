package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/starlight/internal/batch"
	"github.com/mmcdole/starlight/internal/domain"
	"github.com/mmcdole/starlight/internal/service"
	"github.com/mmcdole/starlight/internal/tui/styles"
	"github.com/spf13/cobra"
)

func newDownloadCommand(app *appContext) *cobra.Command {
	var flags searchFlags
	var exact bool
	var all bool

	cmd := &cobra.Command{
		Use:   "download query...",
		Short: "Download manifest entries into the download directory",
		Long: "Download every entry matching the query, one at a time. With --exact the\n" +
			"arguments are entry names. Interrupting stops the active transfer and\n" +
			"abandons the rest of the queue.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensure(); err != nil {
				return err
			}
			ctx := cmd.Context()
			v := flags.resolve(app)

			var entries []domain.ManifestEntry
			if exact {
				found, err := app.search.Lookup(ctx, v, args)
				if err != nil && len(found) == 0 {
					return err
				}
				if err != nil {
					app.logger.Warn("some entries were not found", "error", err)
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
				entries = found
			} else {
				results, err := app.search.Search(ctx, v, strings.Join(args, " "), service.SearchOptions{
					NotDownloaded: !all,
					DownloadDir:   app.download.Dir(),
					Limit:         flags.limit,
					Refresh:       flags.refresh,
				})
				if err != nil {
					return err
				}
				for _, r := range results {
					entries = append(entries, r.Entry)
				}
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Nothing to download.")
				return nil
			}

			coordinator := app.download.NewBatch()
			stopped := make(chan struct{})
			defer close(stopped)
			go func() {
				select {
				case <-ctx.Done():
					if coordinator.Stop() {
						app.logger.Info("batch download stopped by user")
					}
				case <-stopped:
				}
			}()

			line := newStatusLine(cmd.ErrOrStderr(), app.plain)
			color := shouldColorize(out)
			done := 0
			errs, err := app.download.Run(ctx, coordinator, entries, batch.Handlers{
				OnItemStart: func(target domain.ManifestEntry, dest string, s batch.Snapshot) {
					line.update(fmt.Sprintf("[%d/%d] %s", s.Index, s.Total, target.Name), s.Loading)
				},
				OnItemProgress: func(info domain.ProgressInfo, s batch.Snapshot) {
					line.update(fmt.Sprintf("[%d/%d] %s", s.Index, s.Total, info.Name), s.Loading)
				},
				OnItemDone: func(target domain.ManifestEntry, path string, err error, s batch.Snapshot) {
					line.clear()
					if err != nil {
						fmt.Fprintf(out, "%s %s: %v\n", colorize(color, styles.ErrorStyle.Render, "✗"), target.Name, err)
						return
					}
					done++
					fmt.Fprintf(out, "%s %s\n", colorize(color, styles.SuccessStyle.Render, "✓"), path)
				},
			})
			line.clear()
			if err != nil {
				return err
			}

			failed := 0
			for _, e := range errs {
				if errors.Is(e, domain.ErrBatchItemFailed) {
					failed++
				}
			}
			fmt.Fprintf(out, "Downloaded %d of %d into %s\n", done, len(entries), app.download.Dir())
			if failed > 0 {
				fmt.Fprintf(out, "Failed: %d\n", failed)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if failed > 0 {
				return fmt.Errorf("%d downloads failed: %w", failed, domain.ErrBatchItemFailed)
			}
			return nil
		},
	}

	flags.register(cmd, 0)
	cmd.Flags().BoolVar(&exact, "exact", false, "Treat arguments as exact entry names")
	cmd.Flags().BoolVar(&all, "all", false, "Download matches even when already present")
	return cmd
}
