package main

import (
	"fmt"
	"strings"

	"github.com/mmcdole/starlight/internal/domain"
	"github.com/mmcdole/starlight/internal/service"
	"github.com/mmcdole/starlight/internal/tui/styles"
	"github.com/spf13/cobra"
)

type searchFlags struct {
	version       int
	notDownloaded bool
	limit         int
	refresh       bool
}

func (f *searchFlags) register(cmd *cobra.Command, limit int) {
	cmd.Flags().IntVar(&f.version, "version", 0, "Resource version to search (default: latest)")
	cmd.Flags().BoolVar(&f.notDownloaded, "not-downloaded", false, "Only entries missing from the download directory")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", limit, "Maximum number of results (0 = unlimited)")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "Reread the manifest instead of the stored index")
}

func (f *searchFlags) resolve(app *appContext) domain.ResourceVersion {
	if f.version > 0 {
		return domain.ResourceVersion(f.version)
	}
	return app.check.Latest()
}

func newSearchCommand(app *appContext) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Fuzzy search the manifest of a resource version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensure(); err != nil {
				return err
			}

			v := flags.resolve(app)
			results, err := app.search.Search(cmd.Context(), v, strings.Join(args, " "), service.SearchOptions{
				NotDownloaded: flags.notDownloaded,
				DownloadDir:   app.download.Dir(),
				Limit:         flags.limit,
				Refresh:       flags.refresh,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching entries.")
				return nil
			}

			color := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				name := r.Entry.Name
				if color {
					name = styles.Highlight(name, r.MatchedIndexes)
				}
				rows = append(rows, []string{
					name,
					string(r.Entry.Kind()),
					r.Entry.Hash,
					yesNo(r.Downloaded),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Kind", "Hash", "Downloaded"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				fmt.Sprintf("%d entries in version %d", len(results), v),
			))
			return nil
		},
	}

	flags.register(cmd, 50)
	return cmd
}
