package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand(app *appContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "starlight",
		Short:         "Resource client for the starlight stage asset server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&app.configDir, "config", "c", "", "Configuration directory")
	rootCmd.PersistentFlags().BoolVar(&app.plain, "plain", false, "Plain line output even on a terminal")

	rootCmd.AddCommand(newCheckCommand(app))
	rootCmd.AddCommand(newUpdateCommand(app))
	rootCmd.AddCommand(newSearchCommand(app))
	rootCmd.AddCommand(newDownloadCommand(app))
	rootCmd.AddCommand(newVersionsCommand(app))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the starlight version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "starlight %s\n", Version)
		},
	}
}
