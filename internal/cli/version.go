package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadmod-labs/cadmod/internal/branding"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", branding.CLIName(), buildVersion)
		if buildCommit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", buildCommit)
		}
		if buildDate != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
