package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadmod-labs/cadmod/internal/catalog"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List modules available for installation",
	Long: `Fetch the standard catalog and any configured custom sources and list
the modules they offer. Sources that fail to load are reported as warnings;
the remaining sources still produce a usable listing.`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	fetcher := catalog.NewFetcher()
	result := fetcher.Fetch(cmd.Context(), buildSources())
	reportFetchFailures(result.Failures)
	if len(result.Modules) == 0 && len(result.Failures) > 0 {
		return fmt.Errorf("no catalog source available")
	}

	if catalogJSON {
		data, err := json.MarshalIndent(result.Modules, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling catalog: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(result.Modules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tCATEGORY\tSOURCE")
	for _, desc := range result.Modules {
		source := desc.Source
		if desc.Custom {
			source += " (custom)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", desc.ID, desc.Version, desc.Category, source)
	}
	return w.Flush()
}
