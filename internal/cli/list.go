package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed modules",
	Long:  `List installed modules. Modules staged for removal are shown separately.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents an installed module for display.
type listEntry struct {
	ID             string `json:"id"`
	Version        string `json:"version"`
	Source         string `json:"source"`
	PendingRemoval bool   `json:"pending_removal,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	var entries []listEntry
	for _, rec := range reg.Records() {
		entries = append(entries, listEntry{
			ID:             rec.ID,
			Version:        rec.Version,
			Source:         rec.Source,
			PendingRemoval: rec.PendingRemoval,
		})
	}

	if listJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling list: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No modules installed yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tSOURCE\tSTATE")
	for _, e := range entries {
		state := "active"
		if e.PendingRemoval {
			state = "pending removal"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Version, e.Source, state)
	}
	return w.Flush()
}
