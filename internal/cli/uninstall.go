package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadmod-labs/cadmod/internal/config"
	"github.com/cadmod-labs/cadmod/internal/installer"
	"github.com/cadmod-labs/cadmod/internal/resolver"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <module-id>...",
	Short: "Stage modules for removal",
	Long: `Stage installed modules for removal. The host may hold module files
open, so files are renamed in place and deleted at the next start; the
modules disappear from the active set immediately. A module still required
by another installed module is refused unless both are removed together.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	// Dependent check runs against the current registry graph before any
	// file is touched.
	plan, err := resolver.ResolveRemoval(args, reg)
	if err != nil {
		return err
	}

	inst := installer.New(reg, config.ModulesRoot(), installer.WithProgress(printStep(cmd)))
	report := inst.Apply(cmd.Context(), plan)

	fmt.Fprintln(cmd.OutOrStdout())
	if !report.OK() {
		fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
		return fmt.Errorf("uninstall incomplete: %s failed", report.FailedID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Staged %d module(s) for removal; files are deleted at next start.\n",
		len(report.Applied))
	return nil
}
