package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cadmod-labs/cadmod/internal/catalog"
	"github.com/cadmod-labs/cadmod/internal/config"
	"github.com/cadmod-labs/cadmod/internal/installer"
	"github.com/cadmod-labs/cadmod/internal/resolver"
)

var installYes bool

var installCmd = &cobra.Command{
	Use:   "install <module-id>...",
	Short: "Install modules and their dependencies",
	Long: `Resolve the requested modules against the catalog and install them,
dependencies first. Modules already installed at a satisfying version are
skipped; lower installed versions are upgraded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	fetcher := catalog.NewFetcher()
	result := fetcher.Fetch(cmd.Context(), buildSources())
	reportFetchFailures(result.Failures)
	if len(result.Modules) == 0 && len(result.Failures) > 0 {
		return fmt.Errorf("no catalog source available")
	}
	cat := catalog.New(result.Modules)

	// Resolution errors abort before anything touches the filesystem.
	plan, err := resolver.Resolve(args, cat, reg)
	if err != nil {
		return err
	}
	if len(plan.Work()) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to install; all requested modules are up to date.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Resolution plan:")
	plan.Print(cmd.OutOrStdout())

	if !installYes && !confirm(cmd) {
		fmt.Fprintln(cmd.OutOrStdout(), "Installation cancelled.")
		return nil
	}

	inst := installer.New(reg, config.ModulesRoot(), installer.WithProgress(printStep(cmd)))
	report := inst.Apply(cmd.Context(), plan)

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
	if !report.OK() {
		return fmt.Errorf("install incomplete: %s failed", report.FailedID)
	}
	return nil
}

func confirm(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "? Proceed? (Y/n) ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

func printStep(cmd *cobra.Command) installer.ProgressFunc {
	return func(step resolver.Step, err error) {
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %s %s (%v)\n", step.ID, step.Version, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s %s\n", step.ID, step.Version)
	}
}
