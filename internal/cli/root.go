package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadmod-labs/cadmod/internal/branding"
	"github.com/cadmod-labs/cadmod/internal/catalog"
	"github.com/cadmod-labs/cadmod/internal/config"
	"github.com/cadmod-labs/cadmod/internal/logging"
	"github.com/cadmod-labs/cadmod/internal/reconcile"
	"github.com/cadmod-labs/cadmod/internal/registry"
	"github.com/cadmod-labs/cadmod/internal/updater"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	rootVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` manages the installation, update, and removal of feature modules
for the CAD workstation, resolving inter-module dependencies and keeping
the on-disk state consistent across restarts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(rootVerbose)
		config.Load()

		if cmd.Name() == "version" {
			return
		}

		// Finalize staged removals and repair drift before anything reads
		// the registry. Failures inside the pass are logged, never raised.
		reg, err := registry.Open(config.RegistryPath())
		if err != nil {
			logging.Default().Warn("skipping startup reconcile", "err", err)
		} else {
			reconcile.New(reg, config.ModulesRoot()).Run()
		}

		// Non-blocking banner from the cached update check.
		if cmd.Name() != "update" {
			u := updater.New(config.HostVersion(buildVersion),
				updater.WithMirror(config.ReleaseMirror()))
			u.CheckAndPrintBanner(os.Stderr, config.Dir())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// openRegistry loads the persisted registry.
func openRegistry() (*registry.Registry, error) {
	reg, err := registry.Open(config.RegistryPath())
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	return reg, nil
}

// buildSources constructs the ordered catalog source list: the standard
// remote catalog first, then user-configured custom sources.
func buildSources() []catalog.Source {
	sources := []catalog.Source{{
		Name:     catalog.StandardSourceName,
		Location: config.CatalogURL(),
	}}
	for _, loc := range config.CustomSources() {
		sources = append(sources, catalog.Source{
			Name:     loc,
			Location: loc,
			Custom:   true,
		})
	}
	return sources
}

// reportFetchFailures warns about sources that failed without aborting the
// command: partial catalog results are still usable.
func reportFetchFailures(failures []*catalog.SourceError) {
	for _, f := range failures {
		logging.Default().Warn("catalog source failed", "source", f.Source, "kind", string(f.Kind), "err", f.Err)
	}
}
