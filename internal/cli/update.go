package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadmod-labs/cadmod/internal/branding"
	"github.com/cadmod-labs/cadmod/internal/config"
	"github.com/cadmod-labs/cadmod/internal/logging"
	"github.com/cadmod-labs/cadmod/internal/updater"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check whether a newer release is available",
	Long: `Check the release feed for a newer version. The check reports one of
four outcomes: up to date, update available, incompatible host, or check
failed. It never exits non-zero; a failed check is an answer, not an error.`,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	u := updater.New(config.HostVersion(buildVersion),
		updater.WithMirror(config.ReleaseMirror()))
	status := u.Check()

	fmt.Fprintln(cmd.OutOrStdout(), status.String())
	if status.State == updater.StateUpdateAvailable {
		fmt.Fprintf(cmd.OutOrStdout(), "Download: https://github.com/%s/releases/latest\n",
			branding.GitHubRepo())
	}

	// Refresh the cache so the startup banner reflects this check.
	if status.State != updater.StateCheckFailed {
		cache := &updater.VersionCache{
			State:               string(status.State),
			LatestVersion:       status.LatestVersion,
			HostVersion:         status.ActualHostVersion,
			RequiredHostVersion: status.RequiredHostVersion,
			CheckedAt:           time.Now(),
		}
		if err := updater.SaveCache(config.Dir(), cache); err != nil {
			logging.Default().Debug("could not save version cache", "err", err)
		}
	}
	return nil
}
