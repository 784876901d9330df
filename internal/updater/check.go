package updater

import "fmt"

// State is the closed outcome set of an update check.
type State string

const (
	StateUpToDate         State = "up-to-date"
	StateUpdateAvailable  State = "update-available"
	StateIncompatibleHost State = "incompatible-host"
	StateCheckFailed      State = "check-failed"
)

// Status is the result of one update check. The check never raises past
// its caller: every failure collapses into StateCheckFailed.
type Status struct {
	State               State
	LatestVersion       string
	RequiredHostVersion string // set for StateIncompatibleHost
	ActualHostVersion   string
	Reason              string // set for StateCheckFailed
}

// String renders the status for display.
func (s Status) String() string {
	switch s.State {
	case StateUpdateAvailable:
		return fmt.Sprintf("update available: %s -> %s", s.ActualHostVersion, s.LatestVersion)
	case StateIncompatibleHost:
		return fmt.Sprintf("version %s requires host %s or newer (running %s)",
			s.LatestVersion, s.RequiredHostVersion, s.ActualHostVersion)
	case StateCheckFailed:
		return fmt.Sprintf("update check failed: %s", s.Reason)
	default:
		return fmt.Sprintf("%s is up to date", s.ActualHostVersion)
	}
}

// Check fetches the latest release and classifies it against the running
// host version. A release declaring a minimum host version above the
// detected one is reported incompatible even when it is nominally newer:
// a version the environment cannot run must never look "available now".
func (u *Updater) Check() Status {
	status := Status{ActualHostVersion: u.hostVersion}

	release, err := u.FetchLatest()
	if err != nil {
		status.State = StateCheckFailed
		status.Reason = err.Error()
		return status
	}
	status.LatestVersion = release.Version

	newer, err := IsNewer(u.hostVersion, release.Version)
	if err != nil {
		status.State = StateCheckFailed
		status.Reason = err.Error()
		return status
	}
	if !newer {
		status.State = StateUpToDate
		return status
	}

	if required := release.MinHostVersion(); required != "" {
		tooOld, err := IsNewer(u.hostVersion, required)
		if err != nil {
			status.State = StateCheckFailed
			status.Reason = fmt.Sprintf("parsing minimum host version %q: %v", required, err)
			return status
		}
		if tooOld {
			status.State = StateIncompatibleHost
			status.RequiredHostVersion = required
			return status
		}
	}

	status.State = StateUpdateAvailable
	return status
}
