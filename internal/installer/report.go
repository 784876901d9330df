package installer

import (
	"fmt"
	"strings"
)

// Report is the outcome of one plan application. No rollback is attempted:
// Applied stays applied even when a later step fails.
type Report struct {
	Applied      []string // identifiers whose steps completed
	Skipped      []string // identifiers already satisfied
	FailedID     string   // first failing identifier, empty on full success
	FailedErr    error    // cause of the failure
	NotAttempted []string // identifiers after the failure, never tried
}

// OK reports full success.
func (r *Report) OK() bool { return r.FailedID == "" }

// Summary renders the "N of M succeeded" outcome for display.
func (r *Report) Summary() string {
	total := len(r.Applied) + len(r.NotAttempted)
	if r.FailedID != "" {
		total++
	}
	if r.OK() {
		if total == 0 {
			return "nothing to do"
		}
		return fmt.Sprintf("%d of %d succeeded", len(r.Applied), total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d succeeded; %s failed: %v", len(r.Applied), total, r.FailedID, r.FailedErr)
	if len(r.NotAttempted) > 0 {
		fmt.Fprintf(&b, "; not attempted: %s", strings.Join(r.NotAttempted, ", "))
	}
	return b.String()
}
