package trigger

import (
	"fmt"
	"time"
)

// PreflightAt computes the credential pre-check instant for a main trigger.
// The lead is in hours, not calendar days, so the subtraction is exact and
// the result is always strictly earlier than the main trigger. A lead of
// zero means pre-flight is disabled for the schedule; callers skip the call
// entirely in that case, so zero or negative lead is a contract violation.
func PreflightAt(mainTrigger time.Time, leadHours int) (time.Time, error) {
	if leadHours <= 0 {
		return time.Time{}, fmt.Errorf("lead hours must be positive, got %d", leadHours)
	}
	return mainTrigger.Add(-time.Duration(leadHours) * time.Hour), nil
}
