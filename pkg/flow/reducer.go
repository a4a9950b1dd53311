package flow

import (
	"github.com/quadrabot/quadra/pkg/runlog"
)

// StepStatus is the derived state of one catalog step.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusSuccess StepStatus = "success"
	StatusError   StepStatus = "error"
	StatusSkipped StepStatus = "skipped"
)

// Result is the overall outcome of a run, nil while the run is in flight.
// Step names the terminal failing step when Success is false; it need not
// have a log entry of its own.
type Result struct {
	Success bool
	Step    string
}

// NotificationDetail is the resolved state of the notification side effect,
// folded into the terminal step rather than shown as its own row.
type NotificationDetail struct {
	Status StepStatus
	Entry  *runlog.LogEntry
}

// StepState is one row of the derived view.
type StepState struct {
	Step   Step
	Status StepStatus
	// Entry is the matching log entry, when one exists.
	Entry *runlog.LogEntry
	// Terminal marks the step the run concluded at.
	Terminal bool
	// Notification carries the folded notification outcome; set only on
	// the terminal step of a terminal run.
	Notification *NotificationDetail
}

// ReduceKind derives step states using the fixed catalog for the kind.
func ReduceKind(kind runlog.Kind, entries []runlog.LogEntry, result *Result) ([]StepState, bool) {
	steps, ok := Catalog(kind)
	if !ok {
		return nil, false
	}
	return Reduce(steps, entries, result), true
}

// Reduce derives the status of every catalog step from an observed,
// possibly partial, log. The rules are total: every step gets exactly one
// status, and unknown log entries (ids outside the catalog) are ignored.
func Reduce(steps []Step, entries []runlog.LogEntry, result *Result) []StepState {
	byStep := make(map[string]*runlog.LogEntry, len(entries))
	for i := range entries {
		if _, seen := byStep[entries[i].Step]; !seen {
			byStep[entries[i].Step] = &entries[i]
		}
	}

	// The notification step is a side effect, not a pipeline stage; it is
	// dropped from the rendered sequence before any index math so that
	// running/pending positions line up with the rows actually shown.
	rendered := make([]Step, 0, len(steps))
	hasNotificationStep := false
	for _, s := range steps {
		if s.ID == NotificationStepID {
			hasNotificationStep = true
			continue
		}
		rendered = append(rendered, s)
	}

	lastLogged := -1
	for i, s := range rendered {
		if _, ok := byStep[s.ID]; ok {
			lastLogged = i
		}
	}

	var notification *NotificationDetail
	if hasNotificationStep && result != nil {
		notification = resolveNotification(byStep[NotificationStepID])
	}

	states := make([]StepState, 0, len(rendered))
	for i, s := range rendered {
		state := StepState{Step: s, Entry: byStep[s.ID]}

		switch {
		case result == nil:
			switch {
			case state.Entry != nil:
				state.Status = StatusSuccess
			case i == lastLogged+1:
				state.Status = StatusRunning
			default:
				state.Status = StatusPending
			}
		case !result.Success && s.ID == result.Step:
			state.Status = StatusError
		case state.Entry != nil:
			state.Status = StatusSuccess
		case i < lastLogged:
			// The runtime may skip trivial steps without logging them;
			// anything strictly before the last logged step completed.
			state.Status = StatusSuccess
		default:
			state.Status = StatusPending
		}

		states = append(states, state)
	}

	markTerminal(states, result, notification)
	return states
}

// markTerminal flags the step the run concluded at and attaches the folded
// notification detail to it.
func markTerminal(states []StepState, result *Result, notification *NotificationDetail) {
	if result == nil {
		return
	}

	idx := -1
	if result.Success {
		idx = len(states) - 1
	} else {
		for i := range states {
			if states[i].Status == StatusError {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		// Error with an unknown or absent step: nothing to mark; the
		// caller renders a generic failure.
		return
	}

	states[idx].Terminal = true
	states[idx].Notification = notification
}

// resolveNotification derives the notification status from the entry's own
// details payload: an explicit sent flag wins, a disabled or unconfigured
// channel means skipped, and a bare entry counts as sent.
func resolveNotification(entry *runlog.LogEntry) *NotificationDetail {
	if entry == nil {
		return nil
	}

	detail := &NotificationDetail{Status: StatusSuccess, Entry: entry}

	if sent, ok := entry.Details["sent"].(bool); ok {
		if sent {
			detail.Status = StatusSuccess
		} else {
			detail.Status = StatusError
		}
		return detail
	}
	if configured, ok := entry.Details["configured"].(bool); ok && !configured {
		detail.Status = StatusSkipped
		return detail
	}
	if enabled, ok := entry.Details["enabled"].(bool); ok && !enabled {
		detail.Status = StatusSkipped
		return detail
	}
	return detail
}
