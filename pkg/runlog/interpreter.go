package runlog

import (
	"encoding/json"
	"regexp"
	"strings"
)

// stepToken matches a bracketed lowercase step id embedded in a free-text
// error message, e.g. "[authenticate] token expired". Uppercase markers
// like "[TESTE]" deliberately do not match.
var stepToken = regexp.MustCompile(`\[([a-z_]+)\]`)

// stepLabels is the fixed display table for the known step vocabulary.
var stepLabels = map[string]string{
	"receive_payload":       "Receive payload",
	"test_mode":             "Test mode",
	"init":                  "Initialize",
	"fetch_schedule":        "Fetch schedule",
	"fetch_refresh_token":   "Fetch refresh token",
	"authenticate":          "Authenticate",
	"persist_refresh_token": "Persist refreshed token",
	"perform_reservation":   "Perform reservation",
	"process_response":      "Process response",
	"persist_run_log":       "Persist run log",
	"persist_reservation":   "Persist reservation",
	"send_notification":     "Send notification",
	"finish":                "Finish",
}

// Interpreted is the normalized view of a raw run record.
type Interpreted struct {
	Kind    Kind
	Status  Status
	Message string

	// ErrorStep is the resolved failing step, empty when it could not be
	// determined. Display layers must treat "error with unknown step" as a
	// valid outcome, not a bug.
	ErrorStep string

	Entries []LogEntry
}

// responsePayload is the subset of the runtime's response blob the
// interpreter understands.
type responsePayload struct {
	Step  string     `json:"step"`
	Steps []LogEntry `json:"steps"`
}

// Interpret normalizes a persisted run record. The structured entry list is
// preferred; older records only carry steps inside the response payload.
func Interpret(run *Run) Interpreted {
	out := Interpreted{
		Kind:    run.Kind,
		Status:  run.Status,
		Message: run.Message,
		Entries: run.Entries,
	}

	var payload responsePayload
	if len(run.ResponsePayload) > 0 {
		// Best effort: a payload that does not decode contributes nothing.
		_ = json.Unmarshal(run.ResponsePayload, &payload)
	}

	if len(out.Entries) == 0 {
		out.Entries = payload.Steps
	}

	out.ErrorStep = resolveErrorStep(run, payload.Step)
	return out
}

// resolveErrorStep applies the resolution order: the explicit field on the
// record, then the payload's step field, then a bracketed token in the
// message. When none applies the step stays unset rather than guessed.
func resolveErrorStep(run *Run, payloadStep string) string {
	if run.ErrorStep != "" {
		return run.ErrorStep
	}
	if payloadStep != "" {
		return payloadStep
	}
	if run.Status != StatusError {
		return ""
	}
	if m := stepToken.FindStringSubmatch(run.Message); m != nil {
		return m[1]
	}
	return ""
}

// StepLabel returns the display label for a step id. Known ids come from a
// fixed table; unknown ids are humanized (underscores to spaces, words
// title-cased) so a new runtime step still renders readably.
func StepLabel(id string) string {
	if label, ok := stepLabels[id]; ok {
		return label
	}
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
