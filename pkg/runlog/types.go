// Package runlog defines the persisted record of a single automated run and
// the interpreter that normalizes raw records for display and auditing. The
// step identifiers inside a record form the wire contract with the external
// execution runtime: the runtime writes them, this package reads them, and
// renaming one is a breaking migration.
package runlog

import (
	"encoding/json"
	"time"
)

// Kind identifies what sort of automated run produced a record.
type Kind string

const (
	KindReservation Kind = "reservation"
	KindPreflight   Kind = "preflight"
	KindTest        Kind = "test"
	KindTestToken   Kind = "testToken"
	KindAutoCancel  Kind = "autoCancel"
)

// Status is the overall outcome of a run. A run is immutable once the
// status leaves StatusPending.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// LogEntry is one timestamped step record written by the runtime. Entries
// are append-only and never rewritten.
type LogEntry struct {
	Step      string         `json:"step"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Run is a persisted execution attempt.
type Run struct {
	ID         string `json:"id"`
	ScheduleID string `json:"schedule_id,omitempty"`

	Kind    Kind   `json:"execution_type"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	// ErrorStep is the step the run failed at, when the runtime recorded
	// it explicitly. The interpreter infers it otherwise.
	ErrorStep string `json:"error_step,omitempty"`

	Entries []LogEntry `json:"flow_steps,omitempty"`

	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
	DurationMS int64     `json:"duration_ms"`

	IsTest   bool   `json:"is_test"`
	TestHour string `json:"test_hour,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}
