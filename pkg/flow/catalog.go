// Package flow turns the raw step log of an automated run into a per-step
// status sequence. The catalog is the ordered list of steps a run kind is
// expected to pass through; the reducer matches observed log entries
// against it. The catalog carries only ids, ordering, and per-kind text —
// how a step is rendered is the display layer's problem.
package flow

import (
	"github.com/quadrabot/quadra/pkg/runlog"
)

// NotificationStepID is the side-effect step whose status folds into the
// terminal step instead of rendering as its own row.
const NotificationStepID = "send_notification"

// Step is one expected stage of a run kind. The same id can carry
// different description text in different kinds.
type Step struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var reservationCatalog = []Step{
	{ID: "receive_payload", Name: "Receive payload", Description: "Receiving the trigger payload from the scheduler"},
	{ID: "test_mode", Name: "Test mode", Description: "Checking for the test-mode marker"},
	{ID: "fetch_schedule", Name: "Fetch schedule", Description: "Loading the schedule configuration"},
	{ID: "fetch_refresh_token", Name: "Fetch refresh token", Description: "Loading the stored refresh token"},
	{ID: "authenticate", Name: "Authenticate", Description: "Authenticating against the reservation service"},
	{ID: "persist_refresh_token", Name: "Persist refreshed token", Description: "Saving the refreshed token"},
	{ID: "perform_reservation", Name: "Perform reservation", Description: "Submitting the reservation request"},
	{ID: "process_response", Name: "Process response", Description: "Processing the response"},
	{ID: "persist_run_log", Name: "Persist run log", Description: "Saving the execution log"},
	{ID: "persist_reservation", Name: "Persist reservation", Description: "Recording the confirmed reservation"},
	{ID: NotificationStepID, Name: "Send notification", Description: "Notifying the configured channels"},
	{ID: "finish", Name: "Finish", Description: "Run completed"},
}

// testCatalog mirrors the reservation pipeline without the schedule lookup
// and persistence steps; descriptions make the simulation explicit.
var testCatalog = []Step{
	{ID: "receive_payload", Name: "Receive payload", Description: "Receiving the dry-run payload"},
	{ID: "test_mode", Name: "Test mode", Description: "Marking the run as a test execution"},
	{ID: "fetch_refresh_token", Name: "Fetch refresh token", Description: "Loading the stored refresh token"},
	{ID: "authenticate", Name: "Authenticate", Description: "Authenticating against the reservation service"},
	{ID: "persist_refresh_token", Name: "Persist refreshed token", Description: "Saving the refreshed token"},
	{ID: "perform_reservation", Name: "Perform reservation", Description: "Simulating the reservation request"},
	{ID: "process_response", Name: "Process response", Description: "Processing the simulated response"},
	{ID: NotificationStepID, Name: "Send notification", Description: "Notifying the configured channels"},
	{ID: "finish", Name: "Finish", Description: "Dry run completed"},
}

var preflightCatalog = []Step{
	{ID: "init", Name: "Initialize", Description: "Starting the credential pre-check"},
	{ID: "fetch_refresh_token", Name: "Fetch refresh token", Description: "Loading the stored refresh token"},
	{ID: "authenticate", Name: "Authenticate", Description: "Authenticating against the reservation service"},
	{ID: "persist_refresh_token", Name: "Persist refreshed token", Description: "Saving the refreshed token"},
	{ID: NotificationStepID, Name: "Send notification", Description: "Reporting the pre-check outcome"},
	{ID: "finish", Name: "Finish", Description: "Pre-check completed"},
}

// Catalog returns the ordered expected steps for a run kind. Kinds without
// a fixed pipeline (testToken, autoCancel) return ok=false; their display
// sequence is derived from the observed log instead.
func Catalog(kind runlog.Kind) ([]Step, bool) {
	switch kind {
	case runlog.KindReservation:
		return reservationCatalog, true
	case runlog.KindTest:
		return testCatalog, true
	case runlog.KindPreflight:
		return preflightCatalog, true
	default:
		return nil, false
	}
}
