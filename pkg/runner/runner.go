// Package runner holds the execution side of the worker's runner port.
// The production reservation transport is an external runtime; what lives
// here is the simulated pipeline used for dry runs, manual test triggers,
// and worker tests. It produces the same step log shape the real runtime
// writes, so the interpreter and reducer exercise identical code paths.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quadrabot/quadra/pkg/flow"
	"github.com/quadrabot/quadra/pkg/runlog"
	"github.com/quadrabot/quadra/pkg/schedule"
)

// SimRunner simulates the reservation pipeline step by step.
type SimRunner struct {
	// FailAt aborts the simulated pipeline at the named step, for
	// exercising error paths.
	FailAt string
	// clock is swapped in tests
	clock func() time.Time
}

// NewSimRunner creates a SimRunner.
func NewSimRunner() *SimRunner {
	return &SimRunner{clock: time.Now}
}

// SetClock swaps the runner's clock, for deterministic tests.
func (r *SimRunner) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Execute walks the flow catalog for the job's kind, logging one entry per
// pipeline step. The notification and terminal steps are the worker's
// responsibility and are not logged here.
func (r *SimRunner) Execute(_ context.Context, job schedule.Job) (*runlog.Run, error) {
	kind := job.Kind
	if job.IsTest && kind == runlog.KindReservation {
		kind = runlog.KindTest
	}

	steps, ok := flow.Catalog(kind)
	if !ok {
		return nil, fmt.Errorf("no pipeline defined for run kind %q", kind)
	}

	run := &runlog.Run{
		ScheduleID: job.Schedule.ID,
		Kind:       kind,
		Status:     runlog.StatusSuccess,
		ExecutedAt: r.clock(),
		IsTest:     job.IsTest,
		TestHour:   job.TestHour,
	}

	request := map[string]any{
		"schedule_id":   job.Schedule.ID,
		"slot_ref":      job.Schedule.SlotRef,
		"scheduled_for": job.ScheduledFor,
		"is_test":       job.IsTest,
	}
	run.RequestPayload, _ = json.Marshal(request)

	for _, step := range steps {
		if step.ID == flow.NotificationStepID || step.ID == "finish" {
			continue
		}
		if step.ID == "test_mode" && !job.IsTest {
			// The runtime skips the marker on real runs; the reducer
			// treats the gap as implicitly completed.
			continue
		}
		if step.ID == r.FailAt {
			run.Status = runlog.StatusError
			run.Message = fmt.Sprintf("[%s] simulated failure", step.ID)
			run.ErrorStep = step.ID
			break
		}
		run.Entries = append(run.Entries, runlog.LogEntry{
			Step:      step.ID,
			Message:   step.Description,
			Timestamp: r.clock(),
		})
	}

	response := map[string]any{"simulated": true, "status": string(run.Status)}
	if run.ErrorStep != "" {
		response["step"] = run.ErrorStep
	}
	run.ResponsePayload, _ = json.Marshal(response)

	return run, nil
}
