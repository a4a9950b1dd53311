package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrabot/quadra/pkg/flow"
	"github.com/quadrabot/quadra/pkg/runlog"
)

type fakeRunner struct {
	err   error
	fail  bool
	calls []Job
}

func (f *fakeRunner) Execute(_ context.Context, job Job) (*runlog.Run, error) {
	f.calls = append(f.calls, job)
	if f.err != nil {
		return nil, f.err
	}

	kind := job.Kind
	if job.IsTest && kind == runlog.KindReservation {
		kind = runlog.KindTest
	}
	run := &runlog.Run{
		Kind:   kind,
		Status: runlog.StatusSuccess,
		IsTest: job.IsTest,
		Entries: []runlog.LogEntry{
			{Step: "receive_payload", Timestamp: job.ScheduledFor},
			{Step: "authenticate", Timestamp: job.ScheduledFor},
		},
	}
	if f.fail {
		run.Status = runlog.StatusError
		run.Message = "[authenticate] token expired"
		run.ErrorStep = "authenticate"
	}
	return run, nil
}

type fakeNotifier struct {
	outcome NotificationOutcome
	titles  []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, _ string) NotificationOutcome {
	f.titles = append(f.titles, title)
	return f.outcome
}

func notificationEntry(t *testing.T, run *runlog.Run) runlog.LogEntry {
	t.Helper()
	for _, e := range run.Entries {
		if e.Step == flow.NotificationStepID {
			return e
		}
	}
	t.Fatal("no notification entry on run")
	return runlog.LogEntry{}
}

// newTestWorker builds a worker and manager sharing one movable clock, so
// tests can jump both to a trigger instant at once.
func newTestWorker(runner Runner, notifier Notifier) (*Worker, *StoreManager, *time.Time) {
	store := newMemStore()
	now := new(time.Time)
	*now = managerNow
	clock := func() time.Time { return *now }

	manager := NewManagerWithClock(store, clock)
	w := NewWorker(manager, runner, notifier, DefaultWorkerConfig())
	w.SetClock(clock)
	return w, manager, now
}

func TestProcessSchedulesExecutesDue(t *testing.T) {
	run := &fakeRunner{}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, now := newTestWorker(run, notifier)
	ctx := context.Background()

	s := newSchedule()
	require.NoError(t, manager.Create(ctx, s))
	due := *s.NextTriggerAt
	*now = due

	w.ProcessSchedules(ctx)

	require.Len(t, run.calls, 1)
	assert.Equal(t, runlog.KindReservation, run.calls[0].Kind)
	assert.Equal(t, due, run.calls[0].ScheduledFor)

	runs, err := manager.ListRuns(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runlog.StatusSuccess, runs[0].Status)

	// Successful runs get notification and terminal entries appended
	entry := notificationEntry(t, runs[0])
	assert.Equal(t, map[string]any{"sent": true}, entry.Details)
	last := runs[0].Entries[len(runs[0].Entries)-1]
	assert.Equal(t, "finish", last.Step)

	// The trigger advanced one week
	got, err := manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, due.AddDate(0, 0, 7), *got.NextTriggerAt)
}

func TestProcessSchedulesNothingDue(t *testing.T) {
	run := &fakeRunner{}
	w, manager, _ := newTestWorker(run, &fakeNotifier{})
	ctx := context.Background()

	s := newSchedule()
	require.NoError(t, manager.Create(ctx, s))

	// managerNow is before the first trigger
	w.ProcessSchedules(ctx)
	assert.Empty(t, run.calls)
}

func TestProcessSchedulesPreflight(t *testing.T) {
	run := &fakeRunner{}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, now := newTestWorker(run, notifier)
	ctx := context.Background()

	s := newSchedule()
	s.Preflight = PreflightConfig{Enabled: true, LeadHours: 12, NotifyOnSuccess: true, NotifyOnFailure: true}
	require.NoError(t, manager.Create(ctx, s))
	preAt := *s.NextPreflightAt
	*now = preAt

	w.ProcessSchedules(ctx)

	require.Len(t, run.calls, 1)
	assert.Equal(t, runlog.KindPreflight, run.calls[0].Kind)

	// The fired pre-check drops out until the main trigger advances, and
	// the run recorded for it stays counted.
	got, err := manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextPreflightAt)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, preAt.Add(12*time.Hour), *got.NextTriggerAt, "main trigger unchanged by the pre-check")
	assert.Equal(t, 1, got.RunCount)
}

func TestPreflightNotificationPolicy(t *testing.T) {
	run := &fakeRunner{}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, now := newTestWorker(run, notifier)
	ctx := context.Background()

	// Success outcome with NotifyOnSuccess disabled: no delivery
	s := newSchedule()
	s.Preflight = PreflightConfig{Enabled: true, LeadHours: 12, NotifyOnSuccess: false, NotifyOnFailure: true}
	require.NoError(t, manager.Create(ctx, s))
	preAt := *s.NextPreflightAt
	*now = preAt

	w.ProcessSchedules(ctx)

	assert.Empty(t, notifier.titles)
	runs, err := manager.ListRuns(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	entry := notificationEntry(t, runs[0])
	assert.Equal(t, map[string]any{"enabled": false}, entry.Details)
}

func TestPreflightFailureNotifies(t *testing.T) {
	run := &fakeRunner{fail: true}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, now := newTestWorker(run, notifier)
	ctx := context.Background()

	s := newSchedule()
	s.Preflight = PreflightConfig{Enabled: true, LeadHours: 12, NotifyOnSuccess: false, NotifyOnFailure: true}
	require.NoError(t, manager.Create(ctx, s))
	preAt := *s.NextPreflightAt
	*now = preAt

	w.ProcessSchedules(ctx)

	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "Credential pre-check", notifier.titles[0])
}

func TestRunnerFailureSynthesizesRun(t *testing.T) {
	run := &fakeRunner{err: fmt.Errorf("runtime unreachable")}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, now := newTestWorker(run, notifier)
	ctx := context.Background()

	s := newSchedule()
	require.NoError(t, manager.Create(ctx, s))
	due := *s.NextTriggerAt
	*now = due

	w.ProcessSchedules(ctx)

	runs, err := manager.ListRuns(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runlog.StatusError, runs[0].Status)
	assert.Equal(t, "runtime unreachable", runs[0].Message)
	assert.Equal(t, s.ID, runs[0].ScheduleID)

	// Failures still notify, but no finish entry is appended
	require.Len(t, notifier.titles, 1)
	last := runs[0].Entries[len(runs[0].Entries)-1]
	assert.Equal(t, flow.NotificationStepID, last.Step)
}

func TestNoNotifierConfigured(t *testing.T) {
	run := &fakeRunner{}
	w, manager, now := newTestWorker(run, nil)
	ctx := context.Background()

	s := newSchedule()
	require.NoError(t, manager.Create(ctx, s))
	due := *s.NextTriggerAt
	*now = due

	w.ProcessSchedules(ctx)

	runs, err := manager.ListRuns(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	entry := notificationEntry(t, runs[0])
	assert.Equal(t, map[string]any{"configured": false}, entry.Details)
}

func TestTriggerNowDoesNotAdvance(t *testing.T) {
	run := &fakeRunner{}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, _ := newTestWorker(run, notifier)
	ctx := context.Background()

	s := newSchedule()
	require.NoError(t, manager.Create(ctx, s))
	before := *s.NextTriggerAt

	rec, err := w.TriggerNow(ctx, s, runlog.KindTest, true)
	require.NoError(t, err)
	assert.Equal(t, runlog.KindTest, rec.Kind)
	assert.True(t, rec.IsTest)

	got, err := manager.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextTriggerAt)
	assert.Equal(t, before, *got.NextTriggerAt)
	assert.Equal(t, 1, got.RunCount)
}

func TestWorkerStartStop(t *testing.T) {
	run := &fakeRunner{}
	w, _, _ := newTestWorker(run, &fakeNotifier{})
	w.config.CheckInterval = 10 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	// Start is idempotent
	require.NoError(t, w.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	// Stop is idempotent too
	w.Stop()
}

func TestAdvancePastFiredMinute(t *testing.T) {
	run := &fakeRunner{}
	notifier := &fakeNotifier{outcome: NotificationOutcome{Sent: true, Configured: true}}
	w, manager, now := newTestWorker(run, notifier)
	ctx := context.Background()

	s := newSchedule()
	require.NoError(t, manager.Create(ctx, s))
	due := *s.NextTriggerAt
	*now = due

	// Firing twice in the same minute must not re-execute the occurrence
	w.ProcessSchedules(ctx)
	w.ProcessSchedules(ctx)

	runs, err := manager.ListRuns(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNotificationTextKinds(t *testing.T) {
	s := newSchedule()
	okRun := &runlog.Run{Status: runlog.StatusSuccess}

	title, body := notificationText(Job{Schedule: s, Kind: runlog.KindReservation}, okRun)
	assert.Equal(t, "Reservation attempt", title)
	assert.Contains(t, body, s.Name)

	title, _ = notificationText(Job{Schedule: s, Kind: runlog.KindPreflight}, okRun)
	assert.Equal(t, "Credential pre-check", title)

	failed := &runlog.Run{Status: runlog.StatusError, Message: "token expired"}
	title, body = notificationText(Job{Schedule: s, Kind: runlog.KindTest}, failed)
	assert.Equal(t, "Dry run", title)
	assert.Contains(t, body, "token expired")
}
