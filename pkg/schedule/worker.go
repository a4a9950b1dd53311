package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/quadrabot/quadra/pkg/flow"
	"github.com/quadrabot/quadra/pkg/runlog"
)

// Job is one execution request handed to the runner port.
type Job struct {
	// Schedule is the schedule being executed
	Schedule *Schedule
	// Kind is the run kind to execute
	Kind runlog.Kind
	// ScheduledFor is the instant the trigger was due
	ScheduledFor time.Time
	// IsTest marks a dry run that must not touch real reservations
	IsTest bool
	// TestHour overrides the slot hour for dry runs
	TestHour string
}

// Runner executes a job and produces its run record with the pipeline step
// log. The real reservation transport lives behind this port; the worker
// never talks to the reservation service itself.
type Runner interface {
	Execute(ctx context.Context, job Job) (*runlog.Run, error)
}

// NotificationOutcome is what a notification attempt reported back. It is
// recorded verbatim on the run's notification step so the log interpreter
// can fold it into the terminal step.
type NotificationOutcome struct {
	Sent       bool
	Configured bool
	Error      string
}

// Notifier delivers run-outcome notifications.
type Notifier interface {
	Notify(ctx context.Context, title, body string) NotificationOutcome
}

// WorkerConfig contains configuration for the schedule worker
type WorkerConfig struct {
	// CheckInterval is how often to check for due schedules
	CheckInterval time.Duration
	// Enabled indicates whether the worker should run
	Enabled bool
}

// DefaultWorkerConfig returns the default worker configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		CheckInterval: 30 * time.Second,
		Enabled:       true,
	}
}

// Worker fires due schedules and their pre-checks.
type Worker struct {
	manager  Manager
	runner   Runner
	notifier Notifier
	config   WorkerConfig
	clock    func() time.Time

	// Internal state
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewWorker creates a new schedule worker.
func NewWorker(manager Manager, runner Runner, notifier Notifier, config WorkerConfig) *Worker {
	return &Worker{
		manager:  manager,
		runner:   runner,
		notifier: notifier,
		config:   config,
		clock:    time.Now,
		stopCh:   make(chan struct{}),
	}
}

// SetClock swaps the worker's clock, for deterministic tests.
func (w *Worker) SetClock(clock func() time.Time) {
	w.clock = clock
}

// Start begins the worker loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Printf("[SCHEDULE_WORKER] Started with check interval %v", w.config.CheckInterval)
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	log.Printf("[SCHEDULE_WORKER] Stopped")
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.ProcessSchedules(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SCHEDULE_WORKER] Context cancelled, stopping")
			return
		case <-w.stopCh:
			log.Printf("[SCHEDULE_WORKER] Stop signal received")
			return
		case <-ticker.C:
			w.ProcessSchedules(ctx)
		}
	}
}

// ProcessSchedules executes due pre-checks and due main triggers once.
func (w *Worker) ProcessSchedules(ctx context.Context) {
	now := w.clock()

	// Pre-checks first: they always precede the main trigger they guard.
	preflights, err := w.manager.GetDuePreflights(ctx, now)
	if err != nil {
		log.Printf("[SCHEDULE_WORKER] Failed to get due pre-checks: %v", err)
	} else {
		for _, s := range preflights {
			w.executePreflight(ctx, s)
		}
	}

	due, err := w.manager.GetDueSchedules(ctx, now)
	if err != nil {
		log.Printf("[SCHEDULE_WORKER] Failed to get due schedules: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("[SCHEDULE_WORKER] Found %d due schedules", len(due))

	for _, s := range due {
		w.executeSchedule(ctx, s)
	}
}

// executeSchedule fires the main reservation attempt for a schedule.
func (w *Worker) executeSchedule(ctx context.Context, s *Schedule) {
	log.Printf("[SCHEDULE_WORKER] Executing schedule %s (%s)", s.ID, s.Name)

	scheduledFor := w.clock()
	if s.NextTriggerAt != nil {
		scheduledFor = *s.NextTriggerAt
	}

	run := w.runJob(ctx, Job{
		Schedule:     s,
		Kind:         runlog.KindReservation,
		ScheduledFor: scheduledFor,
	})

	if err := w.manager.RecordRun(ctx, run); err != nil {
		log.Printf("[SCHEDULE_WORKER] Failed to record run for schedule %s: %v", s.ID, err)
	}
	if err := w.manager.AdvanceTriggers(ctx, s, w.clock()); err != nil {
		log.Printf("[SCHEDULE_WORKER] Failed to advance triggers for schedule %s: %v", s.ID, err)
	}
}

// executePreflight fires the credential pre-check for a schedule.
func (w *Worker) executePreflight(ctx context.Context, s *Schedule) {
	log.Printf("[SCHEDULE_WORKER] Executing pre-check for schedule %s (%s)", s.ID, s.Name)

	scheduledFor := w.clock()
	if s.NextPreflightAt != nil {
		scheduledFor = *s.NextPreflightAt
	}

	run := w.runJob(ctx, Job{
		Schedule:     s,
		Kind:         runlog.KindPreflight,
		ScheduledFor: scheduledFor,
	})

	if err := w.manager.RecordRun(ctx, run); err != nil {
		log.Printf("[SCHEDULE_WORKER] Failed to record pre-check run for schedule %s: %v", s.ID, err)
	}
	// Update recomputes the next instants; the just-fired pre-check is in
	// the past now and drops out until the main trigger advances. Reload
	// first so RecordRun's run-count bump is not overwritten.
	if fresh, err := w.manager.Get(ctx, s.ID); err == nil {
		s = fresh
	}
	if err := w.manager.Update(ctx, s); err != nil {
		log.Printf("[SCHEDULE_WORKER] Failed to update schedule %s after pre-check: %v", s.ID, err)
	}
}

// TriggerNow executes a schedule synchronously, for the manual trigger
// endpoint. Dry runs do not advance the schedule's triggers.
func (w *Worker) TriggerNow(ctx context.Context, s *Schedule, kind runlog.Kind, isTest bool) (*runlog.Run, error) {
	run := w.runJob(ctx, Job{
		Schedule:     s,
		Kind:         kind,
		ScheduledFor: w.clock(),
		IsTest:       isTest,
	})
	if err := w.manager.RecordRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// runJob executes one job through the runner, appends the notification and
// terminal entries, and returns the finished record.
func (w *Worker) runJob(ctx context.Context, job Job) *runlog.Run {
	started := w.clock()

	run, err := w.runner.Execute(ctx, job)
	if err != nil {
		log.Printf("[SCHEDULE_WORKER] Runner failed for schedule %s: %v", job.Schedule.ID, err)
		run = &runlog.Run{
			ScheduleID: job.Schedule.ID,
			Kind:       job.Kind,
			Status:     runlog.StatusError,
			Message:    err.Error(),
			ExecutedAt: started,
			IsTest:     job.IsTest,
		}
	}
	run.ScheduleID = job.Schedule.ID
	if run.ExecutedAt.IsZero() {
		run.ExecutedAt = started
	}
	run.DurationMS = w.clock().Sub(started).Milliseconds()

	w.appendNotification(ctx, job, run)
	if run.Status == runlog.StatusSuccess {
		run.Entries = append(run.Entries, runlog.LogEntry{
			Step:      "finish",
			Message:   "run completed",
			Timestamp: w.clock(),
		})
	}
	return run
}

// appendNotification delivers the outcome notification and records the
// attempt as the run's notification step. The details payload is what the
// flow reducer later folds into the terminal step.
func (w *Worker) appendNotification(ctx context.Context, job Job, run *runlog.Run) {
	entry := runlog.LogEntry{
		Step:      flow.NotificationStepID,
		Timestamp: w.clock(),
	}

	if !w.notifyWanted(job, run) {
		entry.Message = "notification disabled for this outcome"
		entry.Details = map[string]any{"enabled": false}
		run.Entries = append(run.Entries, entry)
		return
	}
	if w.notifier == nil {
		entry.Message = "no notification channel configured"
		entry.Details = map[string]any{"configured": false}
		run.Entries = append(run.Entries, entry)
		return
	}

	title, body := notificationText(job, run)
	outcome := w.notifier.Notify(ctx, title, body)
	entry.Details = map[string]any{"sent": outcome.Sent}
	if outcome.Error != "" {
		entry.Message = outcome.Error
	}
	if !outcome.Configured {
		entry.Details = map[string]any{"configured": false}
	}
	run.Entries = append(run.Entries, entry)
}

// notifyWanted applies the schedule's notification policy. Pre-checks
// honor the per-outcome flags; every other kind always notifies.
func (w *Worker) notifyWanted(job Job, run *runlog.Run) bool {
	if job.Kind != runlog.KindPreflight {
		return true
	}
	if run.Status == runlog.StatusSuccess {
		return job.Schedule.Preflight.NotifyOnSuccess
	}
	return job.Schedule.Preflight.NotifyOnFailure
}

func notificationText(job Job, run *runlog.Run) (string, string) {
	title := "Reservation attempt"
	switch job.Kind {
	case runlog.KindPreflight:
		title = "Credential pre-check"
	case runlog.KindTest:
		title = "Dry run"
	}

	body := job.Schedule.Name + ": " + string(run.Status)
	if run.Message != "" {
		body += " - " + run.Message
	}
	return title, body
}
