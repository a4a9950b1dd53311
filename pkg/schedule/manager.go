package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quadrabot/quadra/pkg/runlog"
	"github.com/quadrabot/quadra/pkg/trigger"
)

// Filter defines filter criteria for listing schedules
type Filter struct {
	// Active filters by active flag when set
	Active *bool
}

// Manager defines the interface for schedule management
type Manager interface {
	// Create creates a new schedule
	Create(ctx context.Context, s *Schedule) error

	// Get retrieves a schedule by ID
	Get(ctx context.Context, id string) (*Schedule, error)

	// List retrieves schedules matching the filter
	List(ctx context.Context, filter Filter) ([]*Schedule, error)

	// Update updates an existing schedule
	Update(ctx context.Context, s *Schedule) error

	// Delete removes a schedule by ID
	Delete(ctx context.Context, id string) error

	// GetDueSchedules returns schedules whose main trigger is due
	GetDueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error)

	// GetDuePreflights returns schedules whose pre-check is due
	GetDuePreflights(ctx context.Context, now time.Time) ([]*Schedule, error)

	// RecordRun persists a run record and bumps the schedule's run count
	RecordRun(ctx context.Context, run *runlog.Run) error

	// AdvanceTriggers recomputes and persists the schedule's next trigger
	// and pre-check instants after an execution
	AdvanceTriggers(ctx context.Context, s *Schedule, now time.Time) error

	// GetRun retrieves a run record by ID
	GetRun(ctx context.Context, id string) (*runlog.Run, error)

	// ListRuns retrieves run records, newest first; scheduleID "" means all
	ListRuns(ctx context.Context, scheduleID string) ([]*runlog.Run, error)
}

// StoreManager implements Manager on top of a Store.
type StoreManager struct {
	store Store
	// clock is swapped in tests for deterministic next-trigger math
	clock func() time.Time
}

// NewManager creates a StoreManager backed by the given store.
func NewManager(store Store) *StoreManager {
	return &StoreManager{store: store, clock: time.Now}
}

// NewManagerWithClock creates a StoreManager with an injected clock.
func NewManagerWithClock(store Store, clock func() time.Time) *StoreManager {
	return &StoreManager{store: store, clock: clock}
}

// Create validates the schedule, assigns identity and timestamps, computes
// the first trigger instants, and persists it.
func (m *StoreManager) Create(_ context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if err := s.Validate(); err != nil {
		return err
	}

	now := m.clock()
	s.CreatedAt = now
	s.UpdatedAt = now

	if err := m.computeNext(s, now); err != nil {
		return err
	}
	return m.store.SaveSchedule(s)
}

// Get retrieves a schedule by ID.
func (m *StoreManager) Get(_ context.Context, id string) (*Schedule, error) {
	return m.store.LoadSchedule(id)
}

// List retrieves schedules matching the filter, sorted by creation time.
func (m *StoreManager) List(_ context.Context, filter Filter) ([]*Schedule, error) {
	schedules, err := m.store.LoadSchedules()
	if err != nil {
		return nil, err
	}

	filtered := make([]*Schedule, 0, len(schedules))
	for _, s := range schedules {
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		filtered = append(filtered, s)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered, nil
}

// Update validates and persists schedule changes, recomputing the next
// trigger instants from the (possibly changed) cron expression.
func (m *StoreManager) Update(_ context.Context, s *Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, err := m.store.LoadSchedule(s.ID); err != nil {
		return err
	}

	now := m.clock()
	s.UpdatedAt = now
	if err := m.computeNext(s, now); err != nil {
		return err
	}
	return m.store.SaveSchedule(s)
}

// Delete removes a schedule by ID.
func (m *StoreManager) Delete(_ context.Context, id string) error {
	if _, err := m.store.LoadSchedule(id); err != nil {
		return err
	}
	return m.store.DeleteSchedule(id)
}

// GetDueSchedules returns schedules whose main trigger is due.
func (m *StoreManager) GetDueSchedules(_ context.Context, now time.Time) ([]*Schedule, error) {
	schedules, err := m.store.LoadSchedules()
	if err != nil {
		return nil, err
	}
	due := make([]*Schedule, 0)
	for _, s := range schedules {
		if s.IsDue(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

// GetDuePreflights returns schedules whose pre-check is due.
func (m *StoreManager) GetDuePreflights(_ context.Context, now time.Time) ([]*Schedule, error) {
	schedules, err := m.store.LoadSchedules()
	if err != nil {
		return nil, err
	}
	due := make([]*Schedule, 0)
	for _, s := range schedules {
		if s.IsPreflightDue(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

// RecordRun persists a run record. When the run belongs to a schedule the
// schedule's run count is bumped as well.
func (m *StoreManager) RecordRun(_ context.Context, run *runlog.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if err := m.store.SaveRun(run); err != nil {
		return err
	}

	if run.ScheduleID == "" {
		return nil
	}
	s, err := m.store.LoadSchedule(run.ScheduleID)
	if err != nil {
		// Ad-hoc runs may reference a deleted schedule; the run record
		// itself is already saved.
		return nil
	}
	s.RunCount++
	s.UpdatedAt = m.clock()
	return m.store.SaveSchedule(s)
}

// AdvanceTriggers moves the schedule past an executed occurrence. The
// schedule is reloaded first so a run-count bump recorded in the meantime
// survives the save. A one-time schedule deactivates; recurring schedules
// step forward by their own frequency, anchored at the fired occurrence,
// since the weekly cron expression alone cannot express biweekly or monthly
// gaps.
func (m *StoreManager) AdvanceTriggers(_ context.Context, s *Schedule, now time.Time) error {
	fresh, err := m.store.LoadSchedule(s.ID)
	if err != nil {
		return err
	}

	if fresh.Frequency == trigger.FrequencyOnce {
		fresh.Active = false
		fresh.NextTriggerAt = nil
		fresh.NextPreflightAt = nil
	} else {
		fired := now.Truncate(time.Minute)
		if fresh.NextTriggerAt != nil && !fresh.NextTriggerAt.After(now) {
			fired = *fresh.NextTriggerAt
		}
		trig, err := fresh.Trigger()
		if err != nil {
			return err
		}
		occurrences, err := trigger.Expand(trig, fresh.Frequency, 2, fired)
		if err != nil {
			return fmt.Errorf("failed to compute next trigger: %w", err)
		}
		// The fired minute itself cannot match again; a later first match
		// means the anchor was off-cycle and is taken as-is.
		next := occurrences[1].TriggerAt
		if occurrences[0].TriggerAt.After(fired) {
			next = occurrences[0].TriggerAt
		}
		fresh.NextTriggerAt = &next
		if err := m.setPreflight(fresh, next, now); err != nil {
			return err
		}
	}
	fresh.UpdatedAt = m.clock()
	*s = *fresh
	return m.store.SaveSchedule(fresh)
}

// computeNext fills NextTriggerAt and NextPreflightAt from now.
func (m *StoreManager) computeNext(s *Schedule, now time.Time) error {
	next, err := s.NextTrigger(now)
	if err != nil {
		return fmt.Errorf("failed to compute next trigger: %w", err)
	}
	s.NextTriggerAt = &next
	return m.setPreflight(s, next, now)
}

// setPreflight recomputes NextPreflightAt for the given main trigger.
func (m *StoreManager) setPreflight(s *Schedule, next, now time.Time) error {
	s.NextPreflightAt = nil
	if !s.Preflight.Enabled {
		return nil
	}
	pre, err := trigger.PreflightAt(next, s.Preflight.LeadHours)
	if err != nil {
		return fmt.Errorf("failed to compute pre-flight instant: %w", err)
	}
	// A pre-check already in the past is skipped for this occurrence
	// rather than fired late.
	if pre.After(now) {
		s.NextPreflightAt = &pre
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (m *StoreManager) GetRun(_ context.Context, id string) (*runlog.Run, error) {
	return m.store.LoadRun(id)
}

// ListRuns retrieves run records, newest first.
func (m *StoreManager) ListRuns(_ context.Context, scheduleID string) ([]*runlog.Run, error) {
	return m.store.LoadRuns(scheduleID)
}
