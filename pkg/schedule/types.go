// Package schedule manages user-defined recurring reservation attempts:
// the schedule entity, its derived cron trigger, the manager that persists
// it, and the worker that executes due schedules through a runner port.
package schedule

import (
	"time"

	"github.com/quadrabot/quadra/pkg/cronexpr"
	"github.com/quadrabot/quadra/pkg/trigger"
	"github.com/quadrabot/quadra/pkg/tz"
)

// PreflightConfig is the optional credential pre-check that runs ahead of
// the main trigger.
type PreflightConfig struct {
	// Enabled turns the pre-check on for the schedule.
	Enabled bool `json:"enabled"`
	// LeadHours is how many hours before the main trigger the pre-check
	// fires. Must be positive when Enabled.
	LeadHours int `json:"hours_before"`
	// NotifyOnSuccess sends a notification when the pre-check passes.
	NotifyOnSuccess bool `json:"notify_on_success"`
	// NotifyOnFailure sends a notification when the pre-check fails.
	NotifyOnFailure bool `json:"notify_on_failure"`
}

// Schedule is a recurring automated reservation attempt.
type Schedule struct {
	// ID is the unique identifier for the schedule
	ID string `json:"id"`
	// Name is a human-readable name for the schedule
	Name string `json:"name"`
	// SlotRef identifies the court/time slot the schedule books
	SlotRef string `json:"slot_ref"`

	// ReservationWeekday is the weekday of the target slot (Sunday=0).
	// Configured directly in reservation-relative mode, derived from
	// TriggerDatetime in explicit-datetime mode.
	ReservationWeekday time.Weekday `json:"reservation_day_of_week"`

	// TriggerMode selects how the trigger instant is obtained
	TriggerMode trigger.Mode `json:"trigger_mode"`

	// TriggerWeekday and TriggerTime are the storage-timezone firing
	// point, derived via ApplyTrigger. The stored weekday can legitimately
	// differ from the local one when the offset crosses midnight.
	TriggerWeekday time.Weekday      `json:"trigger_day_of_week"`
	TriggerTime    trigger.TimeOfDay `json:"trigger_time"`

	// TriggerDatetime is the absolute instant (storage timezone) used in
	// explicit-datetime mode
	TriggerDatetime *time.Time `json:"trigger_datetime,omitempty"`

	// Frequency is how often the schedule repeats
	Frequency trigger.Frequency `json:"frequency"`

	// CronExpr is the derived scheduler cron string, persisted for the
	// external trigger subsystem
	CronExpr string `json:"cron_expression"`

	// Active indicates whether the schedule will fire
	Active bool `json:"is_active"`

	// Preflight is the optional pre-check sub-record
	Preflight PreflightConfig `json:"preflight"`

	// RefreshToken authenticates against the reservation service.
	// Storage backends encrypt it at rest.
	RefreshToken string `json:"refresh_token,omitempty"`

	// NextTriggerAt is the calculated next firing instant
	NextTriggerAt *time.Time `json:"next_trigger_at,omitempty"`
	// NextPreflightAt is the calculated next pre-check instant
	NextPreflightAt *time.Time `json:"next_preflight_at,omitempty"`

	// RunCount is the total number of recorded runs
	RunCount int `json:"run_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyTrigger fills the derived trigger fields (weekday, time, cron
// expression, and in explicit mode the reservation weekday) from the
// configured mode. localTime is the civil fire time and is only consulted
// in reservation-relative mode.
func (s *Schedule) ApplyTrigger(localTime trigger.TimeOfDay) error {
	var trig trigger.Trigger

	switch s.TriggerMode {
	case trigger.ModeReservationRelative:
		t, err := trigger.Compute(s.ReservationWeekday, localTime)
		if err != nil {
			return ErrInvalidSchedule{Field: "reservation_day_of_week", Message: err.Error()}
		}
		trig = t
	case trigger.ModeExplicitDatetime:
		if s.TriggerDatetime == nil {
			return ErrInvalidSchedule{Field: "trigger_datetime", Message: "required in explicit-datetime mode"}
		}
		trig = trigger.ComputeFromInstant(*s.TriggerDatetime)
		s.ReservationWeekday = trig.ReservationWeekday()
	default:
		return ErrInvalidSchedule{Field: "trigger_mode", Message: "unknown mode"}
	}

	s.TriggerWeekday = trig.StoredWeekday
	s.TriggerTime = trig.StoredTime

	expr, err := cronexpr.Encode(trig.StoredWeekday, trig.StoredTime.Hour, trig.StoredTime.Minute)
	if err != nil {
		return ErrInvalidSchedule{Field: "trigger_time", Message: err.Error()}
	}
	s.CronExpr = expr
	return nil
}

// Trigger reconstructs the trigger calculation from the persisted fields,
// for previews and validation.
func (s *Schedule) Trigger() (trigger.Trigger, error) {
	if s.TriggerMode == trigger.ModeExplicitDatetime {
		if s.TriggerDatetime == nil {
			return trigger.Trigger{}, ErrInvalidSchedule{Field: "trigger_datetime", Message: "required in explicit-datetime mode"}
		}
		return trigger.ComputeFromInstant(*s.TriggerDatetime), nil
	}
	local := trigger.TimeOfDay{Hour: tz.ToLocal(s.TriggerTime.Hour), Minute: s.TriggerTime.Minute}
	return trigger.Compute(s.ReservationWeekday, local)
}

// NextTrigger decodes the persisted cron expression and returns the first
// matching instant on/after now. A malformed expression is a hard error;
// it must never silently collapse to "fire now".
func (s *Schedule) NextTrigger(now time.Time) (time.Time, error) {
	expr, err := cronexpr.Decode(s.CronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return expr.Next(now), nil
}

// Preview returns the next count (trigger, reservation) pairs for display.
func (s *Schedule) Preview(count int, now time.Time) ([]trigger.Occurrence, error) {
	trig, err := s.Trigger()
	if err != nil {
		return nil, err
	}
	return trigger.Expand(trig, s.Frequency, count, now)
}

// IsDue checks if the schedule's main trigger is due at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Active || s.NextTriggerAt == nil {
		return false
	}
	return !now.Before(*s.NextTriggerAt)
}

// IsPreflightDue checks if the credential pre-check is due.
func (s *Schedule) IsPreflightDue(now time.Time) bool {
	if !s.Active || !s.Preflight.Enabled || s.NextPreflightAt == nil {
		return false
	}
	return !now.Before(*s.NextPreflightAt)
}

// Validate checks if the schedule is consistent.
func (s *Schedule) Validate() error {
	if s.ID == "" {
		return ErrInvalidSchedule{Field: "id", Message: "id is required"}
	}
	if s.Name == "" {
		return ErrInvalidSchedule{Field: "name", Message: "name is required"}
	}
	if !s.Frequency.Valid() {
		return ErrInvalidSchedule{Field: "frequency", Message: "unknown frequency"}
	}

	switch s.TriggerMode {
	case trigger.ModeReservationRelative:
		if s.ReservationWeekday < time.Sunday || s.ReservationWeekday > time.Saturday {
			return ErrInvalidSchedule{Field: "reservation_day_of_week", Message: "out of range"}
		}
		trig, err := s.Trigger()
		if err != nil {
			return ErrInvalidSchedule{Field: "trigger_time", Message: err.Error()}
		}
		if trig.StoredWeekday != s.TriggerWeekday || trig.StoredTime != s.TriggerTime {
			return ErrInvalidSchedule{Field: "trigger_day_of_week", Message: "trigger fields do not match the reservation weekday"}
		}
	case trigger.ModeExplicitDatetime:
		if s.TriggerDatetime == nil {
			return ErrInvalidSchedule{Field: "trigger_datetime", Message: "required in explicit-datetime mode"}
		}
		if s.ReservationWeekday != trigger.ComputeFromInstant(*s.TriggerDatetime).ReservationWeekday() {
			return ErrInvalidSchedule{Field: "reservation_day_of_week", Message: "does not match the trigger datetime"}
		}
	default:
		return ErrInvalidSchedule{Field: "trigger_mode", Message: "unknown mode"}
	}

	if s.Preflight.Enabled && s.Preflight.LeadHours <= 0 {
		return ErrInvalidSchedule{Field: "preflight.hours_before", Message: "must be positive when pre-flight is enabled"}
	}
	return nil
}

// ErrInvalidSchedule represents a validation error
type ErrInvalidSchedule struct {
	Field   string
	Message string
}

func (e ErrInvalidSchedule) Error() string {
	return "invalid schedule: " + e.Field + ": " + e.Message
}

// ErrScheduleNotFound is returned when a schedule is not found
type ErrScheduleNotFound struct {
	ID string
}

func (e ErrScheduleNotFound) Error() string {
	return "schedule not found: " + e.ID
}

// ErrRunNotFound is returned when a run record is not found
type ErrRunNotFound struct {
	ID string
}

func (e ErrRunNotFound) Error() string {
	return "run not found: " + e.ID
}
