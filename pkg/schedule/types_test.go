package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrabot/quadra/pkg/trigger"
)

func relativeSchedule(weekday time.Weekday, local trigger.TimeOfDay) *Schedule {
	s := &Schedule{
		ID:                 "sched-1",
		Name:               "Tuesday padel court",
		SlotRef:            "court-2/19:00",
		ReservationWeekday: weekday,
		TriggerMode:        trigger.ModeReservationRelative,
		Frequency:          trigger.FrequencyWeekly,
		Active:             true,
	}
	if err := s.ApplyTrigger(local); err != nil {
		panic(err)
	}
	return s
}

func TestApplyTriggerReservationRelative(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)

	// Tuesday slot books 10 days out, so the trigger sits on Saturday;
	// 00:01 local stores as 03:01 with no midnight crossing.
	assert.Equal(t, time.Saturday, s.TriggerWeekday)
	assert.Equal(t, trigger.TimeOfDay{Hour: 3, Minute: 1}, s.TriggerTime)
	assert.Equal(t, "cron(1 3 ? * SAT *)", s.CronExpr)
}

func TestApplyTriggerMidnightCrossing(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.TimeOfDay{Hour: 22, Minute: 30})

	// 22:30 local stores as 01:30 the next day, pushing the stored
	// weekday from Saturday to Sunday.
	assert.Equal(t, time.Sunday, s.TriggerWeekday)
	assert.Equal(t, trigger.TimeOfDay{Hour: 1, Minute: 30}, s.TriggerTime)
	assert.Equal(t, "cron(30 1 ? * SUN *)", s.CronExpr)
}

func TestApplyTriggerExplicitDatetime(t *testing.T) {
	// Wednesday 2024-07-10 15:00 storage time
	at := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)
	s := &Schedule{
		ID:              "sched-1",
		Name:            "One-off booking",
		TriggerMode:     trigger.ModeExplicitDatetime,
		TriggerDatetime: &at,
		Frequency:       trigger.FrequencyOnce,
		Active:          true,
	}
	require.NoError(t, s.ApplyTrigger(trigger.TimeOfDay{}))

	assert.Equal(t, time.Wednesday, s.TriggerWeekday)
	assert.Equal(t, trigger.TimeOfDay{Hour: 15, Minute: 0}, s.TriggerTime)
	assert.Equal(t, "cron(0 15 ? * WED *)", s.CronExpr)
	// The reservation lands 10 days after the trigger
	assert.Equal(t, time.Saturday, s.ReservationWeekday)

	assert.NoError(t, s.Validate())
}

func TestApplyTriggerExplicitDatetimeMissing(t *testing.T) {
	s := &Schedule{
		ID:          "sched-1",
		Name:        "broken",
		TriggerMode: trigger.ModeExplicitDatetime,
		Frequency:   trigger.FrequencyOnce,
	}
	err := s.ApplyTrigger(trigger.TimeOfDay{})
	require.Error(t, err)
	assert.IsType(t, ErrInvalidSchedule{}, err)
}

func TestValidate(t *testing.T) {
	valid := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	assert.NoError(t, valid.Validate())

	noName := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	noName.Name = ""
	assert.Error(t, noName.Validate())

	badFrequency := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	badFrequency.Frequency = "hourly"
	assert.Error(t, badFrequency.Validate())

	// Stored trigger fields must stay consistent with the reservation
	// weekday; a drifted weekday is rejected.
	drifted := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	drifted.TriggerWeekday = time.Monday
	assert.Error(t, drifted.Validate())

	badPreflight := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	badPreflight.Preflight = PreflightConfig{Enabled: true, LeadHours: 0}
	assert.Error(t, badPreflight.Validate())

	okPreflight := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	okPreflight.Preflight = PreflightConfig{Enabled: true, LeadHours: 12}
	assert.NoError(t, okPreflight.Validate())
}

func TestNextTrigger(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)

	// Monday 2024-01-01 08:00: next Saturday 03:01 is Jan 6
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	next, err := s.NextTrigger(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 6, 3, 1, 0, 0, time.UTC), next)
}

func TestNextTriggerMalformedCron(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	s.CronExpr = "0 3 * * 6"

	_, err := s.NextTrigger(time.Now())
	assert.Error(t, err, "a malformed expression must never collapse to fire-now")
}

func TestIsDue(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	at := time.Date(2024, 1, 6, 3, 1, 0, 0, time.UTC)
	s.NextTriggerAt = &at

	assert.False(t, s.IsDue(at.Add(-time.Minute)))
	assert.True(t, s.IsDue(at))
	assert.True(t, s.IsDue(at.Add(time.Minute)))

	s.Active = false
	assert.False(t, s.IsDue(at))
}

func TestIsPreflightDue(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)
	s.Preflight = PreflightConfig{Enabled: true, LeadHours: 12}
	at := time.Date(2024, 1, 5, 15, 1, 0, 0, time.UTC)
	s.NextPreflightAt = &at

	assert.False(t, s.IsPreflightDue(at.Add(-time.Minute)))
	assert.True(t, s.IsPreflightDue(at))

	s.Preflight.Enabled = false
	assert.False(t, s.IsPreflightDue(at))
}

func TestPreview(t *testing.T) {
	s := relativeSchedule(time.Tuesday, trigger.DefaultLocalTime)

	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	occurrences, err := s.Preview(2, now)
	require.NoError(t, err)
	require.Len(t, occurrences, 2)

	assert.Equal(t, time.Date(2024, 1, 6, 3, 1, 0, 0, time.UTC), occurrences[0].TriggerAt)
	assert.Equal(t, occurrences[0].TriggerAt.AddDate(0, 0, 10), occurrences[0].ReservationAt)
	assert.Equal(t, occurrences[0].TriggerAt.AddDate(0, 0, 7), occurrences[1].TriggerAt)
}

func TestPreviewMatchesNextTrigger(t *testing.T) {
	// The preview and the persisted cron expression describe one timeline:
	// the first previewed occurrence is exactly the next firing instant,
	// midnight-crossing triggers included.
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	for _, local := range []trigger.TimeOfDay{trigger.DefaultLocalTime, {Hour: 22, Minute: 30}} {
		s := relativeSchedule(time.Tuesday, local)

		next, err := s.NextTrigger(now)
		require.NoError(t, err)
		occurrences, err := s.Preview(1, now)
		require.NoError(t, err)
		assert.Equal(t, next, occurrences[0].TriggerAt, "local %02d:%02d", local.Hour, local.Minute)
	}
}
