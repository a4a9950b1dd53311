package trigger

import (
	"fmt"
	"time"
)

// Frequency describes how often a schedule repeats.
type Frequency string

const (
	FrequencyOnce     Frequency = "once"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Valid reports whether f is one of the recognized frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Occurrence pairs a trigger instant with the reservation date it targets.
type Occurrence struct {
	TriggerAt     time.Time `json:"trigger_at"`
	ReservationAt time.Time `json:"reservation_at"`
}

// Expand produces the next count occurrences of a trigger, soonest first,
// starting on or after now. Occurrences are expressed in storage time, the
// same timeline the persisted cron expression fires on, so an expansion and
// the scheduler always name identical instants. Today's candidate counts
// only if its hour and minute have not strictly passed; otherwise the first
// occurrence moves a week out. FrequencyOnce always yields exactly one
// occurrence.
func Expand(trig Trigger, freq Frequency, count int, now time.Time) ([]Occurrence, error) {
	if count < 1 {
		return nil, fmt.Errorf("occurrence count must be positive, got %d", count)
	}
	if !freq.Valid() {
		return nil, fmt.Errorf("unknown frequency: %q", freq)
	}

	first := nextMatching(trig.StoredWeekday, trig.StoredTime, now)

	if freq == FrequencyOnce {
		count = 1
	}

	occurrences := make([]Occurrence, 0, count)
	for i := 0; i < count; i++ {
		var at time.Time
		switch freq {
		case FrequencyOnce:
			at = first
		case FrequencyWeekly:
			at = first.AddDate(0, 0, 7*i)
		case FrequencyBiweekly:
			at = first.AddDate(0, 0, 14*i)
		case FrequencyMonthly:
			at = addMonthsClamped(first, i)
		}
		occurrences = append(occurrences, Occurrence{
			TriggerAt:     at,
			ReservationAt: at.AddDate(0, 0, ReservationLeadDays),
		})
	}
	return occurrences, nil
}

// nextMatching finds the first instant on/after now with the given weekday
// and time of day, in now's location.
func nextMatching(weekday time.Weekday, tod TimeOfDay, now time.Time) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		if now.Hour() > tod.Hour || (now.Hour() == tod.Hour && now.Minute() > tod.Minute) {
			days = 7
		}
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	return candidate.AddDate(0, 0, days)
}

// addMonthsClamped advances t by months whole calendar months, keeping t's
// day-of-month. When the target month is shorter the day clamps to the last
// valid day (Jan 31 + 1 month = Feb 28/29). Clamping is the intended
// policy, not an accident: months vary in length and a skipped month would
// silently drop a booking.
func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), 0, 0, t.Location())
	if last := lastDayOfMonth(firstOfTarget); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
