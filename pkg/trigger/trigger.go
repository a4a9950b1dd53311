// Package trigger computes when an automated reservation attempt must fire.
// A reservation is always made exactly 10 days ahead of the target slot, so
// in reservation-relative mode the trigger weekday sits 3 days (10 mod 7)
// before the reservation weekday. All calculations take an explicit "now"
// so the next-occurrence logic is deterministic under test.
package trigger

import (
	"fmt"
	"time"

	"github.com/quadrabot/quadra/pkg/tz"
)

// ReservationLeadDays is how far ahead of the slot the attempt fires.
const ReservationLeadDays = 10

// weekdayGap is the weekday distance between trigger and reservation.
const weekdayGap = ReservationLeadDays % 7

// Mode selects how a schedule's trigger instant is obtained.
type Mode string

const (
	// ModeReservationRelative computes the trigger backward from the
	// reservation weekday.
	ModeReservationRelative Mode = "reservationRelative"
	// ModeExplicitDatetime uses a user-chosen absolute instant.
	ModeExplicitDatetime Mode = "explicitDatetime"
)

// TimeOfDay is an hour/minute pair; seconds are always zero.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// DefaultLocalTime is the local fire time used when none is configured.
var DefaultLocalTime = TimeOfDay{Hour: 0, Minute: 1}

// Trigger is a computed firing point: the local weekday/time the user
// reasons about plus the storage-timezone projection the scheduler stores.
// The stored weekday is one day ahead of the local weekday when the +3h
// conversion crosses midnight.
type Trigger struct {
	LocalWeekday  time.Weekday `json:"local_weekday"`
	LocalTime     TimeOfDay    `json:"local_time"`
	StoredWeekday time.Weekday `json:"stored_weekday"`
	StoredTime    TimeOfDay    `json:"stored_time"`
}

func validTimeOfDay(t TimeOfDay) error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("hour out of range: %d", t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("minute out of range: %d", t.Minute)
	}
	return nil
}

// Compute derives the trigger for a reservation-relative schedule. The
// reservation weekday is Sunday=0 through Saturday=6; local is the civil
// fire time, converted to storage time with the fixed offset.
func Compute(reservationWeekday time.Weekday, local TimeOfDay) (Trigger, error) {
	if reservationWeekday < time.Sunday || reservationWeekday > time.Saturday {
		return Trigger{}, fmt.Errorf("reservation weekday out of range: %d", reservationWeekday)
	}
	if err := validTimeOfDay(local); err != nil {
		return Trigger{}, err
	}

	localWeekday := time.Weekday((int(reservationWeekday) + 7 - weekdayGap) % 7)
	storedWeekday := localWeekday
	if tz.CrossesMidnight(local.Hour) {
		storedWeekday = (storedWeekday + 1) % 7
	}

	return Trigger{
		LocalWeekday:  localWeekday,
		LocalTime:     local,
		StoredWeekday: storedWeekday,
		StoredTime:    TimeOfDay{Hour: tz.ToStorage(local.Hour), Minute: local.Minute},
	}, nil
}

// ComputeFromInstant derives the trigger for an explicit-datetime schedule.
// The instant is already absolute in storage time, so its weekday and time
// are taken as-is with no offset conversion.
func ComputeFromInstant(at time.Time) Trigger {
	tod := TimeOfDay{Hour: at.Hour(), Minute: at.Minute()}
	return Trigger{
		LocalWeekday:  at.Weekday(),
		LocalTime:     tod,
		StoredWeekday: at.Weekday(),
		StoredTime:    tod,
	}
}

// ReservationWeekday returns the weekday of the slot this trigger books,
// always weekdayGap days after the local trigger weekday.
func (t Trigger) ReservationWeekday() time.Weekday {
	return time.Weekday((int(t.LocalWeekday) + weekdayGap) % 7)
}
