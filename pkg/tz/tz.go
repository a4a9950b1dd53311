// Package tz converts civil hours between the local timezone the user
// configures schedules in and the timezone trigger times are stored in.
// The deployment supports a single locale: local civil time is a fixed
// 3 hours behind storage time, so the conversion is pure hour arithmetic.
package tz

// StorageOffsetHours is the fixed difference between storage time and
// local civil time. Storage runs 3 hours ahead.
const StorageOffsetHours = 3

// ToStorage converts a local civil hour (0-23) to the storage hour.
func ToStorage(hour int) int {
	return (hour + StorageOffsetHours) % 24
}

// ToLocal converts a storage hour (0-23) back to the local civil hour.
func ToLocal(hour int) int {
	return (hour - StorageOffsetHours + 24) % 24
}

// CrossesMidnight reports whether converting the given local hour to
// storage time lands on the next calendar day. Callers use this to carry
// the stored weekday forward by one.
func CrossesMidnight(localHour int) bool {
	return localHour+StorageOffsetHours >= 24
}
