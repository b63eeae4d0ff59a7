package domain

import (
	"math"
	"time"
)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
// Lock windows set on release always end here.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, t.Location())
}

// LockActive reports whether a lock window still blocks claiming at now.
// The canonical rule: a lock blocks while its end is on or after the start of
// the current day, so a lock set yesterday evening clears on its own once the
// wall-clock date advances.
func LockActive(lockEnd *time.Time, now time.Time) bool {
	if lockEnd == nil {
		return false
	}
	return !lockEnd.Before(StartOfDay(now))
}

// ElapsedMinutes rounds the gap between the prior event and at to the nearest
// whole minute.
func ElapsedMinutes(prior, at time.Time) int {
	return int(math.Round(at.Sub(prior).Minutes()))
}
