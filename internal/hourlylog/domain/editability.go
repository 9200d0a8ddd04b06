package hourlylog

import "time"

// EditPolicy decides whether an hour slot may currently be mutated. The
// log is an as-it-happens shift record: past hours are locked to preserve
// the audit trail, future hours are locked so data cannot be pre-filled,
// and a finalized day is locked outright. Navigation for reading is never
// restricted; only writes go through this policy.
//
// Both the transformer and generator forms use the strict variant: only
// the exact current wall-clock hour of today is writable.
type EditPolicy struct {
	Location *time.Location
}

// NewEditPolicy builds a policy for the plant's local time zone. A nil
// location falls back to time.Local.
func NewEditPolicy(loc *time.Location) EditPolicy {
	if loc == nil {
		loc = time.Local
	}
	return EditPolicy{Location: loc}
}

// IsEditable reports whether the given hour of the given day may be
// written at instant now. Hour must be in [0,23]; out-of-range input is a
// caller bug and is simply never editable.
func (p EditPolicy) IsEditable(day time.Time, hour int, finalized bool, now time.Time) bool {
	if hour < 0 || hour > 23 {
		return false
	}
	if finalized {
		return false
	}
	local := now.In(p.loc())
	if !SameDay(day.In(p.loc()), local) {
		return false
	}
	return hour == local.Hour()
}

// CurrentHour returns the wall-clock hour in plant local time.
func (p EditPolicy) CurrentHour(now time.Time) int {
	return now.In(p.loc()).Hour()
}

// Today returns the current calendar day at midnight plant local time.
func (p EditPolicy) Today(now time.Time) time.Time {
	return DayOf(now.In(p.loc()))
}

func (p EditPolicy) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}
