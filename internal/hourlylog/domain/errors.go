package hourlylog

import "errors"

var (
	// ErrHourLocked is returned when a write targets a slot the edit
	// policy does not currently allow.
	ErrHourLocked = errors.New("hourlylog: hour is not editable")

	// ErrDayFinalized is returned when a write targets a finalized day.
	ErrDayFinalized = errors.New("hourlylog: day is finalized")

	// ErrDayIncomplete is returned when finalization is requested before
	// all 24 slots are complete.
	ErrDayIncomplete = errors.New("hourlylog: day is not complete")

	// ErrInvalidRecord is returned when a record does not match its
	// entity schema.
	ErrInvalidRecord = errors.New("hourlylog: invalid record")

	// ErrNotFound indicates a missing log record.
	ErrNotFound = errors.New("hourlylog: record not found")
)
