package hourlylog

import (
	"fmt"
	"time"
)

// HoursPerDay is the number of addressable slots in a day sheet.
const HoursPerDay = 24

// DaySlots is the 24-hour sheet for one entity on one day. Slots with no
// saved record are represented as the canonical empty record, not absent.
// This is a pure read/derive layer; it never mutates persisted state.
type DaySlots struct {
	OwnerID string
	Entity  EntityRef
	Date    time.Time

	slots  [HoursPerDay]*LogRecord
	saved  [HoursPerDay]bool
	schema *Schema
}

// NewDaySlots builds the sheet from the records persisted for the day.
// Records outside the day or the [0,23] hour range are rejected.
func NewDaySlots(ownerID string, entity EntityRef, date time.Time, records []*LogRecord) (*DaySlots, error) {
	schema, err := SchemaFor(entity.Kind)
	if err != nil {
		return nil, err
	}
	day := &DaySlots{
		OwnerID: ownerID,
		Entity:  entity,
		Date:    DayOf(date),
		schema:  schema,
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		if record.Hour < 0 || record.Hour >= HoursPerDay {
			return nil, fmt.Errorf("hourlylog: record hour %d out of range", record.Hour)
		}
		if !SameDay(record.Date, day.Date) {
			return nil, fmt.Errorf("hourlylog: record date %s does not belong to sheet %s",
				record.Date.Format("2006-01-02"), day.Date.Format("2006-01-02"))
		}
		day.slots[record.Hour] = record
		day.saved[record.Hour] = true
	}
	return day, nil
}

// Slot returns the record for an hour, or the empty record when nothing
// has been saved. An hour outside [0,23] is a programming error and
// panics rather than returning a recoverable error.
func (d *DaySlots) Slot(hour int) *LogRecord {
	if hour < 0 || hour >= HoursPerDay {
		panic(fmt.Sprintf("hourlylog: slot hour %d out of range", hour))
	}
	if d.slots[hour] == nil {
		return EmptyRecord(d.OwnerID, d.Entity, d.Date, hour)
	}
	return d.slots[hour]
}

// LoggedHours returns the hours with a persisted record, ascending. Edits
// held only in memory do not count.
func (d *DaySlots) LoggedHours() []int {
	var hours []int
	for hour := 0; hour < HoursPerDay; hour++ {
		if d.saved[hour] {
			hours = append(hours, hour)
		}
	}
	return hours
}

// LoggedCount is the N of the "N/24 hours logged" progress display.
func (d *DaySlots) LoggedCount() int {
	count := 0
	for hour := 0; hour < HoursPerDay; hour++ {
		if d.saved[hour] {
			count++
		}
	}
	return count
}

// IsComplete reports whether all 24 hours are saved and every saved
// record populates the entity's full required field set.
func (d *DaySlots) IsComplete() bool {
	for hour := 0; hour < HoursPerDay; hour++ {
		if !d.saved[hour] {
			return false
		}
		if !d.schema.IsRecordComplete(d.slots[hour]) {
			return false
		}
	}
	return true
}

// ProblemTotal sums the problem counts of all saved records.
func (d *DaySlots) ProblemTotal(ranges RangeSet) int {
	total := 0
	for hour := 0; hour < HoursPerDay; hour++ {
		if d.saved[hour] {
			total += ProblemCount(d.slots[hour], ranges)
		}
	}
	return total
}
