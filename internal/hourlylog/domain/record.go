package hourlylog

import (
	"errors"
	"fmt"
	"time"
)

// EntityKind distinguishes the two hourly-logged equipment types.
type EntityKind string

const (
	KindTransformer EntityKind = "transformer"
	KindGenerator   EntityKind = "generator"
)

// EntityRef identifies one logged piece of equipment, e.g. transformer 2.
type EntityRef struct {
	Kind EntityKind
	Unit int
}

// NewEntityRef validates kind and unit number.
func NewEntityRef(kind EntityKind, unit int) (EntityRef, error) {
	switch kind {
	case KindTransformer, KindGenerator:
	default:
		return EntityRef{}, fmt.Errorf("hourlylog: unknown entity kind %q", kind)
	}
	if unit < 1 {
		return EntityRef{}, errors.New("hourlylog: unit number must be >= 1")
	}
	return EntityRef{Kind: kind, Unit: unit}, nil
}

// ParseEntityID parses an id of the form "transformer-1".
func ParseEntityID(id string) (EntityRef, error) {
	var kind EntityKind
	var unit int
	n, err := fmt.Sscanf(id, "transformer-%d", &unit)
	if err == nil && n == 1 {
		kind = KindTransformer
	} else {
		n, err = fmt.Sscanf(id, "generator-%d", &unit)
		if err != nil || n != 1 {
			return EntityRef{}, fmt.Errorf("hourlylog: invalid entity id %q", id)
		}
		kind = KindGenerator
	}
	return NewEntityRef(kind, unit)
}

// ID returns the stable string identifier used as part of the record key.
func (e EntityRef) ID() string {
	return fmt.Sprintf("%s-%d", e.Kind, e.Unit)
}

// FieldValue holds one reading. Exactly one of the value pointers is set
// for an entered field; both nil means not yet entered.
type FieldValue struct {
	Numeric *float64 `json:"numeric,omitempty"`
	Text    *string  `json:"text,omitempty"`
}

// Entered reports whether the operator has actually entered a value.
// A numeric zero is the unset sentinel and does not count as entered.
func (v FieldValue) Entered() bool {
	if v.Numeric != nil {
		return *v.Numeric != 0
	}
	return v.Text != nil && *v.Text != ""
}

// Numf is a convenience constructor for numeric field values.
func Numf(value float64) FieldValue {
	return FieldValue{Numeric: &value}
}

// Str is a convenience constructor for text field values.
func Str(value string) FieldValue {
	return FieldValue{Text: &value}
}

// LogRecord is one hour's worth of measurements for one entity on one day.
// Identity key: (owner, date, hour, entity). At most one record exists per
// key; the persistence layer enforces this with an upsert on conflict.
type LogRecord struct {
	OwnerID string
	Entity  EntityRef
	Date    time.Time
	Hour    int

	Values  map[string]FieldValue
	Remarks string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmptyRecord is the canonical "no data yet" record for a slot. Every
// consumer that needs a default agrees on this shape.
func EmptyRecord(ownerID string, entity EntityRef, date time.Time, hour int) *LogRecord {
	return &LogRecord{
		OwnerID: ownerID,
		Entity:  entity,
		Date:    DayOf(date),
		Hour:    hour,
		Values:  make(map[string]FieldValue),
	}
}

// IsEmpty reports whether no field has been entered yet.
func (r *LogRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	for _, value := range r.Values {
		if value.Entered() {
			return false
		}
	}
	return r.Remarks == ""
}

// Value returns the stored value for a field key, entered or not.
func (r *LogRecord) Value(key string) FieldValue {
	if r == nil {
		return FieldValue{}
	}
	return r.Values[key]
}

// SetValue stores a field value, allocating the map on first use.
func (r *LogRecord) SetValue(key string, value FieldValue) {
	if r.Values == nil {
		r.Values = make(map[string]FieldValue)
	}
	r.Values[key] = value
}

// Clone returns a deep copy, used when handing in-memory state across
// goroutine boundaries.
func (r *LogRecord) Clone() *LogRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Values = make(map[string]FieldValue, len(r.Values))
	for key, value := range r.Values {
		copied := FieldValue{}
		if value.Numeric != nil {
			n := *value.Numeric
			copied.Numeric = &n
		}
		if value.Text != nil {
			s := *value.Text
			copied.Text = &s
		}
		out.Values[key] = copied
	}
	return &out
}

// DayOf truncates a timestamp to its calendar day in the timestamp's
// location. Record dates are always stored at midnight.
func DayOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
