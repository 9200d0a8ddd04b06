package checklist

import (
	"errors"
	"fmt"
	"time"

	hourlylog "hydrolog/internal/hourlylog/domain"
)

// Shift identifies one of the three operating shifts.
type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
	ShiftNight   Shift = "night"
)

// ParseShift validates a shift name.
func ParseShift(value string) (Shift, error) {
	switch Shift(value) {
	case ShiftMorning, ShiftEvening, ShiftNight:
		return Shift(value), nil
	default:
		return "", fmt.Errorf("checklist: unknown shift %q", value)
	}
}

// ItemSpec describes one checklist reading and its acceptable range.
type ItemSpec struct {
	Key   string
	Label string
	Spec  *hourlylog.RangeSpec
}

// Items is the fixed per-shift walkdown checklist. Readings outside an
// item's acceptable band count as problems, same classification as the
// hourly sheet.
func Items() []ItemSpec {
	return []ItemSpec{
		{Key: "intake_gate_position_pct", Label: "Intake Gate Position", Spec: spec(0, 100, "%")},
		{Key: "trash_rack_diff_cm", Label: "Trash Rack Differential", Spec: spec(0, 30, "cm")},
		{Key: "penstock_pressure_bar", Label: "Penstock Pressure", Spec: spec(2, 12, "bar")},
		{Key: "tailrace_level_m", Label: "Tailrace Level", Spec: spec(0.5, 4, "m")},
		{Key: "cooling_water_flow_lps", Label: "Cooling Water Flow", Spec: spec(5, 60, "L/s")},
		{Key: "governor_oil_pressure_bar", Label: "Governor Oil Pressure", Spec: spec(14, 26, "bar")},
		{Key: "battery_voltage_v", Label: "Station Battery Voltage", Spec: spec(110, 130, "V")},
		{Key: "station_service_voltage_v", Label: "Station Service Voltage", Spec: spec(380, 420, "V")},
	}
}

func spec(min, max float64, unit string) *hourlylog.RangeSpec {
	return &hourlylog.RangeSpec{
		Acceptable: hourlylog.Band{Min: min, Max: max},
		Unit:       unit,
	}
}

// ItemSpecFor returns the spec for a reading key.
func ItemSpecFor(key string) (ItemSpec, bool) {
	for _, item := range Items() {
		if item.Key == key {
			return item, true
		}
	}
	return ItemSpec{}, false
}

// Checklist is one shift's walkdown sheet for one owner and day.
type Checklist struct {
	OwnerID     string
	Date        time.Time
	Shift       Shift
	Readings    map[string]float64
	Remarks     string
	SubmittedAt time.Time
}

// NewChecklist builds an empty sheet for a shift.
func NewChecklist(ownerID string, date time.Time, shift Shift) (*Checklist, error) {
	if ownerID == "" {
		return nil, errors.New("checklist: empty owner")
	}
	if _, err := ParseShift(string(shift)); err != nil {
		return nil, err
	}
	return &Checklist{
		OwnerID:  ownerID,
		Date:     hourlylog.DayOf(date),
		Shift:    shift,
		Readings: map[string]float64{},
	}, nil
}

// ValidateReadings rejects readings with unknown keys.
func (c *Checklist) ValidateReadings() error {
	for key := range c.Readings {
		if _, ok := ItemSpecFor(key); !ok {
			return fmt.Errorf("checklist: unknown reading %q", key)
		}
	}
	return nil
}

// Classify validates one reading by key.
func (c *Checklist) Classify(key string) hourlylog.ValidationResult {
	value, ok := c.Readings[key]
	if !ok {
		return hourlylog.ValidationResult{Status: hourlylog.StatusNormal}
	}
	item, ok := ItemSpecFor(key)
	if !ok {
		return hourlylog.ValidationResult{Status: hourlylog.StatusNormal}
	}
	return hourlylog.Validate(value, item.Spec)
}

// ProblemCount tallies readings outside their acceptable bands.
func (c *Checklist) ProblemCount() int {
	count := 0
	for key, value := range c.Readings {
		item, ok := ItemSpecFor(key)
		if !ok {
			continue
		}
		if hourlylog.IsProblem(value, item.Spec) {
			count++
		}
	}
	return count
}

// IsComplete reports whether every checklist item has a reading.
func (c *Checklist) IsComplete() bool {
	for _, item := range Items() {
		if _, ok := c.Readings[item.Key]; !ok {
			return false
		}
	}
	return true
}
