package hourlylog

import "fmt"

// Status is the severity tier of a classified reading.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusWarning Status = "warning"
	StatusDanger  Status = "danger"
)

// Band is a closed numeric interval.
type Band struct {
	Min float64
	Max float64
}

// Contains reports inclusive membership: both boundaries are in range.
func (b Band) Contains(value float64) bool {
	return value >= b.Min && value <= b.Max
}

// RangeSpec configures acceptable and ideal bands for one numeric field.
// Fields without a spec are unbounded and never flagged. Zero readings are
// treated as not-yet-entered and skip classification entirely; fields
// where zero is a legitimate reading must not rely on the sentinel.
type RangeSpec struct {
	Acceptable Band
	Ideal      *Band
	Unit       string
}

// ValidationResult is derived fresh on every change, never stored.
type ValidationResult struct {
	Status  Status
	Message string
}

// Validate classifies a numeric reading against its range spec.
func Validate(value float64, spec *RangeSpec) ValidationResult {
	if spec == nil {
		return ValidationResult{Status: StatusNormal}
	}
	if value == 0 {
		// Unset sentinel: validation applies only once a value exists.
		return ValidationResult{Status: StatusNormal}
	}
	if !spec.Acceptable.Contains(value) {
		return ValidationResult{
			Status:  StatusDanger,
			Message: fmt.Sprintf("%s outside acceptable range %s–%s", formatReading(value, spec.Unit), formatReading(spec.Acceptable.Min, spec.Unit), formatReading(spec.Acceptable.Max, spec.Unit)),
		}
	}
	if spec.Ideal != nil && !spec.Ideal.Contains(value) {
		return ValidationResult{
			Status:  StatusWarning,
			Message: fmt.Sprintf("%s outside ideal range %s–%s", formatReading(value, spec.Unit), formatReading(spec.Ideal.Min, spec.Unit), formatReading(spec.Ideal.Max, spec.Unit)),
		}
	}
	return ValidationResult{Status: StatusNormal}
}

// IsProblem reports whether a reading counts toward the record's problem
// total and should raise an issue.
func IsProblem(value float64, spec *RangeSpec) bool {
	return Validate(value, spec).Status == StatusDanger
}

// RangeSet maps field keys to their configured range specs for one entity
// kind. Not persisted; part of application configuration.
type RangeSet map[string]*RangeSpec

// Spec returns the range spec for a field key, or nil when unconfigured.
func (s RangeSet) Spec(key string) *RangeSpec {
	if s == nil {
		return nil
	}
	return s[key]
}

// ProblemCount tallies entered numeric readings classified as danger.
func ProblemCount(record *LogRecord, ranges RangeSet) int {
	if record == nil {
		return 0
	}
	count := 0
	for key, value := range record.Values {
		if value.Numeric == nil {
			continue
		}
		if IsProblem(*value.Numeric, ranges.Spec(key)) {
			count++
		}
	}
	return count
}

func formatReading(value float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%.2f", value)
	}
	return fmt.Sprintf("%.2f %s", value, unit)
}
