package hourlylog

import "fmt"

// FieldKind is the declared type of a schema field.
type FieldKind string

const (
	FieldNumeric FieldKind = "numeric"
	FieldText    FieldKind = "text"
)

// FieldSpec declares one named field of an entity's hourly record.
type FieldSpec struct {
	Key      string
	Label    string
	Kind     FieldKind
	Unit     string
	Required bool
}

// Schema is the statically defined field set for one entity kind. Records
// are validated against it at the persistence boundary; the dynamic field
// bags of the paper forms do not survive past the HTTP layer.
type Schema struct {
	Kind   EntityKind
	fields []FieldSpec
	byKey  map[string]FieldSpec
}

func newSchema(kind EntityKind, fields []FieldSpec) *Schema {
	byKey := make(map[string]FieldSpec, len(fields))
	for _, field := range fields {
		byKey[field.Key] = field
	}
	return &Schema{Kind: kind, fields: fields, byKey: byKey}
}

// Fields returns the declared fields in form order.
func (s *Schema) Fields() []FieldSpec {
	return s.fields
}

// Field looks up a field spec by key.
func (s *Schema) Field(key string) (FieldSpec, bool) {
	spec, ok := s.byKey[key]
	return spec, ok
}

// RequiredKeys returns the keys a complete record must populate.
func (s *Schema) RequiredKeys() []string {
	var keys []string
	for _, field := range s.fields {
		if field.Required {
			keys = append(keys, field.Key)
		}
	}
	return keys
}

// ValidateRecord checks a record against the schema: every stored key must
// be declared and carry the declared kind. Completeness is a separate
// question answered by DaySlots.
func (s *Schema) ValidateRecord(record *LogRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	for key, value := range record.Values {
		spec, ok := s.byKey[key]
		if !ok {
			return fmt.Errorf("%w: unknown field %q for %s", ErrInvalidRecord, key, s.Kind)
		}
		switch spec.Kind {
		case FieldNumeric:
			if value.Text != nil {
				return fmt.Errorf("%w: field %q expects a numeric value", ErrInvalidRecord, key)
			}
		case FieldText:
			if value.Numeric != nil {
				return fmt.Errorf("%w: field %q expects a text value", ErrInvalidRecord, key)
			}
		}
	}
	return nil
}

// IsRecordComplete reports whether every required field has been entered.
func (s *Schema) IsRecordComplete(record *LogRecord) bool {
	if record == nil {
		return false
	}
	for _, field := range s.fields {
		if !field.Required {
			continue
		}
		if !record.Value(field.Key).Entered() {
			return false
		}
	}
	return true
}

// SchemaFor returns the schema for an entity kind.
func SchemaFor(kind EntityKind) (*Schema, error) {
	switch kind {
	case KindTransformer:
		return transformerSchema, nil
	case KindGenerator:
		return generatorSchema, nil
	default:
		return nil, fmt.Errorf("hourlylog: no schema for entity kind %q", kind)
	}
}

var transformerFeeders = []string{"feeder1", "feeder2", "feeder3"}

var transformerSchema = newSchema(KindTransformer, buildTransformerFields())

// The transformer sheet logs the same column block once per feeder, plus
// shared ambient readings.
func buildTransformerFields() []FieldSpec {
	perFeeder := []struct {
		suffix string
		label  string
		unit   string
	}{
		{"voltage_kv", "Voltage", "kV"},
		{"current_r_a", "Current R Phase", "A"},
		{"current_y_a", "Current Y Phase", "A"},
		{"current_b_a", "Current B Phase", "A"},
		{"active_power_kw", "Active Power", "kW"},
		{"reactive_power_kvar", "Reactive Power", "kVAr"},
		{"frequency_hz", "Frequency", "Hz"},
		{"power_factor", "Power Factor", ""},
		{"oil_temp_c", "Oil Temperature", "degC"},
		{"winding_temp_c", "Winding Temperature", "degC"},
		{"oil_level_pct", "Oil Level", "%"},
		{"tap_position", "Tap Position", ""},
	}

	var fields []FieldSpec
	for _, feeder := range transformerFeeders {
		for _, col := range perFeeder {
			fields = append(fields, FieldSpec{
				Key:      feeder + "_" + col.suffix,
				Label:    col.label,
				Kind:     FieldNumeric,
				Unit:     col.unit,
				Required: true,
			})
		}
	}
	fields = append(fields,
		FieldSpec{Key: "ambient_temp_c", Label: "Ambient Temperature", Kind: FieldNumeric, Unit: "degC", Required: true},
		FieldSpec{Key: "silica_gel_color", Label: "Silica Gel Colour", Kind: FieldText, Required: true},
		FieldSpec{Key: "checked_by", Label: "Checked By", Kind: FieldText},
	)
	return fields
}

var generatorSchema = newSchema(KindGenerator, []FieldSpec{
	{Key: "stator_winding_temp_c", Label: "Stator Winding Temperature", Kind: FieldNumeric, Unit: "degC", Required: true},
	{Key: "bearing_temp_de_c", Label: "Bearing Temperature DE", Kind: FieldNumeric, Unit: "degC", Required: true},
	{Key: "bearing_temp_nde_c", Label: "Bearing Temperature NDE", Kind: FieldNumeric, Unit: "degC", Required: true},
	{Key: "vibration_mm_s", Label: "Vibration", Kind: FieldNumeric, Unit: "mm/s", Required: true},
	{Key: "voltage_kv", Label: "Voltage", Kind: FieldNumeric, Unit: "kV", Required: true},
	{Key: "current_a", Label: "Current", Kind: FieldNumeric, Unit: "A", Required: true},
	{Key: "active_power_kw", Label: "Active Power", Kind: FieldNumeric, Unit: "kW", Required: true},
	{Key: "reactive_power_kvar", Label: "Reactive Power", Kind: FieldNumeric, Unit: "kVAr", Required: true},
	{Key: "frequency_hz", Label: "Frequency", Kind: FieldNumeric, Unit: "Hz", Required: true},
	{Key: "power_factor", Label: "Power Factor", Kind: FieldNumeric, Required: true},
	{Key: "excitation_current_a", Label: "Excitation Current", Kind: FieldNumeric, Unit: "A", Required: true},
	{Key: "excitation_voltage_v", Label: "Excitation Voltage", Kind: FieldNumeric, Unit: "V", Required: true},
	{Key: "cooling_water_temp_c", Label: "Cooling Water Temperature", Kind: FieldNumeric, Unit: "degC", Required: true},
	{Key: "turbine_oil_pressure_bar", Label: "Turbine Oil Pressure", Kind: FieldNumeric, Unit: "bar", Required: true},
	{Key: "head_water_level_m", Label: "Head Water Level", Kind: FieldNumeric, Unit: "m", Required: true},
	{Key: "tail_water_level_m", Label: "Tail Water Level", Kind: FieldNumeric, Unit: "m", Required: true},
	{Key: "cover_bolt_check", Label: "Cover Bolt Check", Kind: FieldText, Required: true},
})
