package hourlylog

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}

func completeGeneratorRecord(t *testing.T, owner string, entity EntityRef, date time.Time, hour int) *LogRecord {
	t.Helper()
	schema, err := SchemaFor(entity.Kind)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	record := EmptyRecord(owner, entity, date, hour)
	for _, field := range schema.Fields() {
		if !field.Required {
			continue
		}
		if field.Kind == FieldText {
			record.SetValue(field.Key, Str("ok"))
			continue
		}
		record.SetValue(field.Key, Numf(50))
	}
	return record
}

func TestSlotEmptyByDefault(t *testing.T) {
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	date := mustDate(t, "2026-08-28")
	day, err := NewDaySlots("op-1", entity, date, nil)
	if err != nil {
		t.Fatalf("new day slots: %v", err)
	}

	for hour := 0; hour < HoursPerDay; hour++ {
		slot := day.Slot(hour)
		if slot == nil {
			t.Fatalf("slot %d is nil", hour)
		}
		if !slot.IsEmpty() {
			t.Fatalf("slot %d not empty", hour)
		}
		if slot.Hour != hour {
			t.Fatalf("slot %d carries hour %d", hour, slot.Hour)
		}
	}
	if got := day.LoggedCount(); got != 0 {
		t.Fatalf("LoggedCount = %d, want 0", got)
	}
}

func TestSlotOutOfRangePanics(t *testing.T) {
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	day, err := NewDaySlots("op-1", entity, mustDate(t, "2026-08-28"), nil)
	if err != nil {
		t.Fatalf("new day slots: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for hour 24")
		}
	}()
	day.Slot(24)
}

func TestLoggedHours(t *testing.T) {
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	date := mustDate(t, "2026-08-28")
	records := []*LogRecord{
		completeGeneratorRecord(t, "op-1", entity, date, 3),
		completeGeneratorRecord(t, "op-1", entity, date, 0),
		completeGeneratorRecord(t, "op-1", entity, date, 17),
	}
	day, err := NewDaySlots("op-1", entity, date, records)
	if err != nil {
		t.Fatalf("new day slots: %v", err)
	}

	hours := day.LoggedHours()
	want := []int{0, 3, 17}
	if len(hours) != len(want) {
		t.Fatalf("LoggedHours = %v, want %v", hours, want)
	}
	for i, hour := range want {
		if hours[i] != hour {
			t.Fatalf("LoggedHours = %v, want %v", hours, want)
		}
	}
	if day.IsComplete() {
		t.Fatal("3/24 logged day must not be complete")
	}
}

func TestIsCompleteRequiresAllHoursAndFields(t *testing.T) {
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	date := mustDate(t, "2026-08-28")

	var records []*LogRecord
	for hour := 0; hour < HoursPerDay; hour++ {
		records = append(records, completeGeneratorRecord(t, "op-1", entity, date, hour))
	}
	day, err := NewDaySlots("op-1", entity, date, records)
	if err != nil {
		t.Fatalf("new day slots: %v", err)
	}
	if !day.IsComplete() {
		t.Fatal("24 complete records must mark the day complete")
	}

	// 23/24 is incomplete.
	day23, err := NewDaySlots("op-1", entity, date, records[:23])
	if err != nil {
		t.Fatalf("new day slots: %v", err)
	}
	if day23.IsComplete() {
		t.Fatal("23/24 logged day must not be complete")
	}

	// All hours saved but one record missing a required field.
	gap := completeGeneratorRecord(t, "op-1", entity, date, 5)
	delete(gap.Values, "vibration_mm_s")
	records[5] = gap
	dayGap, err := NewDaySlots("op-1", entity, date, records)
	if err != nil {
		t.Fatalf("new day slots: %v", err)
	}
	if dayGap.IsComplete() {
		t.Fatal("missing required field must keep the day incomplete")
	}
}

func TestNewDaySlotsRejectsForeignRecords(t *testing.T) {
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	date := mustDate(t, "2026-08-28")
	stray := completeGeneratorRecord(t, "op-1", entity, mustDate(t, "2026-08-27"), 4)
	if _, err := NewDaySlots("op-1", entity, date, []*LogRecord{stray}); err == nil {
		t.Fatal("expected error for record from another day")
	}
}

func TestSchemaValidateRecord(t *testing.T) {
	schema, err := SchemaFor(KindGenerator)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	record := EmptyRecord("op-1", entity, mustDate(t, "2026-08-28"), 2)

	record.SetValue("not_a_field", Numf(1))
	if err := schema.ValidateRecord(record); err == nil {
		t.Fatal("unknown field must be rejected")
	}
	delete(record.Values, "not_a_field")

	record.SetValue("vibration_mm_s", Str("high"))
	if err := schema.ValidateRecord(record); err == nil {
		t.Fatal("text value in numeric field must be rejected")
	}
	record.SetValue("vibration_mm_s", Numf(2.5))
	if err := schema.ValidateRecord(record); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
}

func TestTransformerSchemaShape(t *testing.T) {
	schema, err := SchemaFor(KindTransformer)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if got := len(schema.Fields()); got < 38 {
		t.Fatalf("transformer schema has %d fields, want the full three-feeder sheet", got)
	}
	for _, feeder := range []string{"feeder1", "feeder2", "feeder3"} {
		if _, ok := schema.Field(feeder + "_oil_temp_c"); !ok {
			t.Fatalf("missing %s oil temperature column", feeder)
		}
	}
}
