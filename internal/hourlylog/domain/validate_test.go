package hourlylog

import "testing"

func TestValidateTiers(t *testing.T) {
	spec := &RangeSpec{
		Acceptable: Band{Min: 65, Max: 86},
		Ideal:      &Band{Min: 70, Max: 80},
		Unit:       "degC",
	}

	cases := []struct {
		name  string
		value float64
		want  Status
	}{
		{"inside ideal", 75, StatusNormal},
		{"acceptable but below ideal", 68, StatusWarning},
		{"acceptable but above ideal", 85, StatusWarning},
		{"above max", 90, StatusDanger},
		{"below min", 50, StatusDanger},
		{"exactly min is in range", 65, StatusWarning},
		{"exactly max is in range", 86, StatusWarning},
		{"exactly ideal min", 70, StatusNormal},
		{"exactly ideal max", 80, StatusNormal},
		{"zero is unset, never flagged", 0, StatusNormal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(tc.value, spec)
			if got.Status != tc.want {
				t.Fatalf("Validate(%v) = %s, want %s", tc.value, got.Status, tc.want)
			}
			if got.Status != StatusNormal && got.Message == "" {
				t.Fatalf("expected message for status %s", got.Status)
			}
		})
	}
}

func TestValidateBoundariesAreInclusive(t *testing.T) {
	spec := &RangeSpec{Acceptable: Band{Min: 65, Max: 86}}
	if IsProblem(65, spec) {
		t.Fatal("value equal to min must not be a problem")
	}
	if IsProblem(86, spec) {
		t.Fatal("value equal to max must not be a problem")
	}
	if !IsProblem(86.01, spec) {
		t.Fatal("value just above max must be a problem")
	}
	if !IsProblem(64.99, spec) {
		t.Fatal("value just below min must be a problem")
	}
}

func TestValidateWithoutSpec(t *testing.T) {
	if got := Validate(9999, nil); got.Status != StatusNormal {
		t.Fatalf("unbounded field flagged as %s", got.Status)
	}
	if IsProblem(9999, nil) {
		t.Fatal("unbounded field must never be a problem")
	}
}

func TestValidateNoIdealBand(t *testing.T) {
	spec := &RangeSpec{Acceptable: Band{Min: 10, Max: 20}}
	if got := Validate(11, spec); got.Status != StatusNormal {
		t.Fatalf("in-range value without ideal band = %s, want normal", got.Status)
	}
	if got := Validate(25, spec); got.Status != StatusDanger {
		t.Fatalf("out-of-range value = %s, want danger", got.Status)
	}
}

func TestProblemCount(t *testing.T) {
	entity := EntityRef{Kind: KindGenerator, Unit: 1}
	record := EmptyRecord("op-1", entity, mustDate(t, "2026-08-28"), 10)
	record.SetValue("stator_winding_temp_c", Numf(120)) // out of range
	record.SetValue("vibration_mm_s", Numf(2))          // in range
	record.SetValue("frequency_hz", Numf(75))           // no spec configured
	record.SetValue("cover_bolt_check", Str("ok"))      // text, never counted

	ranges := RangeSet{
		"stator_winding_temp_c": {Acceptable: Band{Min: 0, Max: 95}},
		"vibration_mm_s":        {Acceptable: Band{Min: 0, Max: 4.5}},
	}
	if got := ProblemCount(record, ranges); got != 1 {
		t.Fatalf("ProblemCount = %d, want 1", got)
	}
}
