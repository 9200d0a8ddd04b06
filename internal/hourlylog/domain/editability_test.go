package hourlylog

import (
	"testing"
	"time"
)

func TestIsEditableCurrentHourOnly(t *testing.T) {
	policy := NewEditPolicy(time.UTC)
	day := mustDate(t, "2026-08-28")
	now := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

	if !policy.IsEditable(day, 14, false, now) {
		t.Fatal("current hour must be editable")
	}
	if policy.IsEditable(day, 13, false, now) {
		t.Fatal("past hour must be locked")
	}
	if policy.IsEditable(day, 15, false, now) {
		t.Fatal("future hour must be locked")
	}
}

func TestIsEditableFinalizedDay(t *testing.T) {
	policy := NewEditPolicy(time.UTC)
	day := mustDate(t, "2026-08-28")
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	if policy.IsEditable(day, 14, true, now) {
		t.Fatal("finalized day must lock even the current hour")
	}
}

func TestIsEditableOtherDays(t *testing.T) {
	policy := NewEditPolicy(time.UTC)
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	yesterday := mustDate(t, "2026-08-27")
	if policy.IsEditable(yesterday, 14, false, now) {
		t.Fatal("past calendar day must be locked")
	}
	tomorrow := mustDate(t, "2026-08-29")
	if policy.IsEditable(tomorrow, 14, false, now) {
		t.Fatal("future calendar day must be locked")
	}
}

func TestIsEditableOutOfRangeHour(t *testing.T) {
	policy := NewEditPolicy(time.UTC)
	day := mustDate(t, "2026-08-28")
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	if policy.IsEditable(day, -1, false, now) || policy.IsEditable(day, 24, false, now) {
		t.Fatal("out-of-range hours are never editable")
	}
}

func TestIsEditableUsesPlantLocalTime(t *testing.T) {
	// 23:30 on the 28th in UTC+6 is 17:30 UTC; the policy must compare in
	// plant local time, not UTC.
	plant := time.FixedZone("PLT", 6*3600)
	policy := NewEditPolicy(plant)
	now := time.Date(2026, 8, 28, 17, 30, 0, 0, time.UTC)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, plant)
	if !policy.IsEditable(day, 23, false, now) {
		t.Fatal("hour 23 plant time must be editable at 17:30 UTC")
	}
	if policy.IsEditable(day, 17, false, now) {
		t.Fatal("hour 17 is not the plant-local current hour")
	}
	if got := policy.CurrentHour(now); got != 23 {
		t.Fatalf("CurrentHour = %d, want 23", got)
	}
}
