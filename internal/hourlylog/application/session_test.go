package application

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"hydrolog/internal/eventing"
	"hydrolog/internal/hourlylog/application/events"
	hourlylog "hydrolog/internal/hourlylog/domain"
	"hydrolog/internal/hourlylog/infrastructure/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sessionFixture struct {
	repo    *memory.RecordRepository
	clock   *fakeClock
	saves   *SaveService
	session *Session
	entity  hourlylog.EntityRef
	date    time.Time
}

func newSessionFixture(t *testing.T, now time.Time, opts ...SessionOption) *sessionFixture {
	t.Helper()
	repo := memory.NewRecordRepository()
	clock := newFakeClock(now)
	ranges, err := LoadRangeConfig("")
	if err != nil {
		t.Fatalf("range config: %v", err)
	}
	policy := hourlylog.NewEditPolicy(time.UTC)
	saves, err := NewSaveService(repo, repo, ranges, policy, nil, log.Default(), WithSaveClock(clock))
	if err != nil {
		t.Fatalf("save service: %v", err)
	}

	entity := hourlylog.EntityRef{Kind: hourlylog.KindGenerator, Unit: 1}
	date := hourlylog.DayOf(now)
	base := []SessionOption{WithSessionClock(clock), WithPollInterval(0), WithDebounceDelay(0)}
	session, err := NewSession(context.Background(), saves, "op-1", entity, date, log.Default(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Close)
	return &sessionFixture{repo: repo, clock: clock, saves: saves, session: session, entity: entity, date: date}
}

func TestSaveBoundaryRejectsLockedHour(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 10, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	past := hourlylog.EmptyRecord("op-1", f.entity, f.date, 13)
	past.SetValue("vibration_mm_s", hourlylog.Numf(2))
	if err := f.saves.Save(context.Background(), past); err != hourlylog.ErrHourLocked {
		t.Fatalf("save to past hour = %v, want ErrHourLocked", err)
	}

	future := hourlylog.EmptyRecord("op-1", f.entity, f.date, 15)
	future.SetValue("vibration_mm_s", hourlylog.Numf(2))
	if err := f.saves.Save(context.Background(), future); err != hourlylog.ErrHourLocked {
		t.Fatalf("save to future hour = %v, want ErrHourLocked", err)
	}

	current := hourlylog.EmptyRecord("op-1", f.entity, f.date, 14)
	current.SetValue("vibration_mm_s", hourlylog.Numf(2))
	if err := f.saves.Save(context.Background(), current); err != nil {
		t.Fatalf("save to current hour: %v", err)
	}
}

func TestSaveBoundaryRejectsFinalizedDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 10, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if err := f.repo.MarkFinalized(context.Background(), "op-1", f.entity, f.date, now); err != nil {
		t.Fatalf("mark finalized: %v", err)
	}
	record := hourlylog.EmptyRecord("op-1", f.entity, f.date, 14)
	record.SetValue("vibration_mm_s", hourlylog.Numf(2))
	if err := f.saves.Save(context.Background(), record); err != hourlylog.ErrDayFinalized {
		t.Fatalf("save to finalized day = %v, want ErrDayFinalized", err)
	}
}

func TestSelectHourSavesDirtyEditsFirst(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 5, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("vibration_mm_s", hourlylog.Numf(2.2)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if err := f.session.SelectHour(context.Background(), 9); err != nil {
		t.Fatalf("select hour: %v", err)
	}

	saved, err := f.repo.Get(context.Background(), "op-1", f.entity, f.date, 10)
	if err != nil {
		t.Fatalf("hour 10 record not persisted: %v", err)
	}
	if got := saved.Value("vibration_mm_s"); got.Numeric == nil || *got.Numeric != 2.2 {
		t.Fatalf("persisted value = %+v, want 2.2", got)
	}

	status := f.session.Status()
	if status.SelectedHour != 9 {
		t.Fatalf("selected hour = %d, want 9", status.SelectedHour)
	}
	if status.Dirty {
		t.Fatal("dirty flag must clear after a successful switch")
	}
}

func TestSelectHourAbortsWhenSaveFails(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 5, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("vibration_mm_s", hourlylog.Numf(3.3)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.repo.FailUpserts = true

	if err := f.session.SelectHour(context.Background(), 11); err == nil {
		t.Fatal("expected hour switch to fail when the save fails")
	}

	status := f.session.Status()
	if status.SelectedHour != 10 {
		t.Fatalf("selected hour = %d, want 10 (no navigation on failure)", status.SelectedHour)
	}
	if !status.Dirty {
		t.Fatal("dirty edits must survive an aborted switch")
	}
	record := f.session.Record()
	if got := record.Value("vibration_mm_s"); got.Numeric == nil || *got.Numeric != 3.3 {
		t.Fatalf("in-memory edits changed: %+v", got)
	}
}

func TestRolloverAutosavesExpiringHour(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 50, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(61)); err != nil {
		t.Fatalf("set field: %v", err)
	}

	f.clock.Advance(15 * time.Minute) // 10:05, hour 9 has expired
	f.session.Tick(context.Background())

	saved, err := f.repo.Get(context.Background(), "op-1", f.entity, f.date, 9)
	if err != nil {
		t.Fatalf("expiring hour was not autosaved: %v", err)
	}
	if got := saved.Value("stator_winding_temp_c"); got.Numeric == nil || *got.Numeric != 61 {
		t.Fatalf("autosaved value = %+v, want 61", got)
	}

	status := f.session.Status()
	if status.CurrentHour != 10 {
		t.Fatalf("tracked hour = %d, want 10", status.CurrentHour)
	}
	if status.Dirty || status.UnsavedLocked {
		t.Fatalf("unexpected status after successful rollover: %+v", status)
	}
}

func TestRolloverKeepsDataWhenAutosaveFails(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 50, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(61)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.repo.FailUpserts = true

	f.clock.Advance(15 * time.Minute)
	f.session.Tick(context.Background())

	status := f.session.Status()
	if status.CurrentHour != 10 {
		t.Fatalf("tracked hour = %d, want 10", status.CurrentHour)
	}
	if !status.UnsavedLocked {
		t.Fatal("failed rollover autosave must be surfaced, not silent")
	}
	record := f.session.Record()
	if got := record.Value("stator_winding_temp_c"); got.Numeric == nil || *got.Numeric != 61 {
		t.Fatalf("in-memory edits lost after failed autosave: %+v", got)
	}
}

func TestSelectHourRecoversFlaggedRolloverEdits(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 50, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(61)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.repo.FailUpserts = true
	f.clock.Advance(15 * time.Minute) // 10:05, hour 9 has expired
	f.session.Tick(context.Background())
	if !f.session.Status().UnsavedLocked {
		t.Fatal("fixture expects a flagged failed autosave")
	}

	f.repo.FailUpserts = false
	if err := f.session.SelectHour(context.Background(), 10); err != nil {
		t.Fatalf("select hour after store recovery: %v", err)
	}

	saved, err := f.repo.Get(context.Background(), "op-1", f.entity, f.date, 9)
	if err != nil {
		t.Fatalf("flagged edits were not persisted on navigation: %v", err)
	}
	if got := saved.Value("stator_winding_temp_c"); got.Numeric == nil || *got.Numeric != 61 {
		t.Fatalf("persisted value = %+v, want 61", got)
	}
	status := f.session.Status()
	if status.SelectedHour != 10 || status.Dirty || status.UnsavedLocked {
		t.Fatalf("unexpected status after recovered switch: %+v", status)
	}
}

func TestSelectHourNeverDiscardsLockedEdits(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 50, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(61)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.repo.FailUpserts = true
	f.clock.Advance(15 * time.Minute)
	f.session.Tick(context.Background())

	// Store still down: navigating away must abort, not drop the edits.
	if err := f.session.SelectHour(context.Background(), 10); err == nil {
		t.Fatal("expected hour switch to fail while flagged edits cannot be saved")
	}

	status := f.session.Status()
	if status.SelectedHour != 9 {
		t.Fatalf("selected hour = %d, want 9 (no navigation on failure)", status.SelectedHour)
	}
	if !status.Dirty || !status.UnsavedLocked {
		t.Fatalf("flagged edits must survive an aborted switch: %+v", status)
	}
	record := f.session.Record()
	if got := record.Value("stator_winding_temp_c"); got.Numeric == nil || *got.Numeric != 61 {
		t.Fatalf("in-memory edits lost: %+v", got)
	}
}

func TestDiscardEditsIsTheOnlyWayOut(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 50, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(61)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.clock.Advance(2 * time.Hour) // 11:50, hour 9 is beyond the grace window
	f.session.Tick(context.Background())
	if !f.session.Status().UnsavedLocked {
		t.Fatal("fixture expects edits locked beyond the grace window")
	}
	if err := f.session.SelectHour(context.Background(), 11); err == nil {
		t.Fatal("expected hour switch to fail for edits beyond the grace window")
	}

	if err := f.session.DiscardEdits(context.Background()); err != nil {
		t.Fatalf("discard edits: %v", err)
	}
	status := f.session.Status()
	if status.Dirty || status.UnsavedLocked {
		t.Fatalf("discard must clear the flags: %+v", status)
	}
	if !f.session.Record().IsEmpty() {
		t.Fatal("discard must reload the persisted (empty) record")
	}
	if err := f.session.SelectHour(context.Background(), 11); err != nil {
		t.Fatalf("select hour after explicit discard: %v", err)
	}
	if f.repo.UpsertCount != 0 {
		t.Fatalf("discarded edits must never be persisted, saw %d upserts", f.repo.UpsertCount)
	}
}

func TestTickWithoutHourChangeIsNoop(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 10, 0, 0, time.UTC)
	f := newSessionFixture(t, now)

	if _, err := f.session.SetField("vibration_mm_s", hourlylog.Numf(2)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.clock.Advance(time.Minute)
	f.session.Tick(context.Background())

	if f.repo.UpsertCount != 0 {
		t.Fatalf("tick within the same hour saved %d times", f.repo.UpsertCount)
	}
	if !f.session.Status().Dirty {
		t.Fatal("dirty flag must survive a no-op tick")
	}
}

func TestDebounceCollapsesEditBursts(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 5, 0, 0, time.UTC)
	f := newSessionFixture(t, now, WithDebounceDelay(150*time.Millisecond))

	for _, value := range []float64{55, 57, 59} {
		if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(value)); err != nil {
			t.Fatalf("set field: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !f.session.Status().Dirty {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if f.repo.UpsertCount != 1 {
		t.Fatalf("debounced burst produced %d saves, want 1", f.repo.UpsertCount)
	}
	saved, err := f.repo.Get(context.Background(), "op-1", f.entity, f.date, 10)
	if err != nil {
		t.Fatalf("debounced save missing: %v", err)
	}
	if got := saved.Value("stator_winding_temp_c"); got.Numeric == nil || *got.Numeric != 59 {
		t.Fatalf("debounced save holds %+v, want the last edit 59", got)
	}
}

func TestDebounceSkipsEmptyRecord(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 5, 0, 0, time.UTC)
	f := newSessionFixture(t, now, WithDebounceDelay(50*time.Millisecond))

	// A zero reading is the unset sentinel; the record stays empty and the
	// debounce fire must not persist it.
	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(0)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if f.repo.UpsertCount != 0 {
		t.Fatalf("empty record saved %d times, want 0", f.repo.UpsertCount)
	}
}

func TestSaveServicePublishesProblemEvents(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 10, 0, 0, time.UTC)
	repo := memory.NewRecordRepository()
	clock := newFakeClock(now)
	ranges, err := LoadRangeConfig("")
	if err != nil {
		t.Fatalf("range config: %v", err)
	}
	bus := eventing.NewInMemoryBus()
	var got []events.ProblemDetected
	eventing.SubscribeTyped(bus, func(_ context.Context, event events.ProblemDetected) error {
		got = append(got, event)
		return nil
	})

	saves, err := NewSaveService(repo, repo, ranges, hourlylog.NewEditPolicy(time.UTC), bus, log.Default(), WithSaveClock(clock))
	if err != nil {
		t.Fatalf("save service: %v", err)
	}

	entity := hourlylog.EntityRef{Kind: hourlylog.KindGenerator, Unit: 1}
	record := hourlylog.EmptyRecord("op-1", entity, hourlylog.DayOf(now), 14)
	record.SetValue("stator_winding_temp_c", hourlylog.Numf(120)) // above 95 max
	record.SetValue("vibration_mm_s", hourlylog.Numf(2))          // in range

	if err := saves.Save(context.Background(), record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("problem events = %d, want 1", len(got))
	}
	if got[0].Field != "stator_winding_temp_c" || got[0].Value != 120 {
		t.Fatalf("unexpected problem event: %+v", got[0])
	}
	if got[0].RangeMax != 95 {
		t.Fatalf("problem event range max = %v, want 95", got[0].RangeMax)
	}
}

func TestCloseCancelsPendingDebounce(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 5, 0, 0, time.UTC)
	f := newSessionFixture(t, now, WithDebounceDelay(50*time.Millisecond))

	if _, err := f.session.SetField("stator_winding_temp_c", hourlylog.Numf(61)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	f.session.Close()
	time.Sleep(200 * time.Millisecond)

	if f.repo.UpsertCount != 0 {
		t.Fatalf("closed session saved %d times, want 0", f.repo.UpsertCount)
	}
}
