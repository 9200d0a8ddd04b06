package application

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	checklist "hydrolog/internal/checklist/domain"
	"hydrolog/internal/eventing"
	"hydrolog/internal/hourlylog/application/events"
	hourlylog "hydrolog/internal/hourlylog/domain"
)

type memoryRepo struct {
	mu     sync.Mutex
	sheets map[string]*checklist.Checklist
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sheets: map[string]*checklist.Checklist{}}
}

func (r *memoryRepo) key(ownerID string, date time.Time, shift checklist.Shift) string {
	return ownerID + "|" + hourlylog.DayOf(date).Format("2006-01-02") + "|" + string(shift)
}

func (r *memoryRepo) Upsert(_ context.Context, sheet *checklist.Checklist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sheets[r.key(sheet.OwnerID, sheet.Date, sheet.Shift)] = sheet
	return nil
}

func (r *memoryRepo) Get(_ context.Context, ownerID string, date time.Time, shift checklist.Shift) (*checklist.Checklist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sheet, ok := r.sheets[r.key(ownerID, date, shift)]
	if !ok {
		return nil, hourlylog.ErrNotFound
	}
	return sheet, nil
}

func (r *memoryRepo) ListDay(_ context.Context, ownerID string, date time.Time) ([]*checklist.Checklist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*checklist.Checklist
	for _, sheet := range r.sheets {
		if sheet.OwnerID == ownerID && hourlylog.SameDay(sheet.Date, date) {
			result = append(result, sheet)
		}
	}
	return result, nil
}

func TestSubmitPublishesProblemEvents(t *testing.T) {
	repo := newMemoryRepo()
	bus := eventing.NewInMemoryBus()
	logger := log.New(bytes.NewBuffer(nil), "", 0)

	var mu sync.Mutex
	var problems []events.ProblemDetected
	eventing.SubscribeTyped(bus, func(_ context.Context, event events.ProblemDetected) error {
		mu.Lock()
		defer mu.Unlock()
		problems = append(problems, event)
		return nil
	})

	service, err := NewService(repo, bus, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sheet, err := checklist.NewChecklist("op-1", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), checklist.ShiftMorning)
	if err != nil {
		t.Fatalf("new checklist: %v", err)
	}
	sheet.Readings["penstock_pressure_bar"] = 15 // above acceptable max 12
	sheet.Readings["battery_voltage_v"] = 120

	if err := service.Submit(context.Background(), sheet); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sheet.SubmittedAt.IsZero() {
		t.Fatal("expected submitted timestamp to be set")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem event, got %d", len(problems))
	}
	if problems[0].Field != "penstock_pressure_bar" {
		t.Fatalf("unexpected field %q", problems[0].Field)
	}
	if problems[0].EntityID != "checklist-morning" {
		t.Fatalf("unexpected entity id %q", problems[0].EntityID)
	}
}

func TestSubmitRejectsUnknownReadings(t *testing.T) {
	repo := newMemoryRepo()
	logger := log.New(bytes.NewBuffer(nil), "", 0)
	service, err := NewService(repo, nil, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sheet, err := checklist.NewChecklist("op-1", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), checklist.ShiftEvening)
	if err != nil {
		t.Fatalf("new checklist: %v", err)
	}
	sheet.Readings["bogus"] = 1

	if err := service.Submit(context.Background(), sheet); err == nil {
		t.Fatal("expected unknown reading to be rejected")
	}
	if len(repo.sheets) != 0 {
		t.Fatal("rejected sheet must not be persisted")
	}
}

func TestGetReturnsEmptySheetWhenUnsubmitted(t *testing.T) {
	repo := newMemoryRepo()
	logger := log.New(bytes.NewBuffer(nil), "", 0)
	service, err := NewService(repo, nil, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sheet, err := service.Get(context.Background(), "op-1", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), checklist.ShiftNight)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sheet == nil || len(sheet.Readings) != 0 {
		t.Fatalf("expected empty sheet, got %+v", sheet)
	}
	if sheet.Shift != checklist.ShiftNight {
		t.Fatalf("unexpected shift %q", sheet.Shift)
	}
}
