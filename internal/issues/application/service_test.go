package application

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"hydrolog/internal/eventing"
	"hydrolog/internal/hourlylog/application/events"
	issues "hydrolog/internal/issues/domain"
)

type memoryRepo struct {
	mu     sync.Mutex
	stored map[string]*issues.Issue
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stored: map[string]*issues.Issue{}}
}

func (r *memoryRepo) Insert(_ context.Context, issue *issues.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored[issue.ID] = issue
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*issues.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.stored[id]
	if !ok {
		return nil, issues.ErrNotFound
	}
	return issue, nil
}

func (r *memoryRepo) Update(_ context.Context, issue *issues.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stored[issue.ID]; !ok {
		return issues.ErrNotFound
	}
	r.stored[issue.ID] = issue
	return nil
}

func (r *memoryRepo) List(_ context.Context, ownerID string, status issues.Status) ([]*issues.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*issues.Issue
	for _, issue := range r.stored {
		if issue.OwnerID != ownerID {
			continue
		}
		if status != "" && issue.Status != status {
			continue
		}
		result = append(result, issue)
	}
	return result, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	issues []*issues.Issue
	fail   bool
}

func (n *recordingNotifier) NotifyIssue(_ context.Context, issue *issues.Issue) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issues = append(n.issues, issue)
	if n.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestProblemEventOpensIssue(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	logger := log.New(bytes.NewBuffer(nil), "", 0)
	service, err := NewService(repo, logger, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	service.Register(bus)

	event := events.ProblemDetected{
		OwnerID:  "op-1",
		EntityID: "generator-1",
		Field:    "stator_winding_temp_c",
		Value:    120,
		RangeMin: 20,
		RangeMax: 95,
		Unit:     "degC",
		At:       time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	open, err := service.List(context.Background(), "op-1", issues.StatusOpen)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open issue, got %d", len(open))
	}
	issue := open[0]
	if issue.Field != "stator_winding_temp_c" || issue.Value != 120 {
		t.Fatalf("unexpected issue %+v", issue)
	}
	if issue.ID == "" {
		t.Fatal("expected generated issue id")
	}
	if len(notifier.issues) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.issues))
	}
}

func TestNotifierFailureStillPersistsIssue(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{fail: true}
	logger := log.New(bytes.NewBuffer(nil), "", 0)
	service, err := NewService(repo, logger, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = service.HandleProblem(context.Background(), events.ProblemDetected{
		OwnerID:  "op-1",
		EntityID: "transformer-2",
		Field:    "feeder1_oil_temp_c",
		Value:    99,
		RangeMax: 85,
		At:       time.Now(),
	})
	if err != nil {
		t.Fatalf("expected delivery failure to be swallowed, got %v", err)
	}

	open, err := service.List(context.Background(), "op-1", issues.StatusOpen)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected issue to be persisted, got %d", len(open))
	}
}

func TestCloseIssue(t *testing.T) {
	repo := newMemoryRepo()
	logger := log.New(bytes.NewBuffer(nil), "", 0)
	service, err := NewService(repo, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	issue := issues.NewIssue("op-1", "generator-1", "vibration_mm_s", 6.2, 0.1, 4.5, "mm/s", time.Now())
	if err := repo.Insert(context.Background(), issue); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := service.Close(context.Background(), issue.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	stored, err := repo.Get(context.Background(), issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != issues.StatusClosed || stored.ClosedAt == nil {
		t.Fatalf("expected closed issue, got %+v", stored)
	}

	if err := service.Close(context.Background(), "missing"); err == nil {
		t.Fatal("expected not found for unknown id")
	}
}
