package application

import (
	"context"
	"errors"
	"log"
	"time"

	"hydrolog/internal/eventing"
	"hydrolog/internal/hourlylog/application/events"
	issues "hydrolog/internal/issues/domain"
	"hydrolog/internal/issues/notify"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service turns flagged readings into trackable issues.
type Service struct {
	repo     issues.Repository
	notifier notify.Notifier
	clock    Clock
	logger   *log.Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithNotifier assigns an issue notifier.
func WithNotifier(notifier notify.Notifier) ServiceOption {
	return func(s *Service) { s.notifier = notifier }
}

// NewService constructs an issue service.
func NewService(repo issues.Repository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("issue service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{repo: repo, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Register subscribes the service to flagged-reading events on the bus.
func (s *Service) Register(bus eventing.EventBus) {
	if bus == nil {
		return
	}
	eventing.SubscribeTyped(bus, func(ctx context.Context, event events.ProblemDetected) error {
		return s.HandleProblem(ctx, event)
	})
}

// HandleProblem records one flagged reading as an open issue and fires
// the optional webhook. Notification failure does not fail the issue:
// the record is already persisted and listable.
func (s *Service) HandleProblem(ctx context.Context, event events.ProblemDetected) error {
	at := event.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	issue := issues.NewIssue(event.OwnerID, event.EntityID, event.Field, event.Value, event.RangeMin, event.RangeMax, event.Unit, at)
	if err := s.repo.Insert(ctx, issue); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyIssue(ctx, issue); err != nil {
			s.logger.Printf("issues: webhook delivery failed for %s: %v", issue.ID, err)
		}
	}
	return nil
}

// Close resolves an open issue.
func (s *Service) Close(ctx context.Context, id string) error {
	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	issue.Close(s.clock.Now())
	return s.repo.Update(ctx, issue)
}

// List returns issues for an owner, optionally filtered by status.
func (s *Service) List(ctx context.Context, ownerID string, status issues.Status) ([]*issues.Issue, error) {
	return s.repo.List(ctx, ownerID, status)
}
