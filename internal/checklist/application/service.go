package application

import (
	"context"
	"errors"
	"log"
	"time"

	checklist "hydrolog/internal/checklist/domain"
	"hydrolog/internal/eventing"
	"hydrolog/internal/hourlylog/application/events"
	hourlylog "hydrolog/internal/hourlylog/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service manages shift checklist submission and retrieval.
type Service struct {
	repo   checklist.Repository
	bus    eventing.EventBus
	clock  Clock
	logger *log.Logger
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

// NewService constructs a checklist service.
func NewService(repo checklist.Repository, bus eventing.EventBus, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("checklist service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{repo: repo, bus: bus, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Submit validates and persists a shift checklist. Out-of-range readings
// are published as problems so they raise issues like hourly readings do.
func (s *Service) Submit(ctx context.Context, sheet *checklist.Checklist) error {
	if sheet == nil {
		return errors.New("checklist service: nil sheet")
	}
	if err := sheet.ValidateReadings(); err != nil {
		return err
	}
	now := s.clock.Now()
	sheet.SubmittedAt = now.UTC()
	if err := s.repo.Upsert(ctx, sheet); err != nil {
		return err
	}
	s.publishProblems(ctx, sheet, now)
	return nil
}

// Get returns the checklist for a shift, or an empty one when nothing
// has been submitted yet.
func (s *Service) Get(ctx context.Context, ownerID string, date time.Time, shift checklist.Shift) (*checklist.Checklist, error) {
	sheet, err := s.repo.Get(ctx, ownerID, date, shift)
	if err != nil {
		if errors.Is(err, hourlylog.ErrNotFound) {
			return checklist.NewChecklist(ownerID, date, shift)
		}
		return nil, err
	}
	return sheet, nil
}

// ListDay returns all submitted checklists for a day.
func (s *Service) ListDay(ctx context.Context, ownerID string, date time.Time) ([]*checklist.Checklist, error) {
	return s.repo.ListDay(ctx, ownerID, date)
}

func (s *Service) publishProblems(ctx context.Context, sheet *checklist.Checklist, now time.Time) {
	if s.bus == nil {
		return
	}
	for key, value := range sheet.Readings {
		item, ok := checklist.ItemSpecFor(key)
		if !ok {
			continue
		}
		if !hourlylog.IsProblem(value, item.Spec) {
			continue
		}
		err := s.bus.Publish(ctx, events.ProblemDetected{
			OwnerID:  sheet.OwnerID,
			EntityID: "checklist-" + string(sheet.Shift),
			Field:    key,
			Value:    value,
			RangeMin: item.Spec.Acceptable.Min,
			RangeMax: item.Spec.Acceptable.Max,
			Unit:     item.Spec.Unit,
			At:       now.UTC(),
		})
		if err != nil {
			s.logger.Printf("checklist: problem event error: %v", err)
		}
	}
}
