package application

import (
	"context"
	"errors"
	"log"
	"time"

	"hydrolog/internal/eventing"
	"hydrolog/internal/hourlylog/application/events"
	hourlylog "hydrolog/internal/hourlylog/domain"
	"hydrolog/internal/observability/metrics"
)

// FinalizeService locks a completed day sheet. Finalization is monotonic:
// nothing in this service, or anywhere else in the module, clears the
// flag again.
type FinalizeService struct {
	records hourlylog.RecordRepository
	final   hourlylog.FinalizationRepository
	bus     eventing.EventBus
	clock   Clock
	logger  *log.Logger
}

// NewFinalizeService constructs the service.
func NewFinalizeService(records hourlylog.RecordRepository, final hourlylog.FinalizationRepository, bus eventing.EventBus, clock Clock, logger *log.Logger) (*FinalizeService, error) {
	if records == nil || final == nil {
		return nil, errors.New("finalize service: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FinalizeService{
		records: records,
		final:   final,
		bus:     bus,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Finalize marks a day permanently read-only. The day must have all 24
// slots saved with every required field populated; otherwise
// ErrDayIncomplete is returned. Finalizing an already-finalized day is a
// no-op.
func (s *FinalizeService) Finalize(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time) error {
	date = hourlylog.DayOf(date)

	finalized, err := s.final.IsFinalized(ctx, ownerID, entity, date)
	if err != nil {
		metrics.IncFinalize(metrics.ResultError)
		return err
	}
	if finalized {
		return nil
	}

	saved, err := s.records.ListDay(ctx, ownerID, entity, date)
	if err != nil {
		metrics.IncFinalize(metrics.ResultError)
		return err
	}
	day, err := hourlylog.NewDaySlots(ownerID, entity, date, saved)
	if err != nil {
		metrics.IncFinalize(metrics.ResultError)
		return err
	}
	if !day.IsComplete() {
		metrics.IncFinalize("incomplete")
		return hourlylog.ErrDayIncomplete
	}

	now := s.clock.Now().UTC()
	if err := s.final.MarkFinalized(ctx, ownerID, entity, date, now); err != nil {
		metrics.IncFinalize(metrics.ResultError)
		return err
	}
	metrics.IncFinalize(metrics.ResultSuccess)

	if s.bus != nil {
		err := s.bus.Publish(ctx, events.DayFinalized{
			OwnerID:  ownerID,
			EntityID: entity.ID(),
			Date:     date,
			At:       now,
		})
		if err != nil {
			s.logger.Printf("hourlylog: day finalized event error: %v", err)
		}
	}
	return nil
}
