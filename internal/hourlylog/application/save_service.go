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

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// SaveService is the save boundary for hourly records. Every write path
// lands here, and the boundary re-checks editability itself rather than
// trusting the caller: a write to a locked hour fails closed even if a
// UI let it through.
type SaveService struct {
	records hourlylog.RecordRepository
	final   hourlylog.FinalizationRepository
	ranges  *RangeConfig
	policy  hourlylog.EditPolicy
	bus     eventing.EventBus
	clock   Clock
	logger  *log.Logger
}

// SaveServiceOption customizes the save service.
type SaveServiceOption func(*SaveService)

// WithSaveClock assigns a clock.
func WithSaveClock(clock Clock) SaveServiceOption {
	return func(s *SaveService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSaveService constructs the save boundary.
func NewSaveService(records hourlylog.RecordRepository, final hourlylog.FinalizationRepository, ranges *RangeConfig, policy hourlylog.EditPolicy, bus eventing.EventBus, logger *log.Logger, opts ...SaveServiceOption) (*SaveService, error) {
	if records == nil || final == nil {
		return nil, errors.New("save service: nil repository")
	}
	if ranges == nil {
		return nil, errors.New("save service: nil range config")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &SaveService{
		records: records,
		final:   final,
		ranges:  ranges,
		policy:  policy,
		bus:     bus,
		clock:   SystemClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Save persists a record for its current wall-clock hour. Returns
// ErrDayFinalized or ErrHourLocked when the target slot is not editable.
func (s *SaveService) Save(ctx context.Context, record *hourlylog.LogRecord) error {
	return s.save(ctx, record, false)
}

// SaveExpiring persists a record for the hour that has just rolled over.
// The strict current-hour check is relaxed to the immediately preceding
// hour so a rollover autosave does not discard the operator's in-progress
// edits; every other lock (finalized day, older hours, other days) still
// fails closed.
func (s *SaveService) SaveExpiring(ctx context.Context, record *hourlylog.LogRecord) error {
	return s.save(ctx, record, true)
}

func (s *SaveService) save(ctx context.Context, record *hourlylog.LogRecord, expiring bool) error {
	if record == nil {
		return errors.New("save service: nil record")
	}
	schema, err := hourlylog.SchemaFor(record.Entity.Kind)
	if err != nil {
		return err
	}
	if err := schema.ValidateRecord(record); err != nil {
		return err
	}

	now := s.clock.Now()
	started := now

	finalized, err := s.final.IsFinalized(ctx, record.OwnerID, record.Entity, record.Date)
	if err != nil {
		metrics.ObserveSave(metrics.ResultError, time.Since(started))
		return err
	}
	if finalized {
		metrics.IncSaveRejected(metrics.RejectReasonFinalized)
		return hourlylog.ErrDayFinalized
	}
	if !s.editable(record, now, expiring) {
		metrics.IncSaveRejected(metrics.RejectReasonLocked)
		return hourlylog.ErrHourLocked
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now.UTC()
	}
	record.UpdatedAt = now.UTC()
	if err := s.records.Upsert(ctx, record); err != nil {
		metrics.ObserveSave(metrics.ResultError, time.Since(started))
		return err
	}
	metrics.ObserveSave(metrics.ResultSuccess, time.Since(started))

	s.publishSaved(ctx, record, now)
	s.publishProblems(ctx, record, now)
	return nil
}

func (s *SaveService) editable(record *hourlylog.LogRecord, now time.Time, expiring bool) bool {
	if s.policy.IsEditable(record.Date, record.Hour, false, now) {
		return true
	}
	if !expiring {
		return false
	}
	// Rollover grace: the slot that was current one hour ago.
	return s.policy.IsEditable(record.Date, record.Hour, false, now.Add(-time.Hour))
}

// DaySheet loads the 24-slot sheet and its finalized flag.
func (s *SaveService) DaySheet(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time) (*hourlylog.DaySlots, bool, error) {
	records, err := s.records.ListDay(ctx, ownerID, entity, date)
	if err != nil {
		return nil, false, err
	}
	day, err := hourlylog.NewDaySlots(ownerID, entity, date, records)
	if err != nil {
		return nil, false, err
	}
	finalized, err := s.final.IsFinalized(ctx, ownerID, entity, date)
	if err != nil {
		return nil, false, err
	}
	return day, finalized, nil
}

// Load returns the persisted record for a slot, or the canonical empty
// record when nothing has been saved yet.
func (s *SaveService) Load(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time, hour int) (*hourlylog.LogRecord, error) {
	record, err := s.records.Get(ctx, ownerID, entity, date, hour)
	if err != nil {
		if errors.Is(err, hourlylog.ErrNotFound) {
			return hourlylog.EmptyRecord(ownerID, entity, date, hour), nil
		}
		return nil, err
	}
	return record, nil
}

// Ranges exposes the configured range set for an entity kind.
func (s *SaveService) Ranges(kind hourlylog.EntityKind) hourlylog.RangeSet {
	return s.ranges.For(kind)
}

// Policy exposes the edit policy shared with sessions and handlers.
func (s *SaveService) Policy() hourlylog.EditPolicy {
	return s.policy
}

func (s *SaveService) publishSaved(ctx context.Context, record *hourlylog.LogRecord, now time.Time) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, events.RecordSaved{
		OwnerID:  record.OwnerID,
		EntityID: record.Entity.ID(),
		Date:     record.Date,
		Hour:     record.Hour,
		SavedAt:  now.UTC(),
	})
	if err != nil {
		s.logger.Printf("hourlylog: record saved event error: %v", err)
	}
}

func (s *SaveService) publishProblems(ctx context.Context, record *hourlylog.LogRecord, now time.Time) {
	ranges := s.ranges.For(record.Entity.Kind)
	for key, value := range record.Values {
		if value.Numeric == nil {
			continue
		}
		spec := ranges.Spec(key)
		if !hourlylog.IsProblem(*value.Numeric, spec) {
			continue
		}
		metrics.IncProblemFlagged(string(record.Entity.Kind))
		if s.bus == nil {
			continue
		}
		err := s.bus.Publish(ctx, events.ProblemDetected{
			OwnerID:  record.OwnerID,
			EntityID: record.Entity.ID(),
			Field:    key,
			Value:    *value.Numeric,
			RangeMin: spec.Acceptable.Min,
			RangeMax: spec.Acceptable.Max,
			Unit:     spec.Unit,
			At:       now.UTC(),
		})
		if err != nil {
			s.logger.Printf("hourlylog: problem event error: %v", err)
		}
	}
}
