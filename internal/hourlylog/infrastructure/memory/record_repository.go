package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	hourlylog "hydrolog/internal/hourlylog/domain"
)

// RecordRepository is an in-memory repository for demo/testing. It
// implements both the record and finalization repository interfaces.
type RecordRepository struct {
	mu        sync.RWMutex
	records   map[string]*hourlylog.LogRecord
	finalized map[string]time.Time

	// FailUpserts makes every Upsert fail; tests use it to simulate a
	// persistence outage.
	FailUpserts bool
	// UpsertCount tallies successful upserts.
	UpsertCount int
}

// NewRecordRepository constructs a repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{
		records:   make(map[string]*hourlylog.LogRecord),
		finalized: make(map[string]time.Time),
	}
}

func recordKey(ownerID string, entity hourlylog.EntityRef, date time.Time, hour int) string {
	return fmt.Sprintf("%s|%s|%s|%02d", ownerID, entity.ID(), date.Format("2006-01-02"), hour)
}

func dayKey(ownerID string, entity hourlylog.EntityRef, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", ownerID, entity.ID(), date.Format("2006-01-02"))
}

// Upsert stores a record under its identity key.
func (r *RecordRepository) Upsert(ctx context.Context, record *hourlylog.LogRecord) error {
	_ = ctx
	if record == nil {
		return errors.New("memory record repo: nil record")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpserts {
		return errors.New("memory record repo: upsert failure injected")
	}
	r.records[recordKey(record.OwnerID, record.Entity, record.Date, record.Hour)] = record.Clone()
	r.UpsertCount++
	return nil
}

// Get loads one record or ErrNotFound.
func (r *RecordRepository) Get(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time, hour int) (*hourlylog.LogRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[recordKey(ownerID, entity, hourlylog.DayOf(date), hour)]
	if !ok {
		return nil, hourlylog.ErrNotFound
	}
	return record.Clone(), nil
}

// ListDay returns all saved records for a day, in hour order.
func (r *RecordRepository) ListDay(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time) ([]*hourlylog.LogRecord, error) {
	_ = ctx
	day := hourlylog.DayOf(date)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*hourlylog.LogRecord
	for hour := 0; hour < hourlylog.HoursPerDay; hour++ {
		if record, ok := r.records[recordKey(ownerID, entity, day, hour)]; ok {
			result = append(result, record.Clone())
		}
	}
	return result, nil
}

// IsFinalized reports the day's finalized flag.
func (r *RecordRepository) IsFinalized(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.finalized[dayKey(ownerID, entity, hourlylog.DayOf(date))]
	return ok, nil
}

// MarkFinalized sets the monotonic finalized flag.
func (r *RecordRepository) MarkFinalized(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dayKey(ownerID, entity, hourlylog.DayOf(date))
	if _, ok := r.finalized[key]; ok {
		return nil
	}
	r.finalized[key] = at
	return nil
}
