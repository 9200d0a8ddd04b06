package hourlylog

import (
	"context"
	"time"
)

// RecordRepository persists hourly log records. Upsert must guarantee at
// most one row per (owner, date, hour, entity) key; concurrent saves for
// the same key resolve last-write-wins at the storage layer.
type RecordRepository interface {
	Upsert(ctx context.Context, record *LogRecord) error
	Get(ctx context.Context, ownerID string, entity EntityRef, date time.Time, hour int) (*LogRecord, error)
	ListDay(ctx context.Context, ownerID string, entity EntityRef, date time.Time) ([]*LogRecord, error)
}

// FinalizationRepository stores the per (owner, date, entity) finalized
// flag. The flag is monotonic: there is deliberately no unmark operation.
type FinalizationRepository interface {
	IsFinalized(ctx context.Context, ownerID string, entity EntityRef, date time.Time) (bool, error)
	MarkFinalized(ctx context.Context, ownerID string, entity EntityRef, date time.Time, at time.Time) error
}
