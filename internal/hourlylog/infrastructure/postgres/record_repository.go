package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	hourlylog "hydrolog/internal/hourlylog/domain"
)

// RecordRepository is a Postgres repository for hourly log records.
// The table carries a primary key on (owner_id, log_date, hour, entity_id)
// so the upsert guarantees at most one row per identity key.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Upsert inserts or overwrites the record for its identity key. Records
// are validated against their entity schema before they reach storage.
func (r *RecordRepository) Upsert(ctx context.Context, record *hourlylog.LogRecord) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if record == nil {
		return errors.New("record repo: nil record")
	}
	schema, err := hourlylog.SchemaFor(record.Entity.Kind)
	if err != nil {
		return err
	}
	if err := schema.ValidateRecord(record); err != nil {
		return err
	}
	values, err := json.Marshal(record.Values)
	if err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO hourly_log_records (
	owner_id, log_date, hour, entity_id, field_values, remarks, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (owner_id, log_date, hour, entity_id)
DO UPDATE SET
	field_values = EXCLUDED.field_values,
	remarks = EXCLUDED.remarks,
	updated_at = EXCLUDED.updated_at`,
		record.OwnerID,
		record.Date,
		record.Hour,
		record.Entity.ID(),
		values,
		record.Remarks,
		record.CreatedAt,
		record.UpdatedAt,
	)
	return err
}

// Get loads one record by identity key.
func (r *RecordRepository) Get(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time, hour int) (*hourlylog.LogRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT owner_id, log_date, hour, entity_id, field_values, remarks, created_at, updated_at
FROM hourly_log_records
WHERE owner_id = $1 AND log_date = $2 AND hour = $3 AND entity_id = $4
LIMIT 1`, ownerID, hourlylog.DayOf(date), hour, entity.ID())

	record, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hourlylog.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListDay returns all saved records for a day in hour order.
func (r *RecordRepository) ListDay(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time) ([]*hourlylog.LogRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT owner_id, log_date, hour, entity_id, field_values, remarks, created_at, updated_at
FROM hourly_log_records
WHERE owner_id = $1 AND log_date = $2 AND entity_id = $3
ORDER BY hour ASC`, ownerID, hourlylog.DayOf(date), entity.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*hourlylog.LogRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRecord(scan func(dest ...any) error) (*hourlylog.LogRecord, error) {
	var record hourlylog.LogRecord
	var entityID string
	var values []byte
	if err := scan(
		&record.OwnerID,
		&record.Date,
		&record.Hour,
		&entityID,
		&values,
		&record.Remarks,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entity, err := hourlylog.ParseEntityID(entityID)
	if err != nil {
		return nil, err
	}
	record.Entity = entity
	record.Values = make(map[string]hourlylog.FieldValue)
	if len(values) > 0 {
		if err := json.Unmarshal(values, &record.Values); err != nil {
			return nil, err
		}
	}
	record.Date = hourlylog.DayOf(record.Date)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}
