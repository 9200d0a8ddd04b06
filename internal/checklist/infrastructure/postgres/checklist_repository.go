package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	checklist "hydrolog/internal/checklist/domain"
	hourlylog "hydrolog/internal/hourlylog/domain"
)

// ChecklistRepository is a Postgres repository for shift checklists. The
// table carries a primary key on (owner_id, log_date, shift).
type ChecklistRepository struct {
	db *sql.DB
}

// NewChecklistRepository constructs a repository.
func NewChecklistRepository(db *sql.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// Upsert inserts or overwrites the checklist for its identity key.
func (r *ChecklistRepository) Upsert(ctx context.Context, sheet *checklist.Checklist) error {
	if r == nil || r.db == nil {
		return errors.New("checklist repo: nil db")
	}
	if sheet == nil {
		return errors.New("checklist repo: nil sheet")
	}
	if err := sheet.ValidateReadings(); err != nil {
		return err
	}
	readings, err := json.Marshal(sheet.Readings)
	if err != nil {
		return err
	}
	if sheet.SubmittedAt.IsZero() {
		sheet.SubmittedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO shift_checklists (
	owner_id, log_date, shift, readings, remarks, submitted_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (owner_id, log_date, shift)
DO UPDATE SET
	readings = EXCLUDED.readings,
	remarks = EXCLUDED.remarks,
	submitted_at = EXCLUDED.submitted_at`,
		sheet.OwnerID,
		sheet.Date,
		string(sheet.Shift),
		readings,
		sheet.Remarks,
		sheet.SubmittedAt,
	)
	return err
}

// Get loads one checklist by identity key.
func (r *ChecklistRepository) Get(ctx context.Context, ownerID string, date time.Time, shift checklist.Shift) (*checklist.Checklist, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("checklist repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT owner_id, log_date, shift, readings, remarks, submitted_at
FROM shift_checklists
WHERE owner_id = $1 AND log_date = $2 AND shift = $3
LIMIT 1`, ownerID, hourlylog.DayOf(date), string(shift))

	sheet, err := scanChecklist(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hourlylog.ErrNotFound
		}
		return nil, err
	}
	return sheet, nil
}

// ListDay returns all submitted checklists for a day.
func (r *ChecklistRepository) ListDay(ctx context.Context, ownerID string, date time.Time) ([]*checklist.Checklist, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("checklist repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT owner_id, log_date, shift, readings, remarks, submitted_at
FROM shift_checklists
WHERE owner_id = $1 AND log_date = $2
ORDER BY shift ASC`, ownerID, hourlylog.DayOf(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*checklist.Checklist
	for rows.Next() {
		sheet, err := scanChecklist(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, sheet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanChecklist(scan func(dest ...any) error) (*checklist.Checklist, error) {
	var sheet checklist.Checklist
	var shift string
	var readings []byte
	if err := scan(
		&sheet.OwnerID,
		&sheet.Date,
		&shift,
		&readings,
		&sheet.Remarks,
		&sheet.SubmittedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := checklist.ParseShift(shift)
	if err != nil {
		return nil, err
	}
	sheet.Shift = parsed
	sheet.Readings = map[string]float64{}
	if len(readings) > 0 {
		if err := json.Unmarshal(readings, &sheet.Readings); err != nil {
			return nil, err
		}
	}
	sheet.Date = hourlylog.DayOf(sheet.Date)
	sheet.SubmittedAt = sheet.SubmittedAt.UTC()
	return &sheet, nil
}
