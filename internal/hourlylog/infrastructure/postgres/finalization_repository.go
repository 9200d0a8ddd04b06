package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	hourlylog "hydrolog/internal/hourlylog/domain"
)

// FinalizationRepository stores the per-day finalized flag. There is no
// delete or unmark statement here; the flag is monotonic by construction.
type FinalizationRepository struct {
	db *sql.DB
}

// NewFinalizationRepository constructs a repository.
func NewFinalizationRepository(db *sql.DB) *FinalizationRepository {
	return &FinalizationRepository{db: db}
}

// IsFinalized reports whether the day sheet has been locked.
func (r *FinalizationRepository) IsFinalized(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("finalization repo: nil db")
	}
	var finalizedAt time.Time
	err := r.db.QueryRowContext(ctx, `
SELECT finalized_at
FROM finalized_days
WHERE owner_id = $1 AND log_date = $2 AND entity_id = $3
LIMIT 1`, ownerID, hourlylog.DayOf(date), entity.ID()).Scan(&finalizedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkFinalized sets the finalized flag. A conflicting insert keeps the
// original finalization timestamp.
func (r *FinalizationRepository) MarkFinalized(ctx context.Context, ownerID string, entity hourlylog.EntityRef, date time.Time, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("finalization repo: nil db")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO finalized_days (owner_id, log_date, entity_id, finalized_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner_id, log_date, entity_id) DO NOTHING`,
		ownerID, hourlylog.DayOf(date), entity.ID(), at)
	return err
}
