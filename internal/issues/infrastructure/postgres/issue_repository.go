package postgres

import (
	"context"
	"database/sql"
	"errors"

	issues "hydrolog/internal/issues/domain"
)

// IssueRepository is a Postgres repository for issues.
type IssueRepository struct {
	db *sql.DB
}

// NewIssueRepository constructs a repository.
func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Insert stores a new issue.
func (r *IssueRepository) Insert(ctx context.Context, issue *issues.Issue) error {
	if r == nil || r.db == nil {
		return errors.New("issue repo: nil db")
	}
	if issue == nil {
		return errors.New("issue repo: nil issue")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO issues (
	id, owner_id, entity_id, field, value, range_min, range_max, unit,
	status, message, created_at, closed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`,
		issue.ID,
		issue.OwnerID,
		issue.EntityID,
		issue.Field,
		issue.Value,
		issue.RangeMin,
		issue.RangeMax,
		issue.Unit,
		string(issue.Status),
		issue.Message,
		issue.CreatedAt,
		issue.ClosedAt,
	)
	return err
}

// Get loads one issue by id.
func (r *IssueRepository) Get(ctx context.Context, id string) (*issues.Issue, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("issue repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, entity_id, field, value, range_min, range_max, unit,
	status, message, created_at, closed_at
FROM issues
WHERE id = $1
LIMIT 1`, id)

	issue, err := scanIssue(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, issues.ErrNotFound
		}
		return nil, err
	}
	return issue, nil
}

// Update overwrites the mutable fields of an issue.
func (r *IssueRepository) Update(ctx context.Context, issue *issues.Issue) error {
	if r == nil || r.db == nil {
		return errors.New("issue repo: nil db")
	}
	if issue == nil {
		return errors.New("issue repo: nil issue")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE issues
SET status = $2, closed_at = $3
WHERE id = $1`, issue.ID, string(issue.Status), issue.ClosedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return issues.ErrNotFound
	}
	return nil
}

// List returns an owner's issues, newest first. An empty status returns
// all of them.
func (r *IssueRepository) List(ctx context.Context, ownerID string, status issues.Status) ([]*issues.Issue, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("issue repo: nil db")
	}
	query := `
SELECT id, owner_id, entity_id, field, value, range_min, range_max, unit,
	status, message, created_at, closed_at
FROM issues
WHERE owner_id = $1`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += `
ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*issues.Issue
	for rows.Next() {
		issue, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanIssue(scan func(dest ...any) error) (*issues.Issue, error) {
	var issue issues.Issue
	var status string
	var closedAt sql.NullTime
	if err := scan(
		&issue.ID,
		&issue.OwnerID,
		&issue.EntityID,
		&issue.Field,
		&issue.Value,
		&issue.RangeMin,
		&issue.RangeMax,
		&issue.Unit,
		&status,
		&issue.Message,
		&issue.CreatedAt,
		&closedAt,
	); err != nil {
		return nil, err
	}
	issue.Status = issues.Status(status)
	issue.CreatedAt = issue.CreatedAt.UTC()
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		issue.ClosedAt = &at
	}
	return &issue, nil
}
