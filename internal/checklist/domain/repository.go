package checklist

import (
	"context"
	"time"
)

// Repository persists shift checklists.
type Repository interface {
	Upsert(ctx context.Context, sheet *Checklist) error
	Get(ctx context.Context, ownerID string, date time.Time, shift Shift) (*Checklist, error)
	ListDay(ctx context.Context, ownerID string, date time.Time) ([]*Checklist, error)
}
