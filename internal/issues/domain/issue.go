package issues

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an issue.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ErrNotFound is returned when an issue id does not exist.
var ErrNotFound = errors.New("issues: not found")

// Issue is a reported out-of-range reading awaiting attention.
type Issue struct {
	ID        string
	OwnerID   string
	EntityID  string
	Field     string
	Value     float64
	RangeMin  float64
	RangeMax  float64
	Unit      string
	Status    Status
	Message   string
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// NewIssue builds an open issue from a flagged reading.
func NewIssue(ownerID, entityID, field string, value, rangeMin, rangeMax float64, unit string, at time.Time) *Issue {
	return &Issue{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		EntityID:  entityID,
		Field:     field,
		Value:     value,
		RangeMin:  rangeMin,
		RangeMax:  rangeMax,
		Unit:      unit,
		Status:    StatusOpen,
		Message:   formatMessage(entityID, field, value, rangeMin, rangeMax, unit),
		CreatedAt: at.UTC(),
	}
}

// Close marks the issue closed. Closing an already closed issue is a
// no-op.
func (i *Issue) Close(at time.Time) {
	if i.Status == StatusClosed {
		return
	}
	i.Status = StatusClosed
	closedAt := at.UTC()
	i.ClosedAt = &closedAt
}

func formatMessage(entityID, field string, value, rangeMin, rangeMax float64, unit string) string {
	if unit != "" {
		return fmt.Sprintf("%s: %s reads %.2f %s, outside %.2f–%.2f %s", entityID, field, value, unit, rangeMin, rangeMax, unit)
	}
	return fmt.Sprintf("%s: %s reads %.2f, outside %.2f–%.2f", entityID, field, value, rangeMin, rangeMax)
}
