package issues

import "context"

// Repository persists issues.
type Repository interface {
	Insert(ctx context.Context, issue *Issue) error
	Get(ctx context.Context, id string) (*Issue, error)
	Update(ctx context.Context, issue *Issue) error
	List(ctx context.Context, ownerID string, status Status) ([]*Issue, error)
}
