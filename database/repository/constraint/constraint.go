package constraintRepo

import (
	"context"

	"meetsync/models"
)

// ConstraintRepository is the durable preference store for scheduling
// constraints. Records are append-only; superseded constraints remain
// retrievable for history.
type ConstraintRepository interface {
	Append(ctx context.Context, c *models.Constraint) error
	// ListByOwner returns every stored constraint for the owner, oldest first.
	ListByOwner(ctx context.Context, owner string) ([]models.Constraint, error)
	Delete(ctx context.Context, owner, constraintID string) error
}
