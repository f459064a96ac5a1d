package constraints

import (
	"context"
	"time"

	constraintRepo "meetsync/database/repository/constraint"
	"meetsync/models"
	"meetsync/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine exposes the constraint model: append-only mutation plus the active
// view consumed by candidate generation.
type Engine interface {
	// AddConstraint appends a constraint and returns its ID. It never
	// overwrites; superseded rules stay in history.
	AddConstraint(ctx context.Context, owner string, kind models.ConstraintKind, rule models.TimeWindowRule) (string, error)
	// ListActive returns the effective constraints for the owner: one per
	// (kind, rule type), newest wins.
	ListActive(ctx context.Context, owner string) ([]models.Constraint, error)
	// ActiveSet gathers active constraints for several owners. A store outage
	// degrades to an empty set; scheduling must not fail on missing
	// preferences.
	ActiveSet(ctx context.Context, owners []string) (Set, error)
	// RemoveConstraint deletes a single stored record by ID.
	RemoveConstraint(ctx context.Context, owner, constraintID string) error
}

// DefaultConstraintEngine implements Engine over the durable constraint store.
type DefaultConstraintEngine struct {
	Repo constraintRepo.ConstraintRepository
}

// AddConstraint appends a constraint record for the owner.
func (e *DefaultConstraintEngine) AddConstraint(ctx context.Context, owner string, kind models.ConstraintKind, rule models.TimeWindowRule) (string, error) {
	c := &models.Constraint{
		ID:        uuid.New().String(),
		Owner:     owner,
		Kind:      kind,
		Rule:      rule,
		CreatedAt: time.Now(),
	}
	if err := e.Repo.Append(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// ListActive returns the newest constraint per (kind, rule type) for the
// owner, in insertion order of the surviving records.
func (e *DefaultConstraintEngine) ListActive(ctx context.Context, owner string) ([]models.Constraint, error) {
	all, err := e.Repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return dedupNewest(all), nil
}

// ActiveSet builds the active constraint view for all owners. Store failures
// are logged and degrade to empty preferences for the affected owner.
func (e *DefaultConstraintEngine) ActiveSet(ctx context.Context, owners []string) (Set, error) {
	logger := utils.GetLogger()
	set := make(Set, len(owners))
	for _, owner := range owners {
		active, err := e.ListActive(ctx, owner)
		if err != nil {
			logger.Warn("constraint store unavailable, degrading to empty preferences",
				zap.String("owner", owner), zap.Error(err))
			set[owner] = nil
			continue
		}
		set[owner] = active
	}
	return set, nil
}

// RemoveConstraint deletes one record. Removing an active constraint
// reactivates whatever it superseded.
func (e *DefaultConstraintEngine) RemoveConstraint(ctx context.Context, owner, constraintID string) error {
	return e.Repo.Delete(ctx, owner, constraintID)
}

// dedupNewest keeps the most recent constraint per (kind, rule type).
func dedupNewest(all []models.Constraint) []models.Constraint {
	type key struct {
		kind models.ConstraintKind
		typ  models.RuleType
	}
	newest := make(map[key]models.Constraint)
	order := make([]key, 0, len(all))
	for _, c := range all {
		k := key{c.Kind, c.Rule.Type}
		if prev, ok := newest[k]; !ok {
			newest[k] = c
			order = append(order, k)
		} else if !c.CreatedAt.Before(prev.CreatedAt) {
			newest[k] = c
		}
	}
	out := make([]models.Constraint, 0, len(order))
	for _, k := range order {
		out = append(out, newest[k])
	}
	return out
}
