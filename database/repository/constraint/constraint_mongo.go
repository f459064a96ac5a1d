package constraintRepo

import (
	"context"
	"fmt"
	"time"

	"meetsync/config"
	"meetsync/database"
	"meetsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConstraintRepo implements ConstraintRepository using MongoDB.
type MongoConstraintRepo struct {
	coll *mongo.Collection
}

// NewMongoConstraintRepo creates a new instance of ConstraintRepository using MongoDB.
func NewMongoConstraintRepo() ConstraintRepository {
	coll := database.MongoClient.Database(config.AppConfig.MongoDatabase).Collection("constraints")
	repo := &MongoConstraintRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

// newContext creates a context with the given timeout.
func newContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// ensureIndexes creates indexes for fields frequently used in queries.
func (r *MongoConstraintRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Append inserts a new constraint record. Existing records are never updated.
func (r *MongoConstraintRepo) Append(parent context.Context, c *models.Constraint) error {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to append constraint for %s: %w", c.Owner, err)
	}
	return nil
}

// ListByOwner returns all constraints for the owner, oldest first.
func (r *MongoConstraintRepo) ListByOwner(parent context.Context, owner string) ([]models.Constraint, error) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraints for %s: %w", owner, err)
	}
	defer cursor.Close(ctx)

	var out []models.Constraint
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode constraints for %s: %w", owner, err)
	}
	return out, nil
}

// Delete removes a constraint record by its ID.
func (r *MongoConstraintRepo) Delete(parent context.Context, owner, constraintID string) error {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"id": constraintID, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete constraint %s: %w", constraintID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("constraint %s not found for owner %s", constraintID, owner)
	}
	return nil
}
