package archiveRepo

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

// ArchiveRepository persists terminal negotiation sessions for audit.
type ArchiveRepository interface {
	Save(ctx context.Context, sess *models.NegotiationSession) error
	FindByThread(ctx context.Context, threadID string) (*models.NegotiationSession, error)
}

// MongoArchiveRepo implements ArchiveRepository using MongoDB.
type MongoArchiveRepo struct {
	coll *mongo.Collection
}

// NewMongoArchiveRepo creates a new instance of ArchiveRepository using MongoDB.
func NewMongoArchiveRepo() ArchiveRepository {
	coll := database.MongoClient.Database(config.AppConfig.MongoDatabase).Collection("negotiations")
	repo := &MongoArchiveRepo{coll: coll}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "threadId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

// Save upserts the terminal session by thread. Upsert keeps the write safe to
// retry after a crash between commit and archive.
func (r *MongoArchiveRepo) Save(parent context.Context, sess *models.NegotiationSession) error {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	filter := bson.M{"threadId": sess.ThreadID}
	update := bson.M{"$set": sess}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to archive session %s: %w", sess.ThreadID, err)
	}
	return nil
}

// FindByThread returns the archived session for a thread, if any.
func (r *MongoArchiveRepo) FindByThread(parent context.Context, threadID string) (*models.NegotiationSession, error) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	var sess models.NegotiationSession
	err := r.coll.FindOne(ctx, bson.M{"threadId": threadID}).Decode(&sess)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find archived session %s: %w", threadID, err)
	}
	return &sess, nil
}
