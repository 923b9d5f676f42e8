package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-carsharing/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and verifies the connection.
func ConnectMongo(uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// snapshotDocument is the stored form of a fleet snapshot.
type snapshotDocument struct {
	ID         string    `bson:"_id"`
	State      string    `bson:"state"`
	CurrentDay int       `bson:"current_day"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// MongoSnapshotStore keeps one fleet snapshot document per ID.
type MongoSnapshotStore struct {
	Collection *mongo.Collection
	ID         string
}

// Load reads the snapshot document.
func (c *MongoSnapshotStore) Load(ctx context.Context) (models.Snapshot, error) {
	if c.Collection == nil {
		return models.Snapshot{}, fmt.Errorf("mongo collection is nil")
	}

	var doc snapshotDocument
	err := c.Collection.FindOne(ctx, bson.M{"_id": c.ID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Snapshot{}, ErrSnapshotNotFound
		}
		return models.Snapshot{}, fmt.Errorf("find snapshot %q: %w", c.ID, err)
	}

	return DecodeSnapshot([]byte(doc.State))
}

// Save replaces the snapshot document, creating it when missing.
func (c *MongoSnapshotStore) Save(ctx context.Context, snapshot models.Snapshot) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}

	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	doc := snapshotDocument{
		ID:         c.ID,
		State:      string(data),
		CurrentDay: snapshot.CurrentDay,
		UpdatedAt:  time.Now(),
	}
	_, err = c.Collection.ReplaceOne(ctx, bson.M{"_id": c.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace snapshot %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes the snapshot document.
func (c *MongoSnapshotStore) Delete(ctx context.Context) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.DeleteOne(ctx, bson.M{"_id": c.ID})
	return err
}
