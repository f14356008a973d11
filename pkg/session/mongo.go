package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 10 * time.Second

// stateDocument is the MongoDB document shape for one user's state. The
// state itself is kept as its JSON encoding so the wire format matches the
// other stores byte for byte.
type stateDocument struct {
	UserID    int64     `bson:"user_id"`
	StateJSON string    `bson:"state_json"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore persists states in a MongoDB collection, upserted by user id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB, verifies the connection, and prepares
// the sessions collection with its unique index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database(database).Collection("sessions")
	_, err = collection.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create sessions index: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Load reads and decodes the state for userID, returning an empty state for
// unknown users.
func (m *MongoStore) Load(ctx context.Context, userID int64) (*State, error) {
	var doc stateDocument
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return decodeStateJSON(userID, doc.StateJSON)
}

// Save upserts the JSON encoding of state for userID.
func (m *MongoStore) Save(ctx context.Context, userID int64, state *State) error {
	raw, err := encodeStateJSON(userID, state)
	if err != nil {
		return err
	}

	_, err = m.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"state_json": raw,
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func encodeStateJSON(userID int64, state *State) (string, error) {
	if state == nil {
		state = &State{}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode state for user %d: %w", userID, err)
	}
	return string(raw), nil
}

func decodeStateJSON(userID int64, raw string) (*State, error) {
	state := &State{}
	if raw == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, fmt.Errorf("decode state for user %d: %w", userID, err)
	}
	return state, nil
}
