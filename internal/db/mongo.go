package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tokenCollection = "user_tokens"
	mongoTimeout    = 5 * time.Second
)

// OpenMongo connects to uri and returns the named database.
func OpenMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	slog.Info("connected to MongoDB", "database", database)
	return client, client.Database(database), nil
}

// TokenLedger records issued identity tokens in MongoDB.
type TokenLedger struct {
	coll *mongo.Collection
}

func NewTokenLedger(database *mongo.Database) *TokenLedger {
	return &TokenLedger{coll: database.Collection(tokenCollection)}
}

func (l *TokenLedger) Record(ctx context.Context, userID int64, name, token string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := l.coll.InsertOne(ctx, bson.M{
		"id":        userID,
		"username":  name,
		"token":     token,
		"active_at": time.Now(),
	})
	return err
}

// Verify checks the token was issued to userID and bumps its active_at.
func (l *TokenLedger) Verify(ctx context.Context, userID int64, token string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	filter := bson.M{"id": userID, "token": token}
	var doc struct {
		ID int64 `bson:"id"`
	}
	if err := l.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("token lookup: %w", err)
	}

	if _, err := l.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"active_at": time.Now()}}); err != nil {
		slog.Warn("token active_at update failed", "user_id", userID, "error", err)
	}
	return nil
}
