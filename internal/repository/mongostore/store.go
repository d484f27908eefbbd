// Package mongostore implements the repositories on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"reflexion/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	usersCollection       = "users"
	postsCollection       = "posts"
	likesCollection       = "likes"
	connectionsCollection = "connections"
	messagesCollection    = "messages"
)

// Connect dials uri and verifies the primary answers.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "feed", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "likeCount", Value: -1}}},
		},
		likesCollection: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique},
		},
		connectionsCollection: {
			{Keys: bson.D{{Key: "participantA", Value: 1}}},
			{Keys: bson.D{{Key: "participantB", Value: 1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "connectionId", Value: 1}, {Key: "clientMessageId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "connectionId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}

	for coll, idx := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

type health struct {
	client *mongo.Client
}

func (h health) Ping(ctx context.Context) error {
	return h.client.Ping(ctx, readpref.Primary())
}

// New wires the document repositories over db.
func New(db *mongo.Database) *repository.Store {
	return &repository.Store{
		Users:       &userRepository{coll: db.Collection(usersCollection)},
		Posts:       &postRepository{posts: db.Collection(postsCollection), likes: db.Collection(likesCollection)},
		Connections: &connectionRepository{conns: db.Collection(connectionsCollection), msgs: db.Collection(messagesCollection)},
		Health:      health{client: db.Client()},
	}
}
