package mongostore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type connectionRepository struct {
	conns *mongo.Collection
	msgs  *mongo.Collection
}

// CreateIfAbsent upserts with $setOnInsert, so a second request for the same
// pair leaves the stored document untouched.
func (r *connectionRepository) CreateIfAbsent(ctx context.Context, conn *models.Connection) (bool, error) {
	defer observability.TrackQuery("create_if_absent", connectionsCollection)()

	doc := connectionToDoc(conn)
	res, err := r.conns.UpdateOne(ctx,
		bson.M{"_id": conn.ID},
		bson.M{"$setOnInsert": bson.M{
			"participantA":     doc.ParticipantA,
			"participantB":     doc.ParticipantB,
			"requestedBy":      doc.RequestedBy,
			"status":           doc.Status,
			"interactionCount": doc.InteractionCount,
			"revealedBy":       doc.RevealedBy,
			"createdAt":        doc.CreatedAt,
			"updatedAt":        doc.UpdatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// Two concurrent upserts can race on _id; the loser sees a duplicate key.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, translate(err, "Connection", conn.ID)
	}
	return res.UpsertedCount > 0, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	defer observability.TrackQuery("get", connectionsCollection)()

	var doc connectionDoc
	if err := r.conns.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translate(err, "Connection", id)
	}
	return doc.toModel()
}

func (r *connectionRepository) ListForUser(ctx context.Context, userID string) ([]models.Connection, error) {
	defer observability.TrackQuery("list_for_user", connectionsCollection)()

	filter := bson.M{"$or": bson.A{
		bson.M{"participantA": userID},
		bson.M{"participantB": userID},
	}}
	cursor, err := r.conns.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, "Connection", userID)
	}
	var docs []connectionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err, "Connection", userID)
	}

	out := make([]models.Connection, 0, len(docs))
	for _, d := range docs {
		c, err := d.toModel()
		if err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "skipping malformed connection", slog.String("connection_id", d.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *connectionRepository) TransitionStatus(ctx context.Context, id string, from, to models.ConnectionStatus) (bool, error) {
	defer observability.TrackQuery("transition_status", connectionsCollection)()

	res, err := r.conns.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, translate(err, "Connection", id)
	}
	return res.ModifiedCount > 0, nil
}

func (r *connectionRepository) AddRevealer(ctx context.Context, id, userID string) error {
	defer observability.TrackQuery("add_revealer", connectionsCollection)()

	res, err := r.conns.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"revealedBy": userID}},
	)
	if err != nil {
		return translate(err, "Connection", id)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Connection", id)
	}
	return nil
}

// AppendMessage inserts the message uncounted, claims it, then increments the
// parent counter. A failed increment releases the claim, so retrying with the
// same ClientMessageID counts the message exactly once.
func (r *connectionRepository) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	defer observability.TrackQuery("append_message", messagesCollection)()

	if _, err := r.GetByID(ctx, msg.ConnectionID); err != nil {
		return nil, false, err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := r.msgs.InsertOne(ctx, messageToDoc(msg))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, translate(err, "Connection", msg.ConnectionID)
	}

	var claimed messageDoc
	err = r.msgs.FindOneAndUpdate(ctx,
		bson.M{"connectionId": msg.ConnectionID, "clientMessageId": msg.ClientMessageID, "counted": false},
		bson.M{"$set": bson.M{"counted": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&claimed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		stored, err := r.findByClientID(ctx, msg.ConnectionID, msg.ClientMessageID)
		return stored, false, err
	}
	if err != nil {
		return nil, false, translate(err, "Connection", msg.ConnectionID)
	}

	res, err := r.conns.UpdateOne(ctx,
		bson.M{"_id": msg.ConnectionID},
		bson.M{
			"$inc": bson.M{"interactionCount": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err == nil && res.MatchedCount == 0 {
		err = models.NewNotFoundError("Connection", msg.ConnectionID)
	}
	if err != nil {
		release(ctx, r.msgs, bson.M{"_id": claimed.ID},
			slog.String("connection_id", msg.ConnectionID),
			slog.String("message_id", claimed.ID),
		)
		return nil, false, translate(err, "Connection", msg.ConnectionID)
	}

	stored, err := claimed.toModel()
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (r *connectionRepository) findByClientID(ctx context.Context, connectionID, clientID string) (*models.Message, error) {
	var doc messageDoc
	if err := r.msgs.FindOne(ctx, bson.M{"connectionId": connectionID, "clientMessageId": clientID}).Decode(&doc); err != nil {
		return nil, translate(err, "Message", clientID)
	}
	return doc.toModel()
}

func (r *connectionRepository) ListMessages(ctx context.Context, connectionID string, limit, offset int) ([]models.Message, error) {
	defer observability.TrackQuery("list_messages", messagesCollection)()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.msgs.Find(ctx, bson.M{"connectionId": connectionID}, opts)
	if err != nil {
		return nil, translate(err, "Connection", connectionID)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err, "Connection", connectionID)
	}

	out := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		m, err := d.toModel()
		if err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "skipping malformed message", slog.String("message_id", d.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}
