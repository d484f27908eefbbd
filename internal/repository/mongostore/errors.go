package mongostore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const releaseTimeout = 5 * time.Second

// release flips a claimed document back to uncounted after its counter
// increment failed. It runs detached from ctx; if it fails too, the counter
// stays one short.
func release(ctx context.Context, coll *mongo.Collection, filter bson.M, attrs ...any) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	claimed := bson.M{"counted": true}
	for k, v := range filter {
		claimed[k] = v
	}
	_, err := coll.UpdateOne(rctx, claimed, bson.M{"$set": bson.M{"counted": false}})
	if err != nil {
		attrs = append(attrs, slog.String("collection", coll.Name()), slog.String("error", err.Error()))
		observability.GlobalLogger.ErrorContext(ctx, "claim release failed; counter is one short", attrs...)
	}
}

func isTransient(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "server selection error")
}

// translate maps a driver error to the application taxonomy.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewNotFoundError(resource, id)
	}
	if isTransient(err) {
		return models.NewUnavailableError(err)
	}
	return models.NewInternalError(err)
}
