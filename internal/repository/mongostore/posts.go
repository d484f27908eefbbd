package mongostore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"
	"reflexion/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type postRepository struct {
	posts *mongo.Collection
	likes *mongo.Collection
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", postsCollection)()

	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	if _, err := r.posts.InsertOne(ctx, postToDoc(post)); err != nil {
		return translate(err, "Post", post.ID)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get", postsCollection)()

	var doc postDoc
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translate(err, "Post", id)
	}
	return doc.toModel()
}

func (r *postRepository) UpdateBody(ctx context.Context, id, body string) error {
	defer observability.TrackQuery("update_body", postsCollection)()

	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"bodyText": body, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return translate(err, "Post", id)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) List(ctx context.Context, q repository.PostQuery) ([]models.Post, error) {
	defer observability.TrackQuery("list", postsCollection)()

	filter := bson.M{}
	if q.Feed != "" {
		filter["feed"] = q.Feed
	}
	if q.LikesBelow != nil {
		filter["likeCount"] = bson.M{"$lt": *q.LikesBelow}
	}

	opts := options.Find()
	switch q.Order {
	case repository.OrderMostLiked:
		opts.SetSort(bson.D{{Key: "likeCount", Value: -1}, {Key: "createdAt", Value: -1}})
	case repository.OrderLeastLiked:
		opts.SetSort(bson.D{{Key: "likeCount", Value: 1}, {Key: "createdAt", Value: -1}})
	default:
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "Post", q.Feed)
	}
	var docs []postDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err, "Post", q.Feed)
	}

	out := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		p, err := d.toModel()
		if err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "skipping malformed post", slog.String("post_id", d.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// Like inserts the (post, user) pair uncounted, claims it, then bumps the
// counter. A failed bump releases the claim so a retry counts the like once.
func (r *postRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	defer observability.TrackQuery("like", postsCollection)()

	if _, err := r.GetByID(ctx, postID); err != nil {
		return false, err
	}

	_, err := r.likes.InsertOne(ctx, likeDoc{PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, translate(err, "Post", postID)
	}

	pair := bson.M{"postId": postID, "userId": userID}
	claim := r.likes.FindOneAndUpdate(ctx,
		bson.M{"postId": postID, "userId": userID, "counted": false},
		bson.M{"$set": bson.M{"counted": true}},
	)
	if err := claim.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, translate(err, "Post", postID)
	}

	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$inc": bson.M{"likeCount": 1}})
	if err == nil && res.MatchedCount == 0 {
		err = models.NewNotFoundError("Post", postID)
	}
	if err != nil {
		release(ctx, r.likes, pair, slog.String("post_id", postID), slog.String("user_id", userID))
		return false, translate(err, "Post", postID)
	}
	return true, nil
}
