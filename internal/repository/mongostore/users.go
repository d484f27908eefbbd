package mongostore

import (
	"context"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepository struct {
	coll *mongo.Collection
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", usersCollection)()

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = models.SubscriptionInactive
	}

	if _, err := r.coll.InsertOne(ctx, userToDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewConflictError("email is already registered")
		}
		return translate(err, "User", user.ID)
	}
	return nil
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err, "User", key)
	}
	return doc.toModel()
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackQuery("get", usersCollection)()
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer observability.TrackQuery("get_by_email", usersCollection)()
	return r.findOne(ctx, bson.M{"email": email}, email)
}

func (r *userRepository) set(ctx context.Context, id string, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return translate(err, "User", id)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("update_profile", usersCollection)()
	return r.set(ctx, user.ID, bson.M{
		"nickname": user.Nickname,
		"bio":      user.Bio,
		"authors":  user.Authors,
		"credo":    user.Credo,
	})
}

func (r *userRepository) SetPhotoPath(ctx context.Context, id, path string) error {
	defer observability.TrackQuery("set_photo", usersCollection)()
	return r.set(ctx, id, bson.M{"photoPath": path})
}

func (r *userRepository) SetSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	defer observability.TrackQuery("set_subscription", usersCollection)()
	return r.set(ctx, id, bson.M{"subscriptionStatus": string(status)})
}
