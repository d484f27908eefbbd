package repository

import (
	"context"
	"log/slog"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"gorm.io/gorm"
)

// userRepository implements UserRepository
type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", "users")()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if IsUniqueViolation(err) {
			return models.NewConflictError("email is already registered")
		}
		r.log.LogError(ctx, err, "create")
		return translate(err, "User", user.ID)
	}
	r.log.LogCreate(ctx, slog.String("user_id", user.ID))
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackQuery("get", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "User", id)
	}
	if err := user.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("User", id, err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer observability.TrackQuery("get_by_email", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "User", email)
	}
	if err := user.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("User", user.ID, err)
	}
	return &user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("update_profile", "users")()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"nickname":   user.Nickname,
		"bio":        user.Bio,
		"authors":    user.Authors,
		"credo":      user.Credo,
		"updated_at": time.Now().UTC(),
	})
	return r.expectOne(ctx, res, "update_profile", user.ID)
}

func (r *userRepository) SetPhotoPath(ctx context.Context, id, path string) error {
	defer observability.TrackQuery("set_photo", "users")()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"photo_path": path,
		"updated_at": time.Now().UTC(),
	})
	return r.expectOne(ctx, res, "set_photo", id)
}

func (r *userRepository) SetSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	defer observability.TrackQuery("set_subscription", "users")()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_status": status,
		"updated_at":          time.Now().UTC(),
	})
	return r.expectOne(ctx, res, "set_subscription", id)
}

func (r *userRepository) expectOne(ctx context.Context, res *gorm.DB, op, id string) error {
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, op)
		return translate(res.Error, "User", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.log.LogUpdate(ctx, slog.String("user_id", id), slog.String("op", op))
	return nil
}
