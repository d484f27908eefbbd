package repository

import (
	"context"
	"log/slog"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err, "Post", post.ID)
	}
	r.log.LogCreate(ctx, slog.String("post_id", post.ID), slog.String("feed", post.Feed))
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Post", id)
	}
	if err := post.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("Post", id, err)
	}
	return &post, nil
}

func (r *postRepository) UpdateBody(ctx context.Context, id, body string) error {
	defer observability.TrackQuery("update_body", "posts")()

	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(map[string]interface{}{
		"body":       body,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update_body")
		return translate(res.Error, "Post", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	tx := r.db.WithContext(ctx).Model(&models.Post{})
	if q.Feed != "" {
		tx = tx.Where("feed = ?", q.Feed)
	}
	if q.LikesBelow != nil {
		tx = tx.Where("like_count < ?", *q.LikesBelow)
	}
	switch q.Order {
	case OrderMostLiked:
		tx = tx.Order("like_count DESC").Order("created_at DESC")
	case OrderLeastLiked:
		tx = tx.Order("like_count ASC").Order("created_at DESC")
	default:
		tx = tx.Order("created_at DESC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var posts []models.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, translate(err, "Post", q.Feed)
	}
	out := posts[:0]
	for _, p := range posts {
		if err := p.Validate(); err != nil {
			r.log.LogError(ctx, err, "list", slog.String("post_id", p.ID))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *postRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	defer observability.TrackQuery("like", "posts")()

	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Like{
			PostID: postID,
			UserID: userID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		upd := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return models.NewNotFoundError("Post", postID)
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, translate(err, "Post", postID)
	}
	if liked {
		r.log.LogUpdate(ctx, slog.String("post_id", postID), slog.String("op", "like"))
	}
	return liked, nil
}
