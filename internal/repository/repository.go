// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"reflexion/internal/models"
)

// PostOrder selects the sort applied by PostRepository.List.
type PostOrder int

const (
	// OrderNewest sorts by creation time, newest first.
	OrderNewest PostOrder = iota
	// OrderMostLiked sorts by like count, highest first.
	OrderMostLiked
	// OrderLeastLiked sorts by like count, lowest first.
	OrderLeastLiked
)

// PostQuery filters a post listing. Zero values mean "no filter".
type PostQuery struct {
	Feed       string
	LikesBelow *int
	Order      PostOrder
	Limit      int
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetPhotoPath(ctx context.Context, id, path string) error
	SetSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	UpdateBody(ctx context.Context, id, body string) error
	List(ctx context.Context, q PostQuery) ([]models.Post, error)
	// Like records userID's like once and bumps LikeCount atomically.
	// It reports false when the user had already liked the post.
	Like(ctx context.Context, postID, userID string) (bool, error)
}

// ConnectionRepository defines the interface for connection data operations
type ConnectionRepository interface {
	// CreateIfAbsent inserts conn unless a connection with the same id
	// exists. It reports whether a row was created.
	CreateIfAbsent(ctx context.Context, conn *models.Connection) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Connection, error)
	ListForUser(ctx context.Context, userID string) ([]models.Connection, error)
	// TransitionStatus moves id from one status to another. It reports
	// false when the connection was not in the from status.
	TransitionStatus(ctx context.Context, id string, from, to models.ConnectionStatus) (bool, error)
	// AddRevealer adds userID to the revealedBy set. Idempotent.
	AddRevealer(ctx context.Context, id, userID string) error
	// AppendMessage stores msg and increments the parent interaction count
	// as one unit. A message whose ClientMessageID was already stored is
	// returned as-is with created=false.
	AppendMessage(ctx context.Context, msg *models.Message) (stored *models.Message, created bool, err error)
	ListMessages(ctx context.Context, connectionID string, limit, offset int) ([]models.Message, error)
}

// HealthChecker reports store reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Store bundles the repositories of one storage driver.
type Store struct {
	Users       UserRepository
	Posts       PostRepository
	Connections ConnectionRepository
	Health      HealthChecker
}
