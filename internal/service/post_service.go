package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reflexion/internal/cache"
	"reflexion/internal/disclosure"
	"reflexion/internal/models"
	"reflexion/internal/observability"
	"reflexion/internal/repository"
	"reflexion/internal/retry"
	"reflexion/internal/validation"

	"github.com/google/uuid"
)

// Feed sizes.
const (
	NamedFeedLimit      = 50
	MaestrisimosLimit   = 100
	NadieMeQuiereLimit  = 50
	maxSoulFieldChars   = 300
	nadieMeQuiereCutoff = disclosure.UnlovedBelowLikes
)

type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	policy retry.Policy
	now    func() time.Time
}

type CreatePostInput struct {
	AuthorID string
	Body     string
	Authors  string
	Credo    string
	Feed     string
}

// PostView is a post as rendered in feeds: the body is truncated for
// display and the unlock state is attached.
type PostView struct {
	*models.Post
	Body    string             `json:"body"`
	Excerpt disclosure.Excerpt `json:"excerpt"`
	Limits  disclosure.Limits  `json:"limits"`
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		policy: retry.DefaultPolicy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewPostView renders p. Expanded views show everything the like count has
// unlocked; collapsed views stop at the base limit.
func NewPostView(p *models.Post, expanded bool) PostView {
	ex := disclosure.View(p.Body, p.LikeCount, expanded)
	return PostView{
		Post:    p,
		Body:    ex.Text,
		Excerpt: ex,
		Limits:  disclosure.Summary(p.LikeCount),
	}
}

func checkSoulField(name, value string) error {
	if n := disclosure.CharCount(value); n > maxSoulFieldChars {
		return models.NewValidationError(fmt.Sprintf("%s has %d characters, limit is %d", name, n, maxSoulFieldChars))
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if !models.IsNamedFeed(in.Feed) {
		return nil, models.NewValidationError(fmt.Sprintf("posts can only be written to %s, %s or %s",
			models.FeedPareja, models.FeedAmistad, models.FeedNocturno))
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("body is required")
	}
	if err := disclosure.CheckLength(body, 0); err != nil {
		observability.PostLimitRejections.Inc()
		return nil, err
	}
	authors := strings.TrimSpace(in.Authors)
	credo := strings.TrimSpace(in.Credo)
	if err := checkSoulField("authors", authors); err != nil {
		return nil, err
	}
	if err := checkSoulField("credo", credo); err != nil {
		return nil, err
	}

	author, err := retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, in.AuthorID)
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		ID:                 uuid.NewString(),
		AuthorID:           author.ID,
		DisplayName:        author.DisplayName(),
		Body:               body,
		Authors:            authors,
		Credo:              credo,
		AuthorAge:          validation.AgeOn(author.BirthDate, now),
		AuthorGender:       author.Gender,
		AuthorInterestedIn: author.InterestedIn,
		Feed:               in.Feed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidateFeeds(ctx)

	observability.LogServiceCall(ctx, "PostService", "CreatePost",
		slog.String("post_id", post.ID),
		slog.String("feed", post.Feed),
	)
	return post, nil
}

// UpdatePostBody replaces the body. The new text may use every character
// the post's likes have unlocked so far.
func (s *PostService) UpdatePostBody(ctx context.Context, postID, userID, body string) (*models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewForbiddenError("only the author can edit a post")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("body is required")
	}
	if err := disclosure.CheckLength(body, post.LikeCount); err != nil {
		observability.PostLimitRejections.Inc()
		return nil, err
	}

	if err := retry.Exec(ctx, s.policy, "post.update_body", func() error {
		return s.posts.UpdateBody(ctx, postID, body)
	}); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, postID)

	post.Body = body
	post.UpdatedAt = s.now()
	return post, nil
}

// LikePost records userID's like. Repeated likes are no-ops; liked reports
// whether this call counted.
func (s *PostService) LikePost(ctx context.Context, postID, userID string) (post *models.Post, liked bool, err error) {
	if strings.TrimSpace(postID) == "" {
		return nil, false, models.NewValidationError("post id is required")
	}
	liked, err = retry.Do(ctx, s.policy, "post.like", func() (bool, error) {
		return s.posts.Like(ctx, postID, userID)
	})
	if err != nil {
		return nil, false, err
	}
	if liked {
		observability.PostLikes.Inc()
		cache.InvalidatePost(ctx, postID)
	}

	post, err = s.GetPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return post, liked, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.NewValidationError("post id is required")
	}
	var post *models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		var fetchErr error
		post, fetchErr = retry.Do(ctx, s.policy, "post.get", func() (*models.Post, error) {
			return s.posts.GetByID(ctx, id)
		})
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Limits returns the disclosure state of a post.
func (s *PostService) Limits(ctx context.Context, id string) (disclosure.Limits, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return disclosure.Limits{}, err
	}
	return disclosure.Summary(post.LikeCount), nil
}

// FeedQuery maps a feed name onto its listing policy.
func FeedQuery(feed string) (repository.PostQuery, error) {
	switch {
	case models.IsNamedFeed(feed):
		return repository.PostQuery{Feed: feed, Order: repository.OrderNewest, Limit: NamedFeedLimit}, nil
	case feed == models.FeedMaestrisimos:
		return repository.PostQuery{Order: repository.OrderMostLiked, Limit: MaestrisimosLimit}, nil
	case feed == models.FeedNadieMeQuiere:
		below := nadieMeQuiereCutoff
		return repository.PostQuery{LikesBelow: &below, Order: repository.OrderLeastLiked, Limit: NadieMeQuiereLimit}, nil
	default:
		return repository.PostQuery{}, models.NewValidationError(fmt.Sprintf("unknown feed %q", feed))
	}
}

// ListFeed returns the posts of feed. Pages are cached briefly and retired
// whenever a post is created, edited or liked.
func (s *PostService) ListFeed(ctx context.Context, feed string) ([]models.Post, error) {
	q, err := FeedQuery(feed)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	err = cache.Aside(ctx, cache.FeedKey(ctx, feed), &posts, cache.FeedTTL, func() error {
		var fetchErr error
		posts, fetchErr = retry.Do(ctx, s.policy, "post.list", func() ([]models.Post, error) {
			return s.posts.List(ctx, q)
		})
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}
