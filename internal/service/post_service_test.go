package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"reflexion/internal/cache"
	"reflexion/internal/disclosure"
	"reflexion/internal/models"
	"reflexion/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

func newPostFixture(t *testing.T) (*PostService, *repository.Store) {
	t.Helper()
	store := newTestStore(t)
	author := &models.User{
		ID:           "alice",
		Email:        "alice@example.com",
		Password:     "hash",
		Nickname:     "Alicia",
		BirthDate:    "1990-06-15",
		Gender:       "mujer",
		InterestedIn: "hombre",
	}
	require.NoError(t, store.Users.Create(context.Background(), author))
	seedUser(t, store.Users, "bruno")

	svc := NewPostService(store.Posts, store.Users)
	svc.policy = fastPolicy
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestCreatePost_SnapshotsAuthor(t *testing.T) {
	svc, _ := newPostFixture(t)

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: "alice",
		Body:     "  Escribo para no olvidar.  ",
		Authors:  "Cortázar",
		Feed:     models.FeedPareja,
	})
	require.NoError(t, err)
	assert.Equal(t, "Escribo para no olvidar.", post.Body)
	assert.Equal(t, "Alicia", post.DisplayName)
	assert.Equal(t, 33, post.AuthorAge)
	assert.Equal(t, "mujer", post.AuthorGender)
	assert.Equal(t, "hombre", post.AuthorInterestedIn)
	assert.Zero(t, post.LikeCount)
}

func TestCreatePost_Rejects(t *testing.T) {
	svc, _ := newPostFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreatePostInput
		code string
	}{
		{"derived feed", CreatePostInput{AuthorID: "alice", Body: "x", Feed: models.FeedMaestrisimos}, models.CodeValidation},
		{"unknown feed", CreatePostInput{AuthorID: "alice", Body: "x", Feed: "random"}, models.CodeValidation},
		{"blank body", CreatePostInput{AuthorID: "alice", Body: "  ", Feed: models.FeedAmistad}, models.CodeValidation},
		{"over base limit", CreatePostInput{AuthorID: "alice", Body: strings.Repeat("é", disclosure.BaseLimit+1), Feed: models.FeedAmistad}, models.CodeValidation},
		{"long credo", CreatePostInput{AuthorID: "alice", Body: "x", Credo: strings.Repeat("a", 301), Feed: models.FeedAmistad}, models.CodeValidation},
		{"unknown author", CreatePostInput{AuthorID: "ghost", Body: "x", Feed: models.FeedAmistad}, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.in)
			requireCode(t, err, tt.code)
		})
	}

	_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Body: strings.Repeat("é", disclosure.BaseLimit), Feed: models.FeedAmistad})
	require.NoError(t, err, "exactly the base limit is allowed")
}

func TestUpdatePostBody_GrowsWithLikes(t *testing.T) {
	useMiniredis(t)
	svc, _ := newPostFixture(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Body: "borrador", Feed: models.FeedNocturno})
	require.NoError(t, err)

	longer := strings.Repeat("ñ", 1500)
	_, err = svc.UpdatePostBody(ctx, post.ID, "bruno", longer)
	requireCode(t, err, models.CodeForbidden)

	_, err = svc.UpdatePostBody(ctx, post.ID, "alice", longer)
	requireCode(t, err, models.CodeValidation)

	for i := 0; i < disclosure.LikesPerStep; i++ {
		_, liked, err := svc.LikePost(ctx, post.ID, fmt.Sprintf("fan%d", i))
		require.NoError(t, err)
		require.True(t, liked)
	}

	limits, err := svc.Limits(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2200, limits.MaxChars)
	assert.Equal(t, disclosure.BadgeRecent, limits.Badge)

	updated, err := svc.UpdatePostBody(ctx, post.ID, "alice", longer)
	require.NoError(t, err)
	assert.Equal(t, longer, updated.Body)

	fresh, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, longer, fresh.Body, "edit must retire the cached post")
}

func TestLikePost_OncePerUser(t *testing.T) {
	useMiniredis(t)
	svc, _ := newPostFixture(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Body: "hola", Feed: models.FeedPareja})
	require.NoError(t, err)

	got, liked, err := svc.LikePost(ctx, post.ID, "bruno")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, got.LikeCount)

	got, liked, err = svc.LikePost(ctx, post.ID, "bruno")
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 1, got.LikeCount)
}

func TestListFeed_CachedUntilInvalidated(t *testing.T) {
	useMiniredis(t)
	svc, store := newPostFixture(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Body: "uno", Feed: models.FeedPareja})
	require.NoError(t, err)

	posts, err := svc.ListFeed(ctx, models.FeedPareja)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	// Written behind the service's back: the cached page is still served.
	require.NoError(t, store.Posts.Create(ctx, &models.Post{
		ID: "sideload", AuthorID: "alice", DisplayName: "Alicia", Body: "dos", Feed: models.FeedPareja,
	}))
	posts, err = svc.ListFeed(ctx, models.FeedPareja)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Body: "tres", Feed: models.FeedPareja})
	require.NoError(t, err)
	posts, err = svc.ListFeed(ctx, models.FeedPareja)
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	empty, err := svc.ListFeed(ctx, models.FeedAmistad)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFeedQuery(t *testing.T) {
	q, err := FeedQuery(models.FeedNadieMeQuiere)
	require.NoError(t, err)
	require.NotNil(t, q.LikesBelow)
	assert.Equal(t, disclosure.UnlovedBelowLikes, *q.LikesBelow)
	assert.Equal(t, repository.OrderLeastLiked, q.Order)
	assert.Equal(t, NadieMeQuiereLimit, q.Limit)

	q, err = FeedQuery(models.FeedMaestrisimos)
	require.NoError(t, err)
	assert.Equal(t, repository.OrderMostLiked, q.Order)
	assert.Empty(t, q.Feed)

	_, err = FeedQuery("todo")
	requireCode(t, err, models.CodeValidation)
}

func TestNewPostView(t *testing.T) {
	body := strings.Repeat("a", 1500)

	collapsed := NewPostView(&models.Post{Body: body, LikeCount: 150}, false)
	assert.Equal(t, disclosure.BaseLimit, disclosure.CharCount(collapsed.Body))
	assert.True(t, collapsed.Excerpt.Truncated)
	assert.Equal(t, 2200, collapsed.Limits.MaxChars)

	expanded := NewPostView(&models.Post{Body: body, LikeCount: 150}, true)
	assert.Equal(t, body, expanded.Body)
	assert.False(t, expanded.Excerpt.Truncated)
}
