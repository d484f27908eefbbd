package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"reflexion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPost(t *testing.T, repo PostRepository, id, feed string, likes int, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Post{
		ID:          id,
		AuthorID:    "author",
		DisplayName: "Alma",
		Body:        "texto " + id,
		Feed:        feed,
		LikeCount:   likes,
		CreatedAt:   createdAt,
	}))
}

func TestPostRepository_ListByFeed(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(newTestDB(t))
	base := time.Now().Add(-time.Hour)

	seedPost(t, repo, "p1", models.FeedPareja, 0, base)
	seedPost(t, repo, "p2", models.FeedPareja, 0, base.Add(time.Minute))
	seedPost(t, repo, "p3", models.FeedAmistad, 0, base.Add(2*time.Minute))

	posts, err := repo.List(ctx, PostQuery{Feed: models.FeedPareja, Order: OrderNewest, Limit: 50})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "p1", posts[1].ID)
}

func TestPostRepository_ListByLikes(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(newTestDB(t))
	now := time.Now()

	seedPost(t, repo, "low", models.FeedPareja, 5, now)
	seedPost(t, repo, "mid", models.FeedAmistad, 99, now)
	seedPost(t, repo, "high", models.FeedNocturno, 700, now)

	top, err := repo.List(ctx, PostQuery{Order: OrderMostLiked, Limit: 2})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "high", top[0].ID)
	assert.Equal(t, "mid", top[1].ID)

	below := 100
	unloved, err := repo.List(ctx, PostQuery{LikesBelow: &below, Order: OrderLeastLiked, Limit: 50})
	require.NoError(t, err)
	require.Len(t, unloved, 2)
	assert.Equal(t, "low", unloved[0].ID)
	assert.Equal(t, "mid", unloved[1].ID)
}

func TestPostRepository_LikeOncePerUser(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(newTestDB(t))
	seedPost(t, repo, "p1", models.FeedPareja, 0, time.Now())

	liked, err := repo.Like(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = repo.Like(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.False(t, liked)

	post, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikeCount)
}

func TestPostRepository_LikeMissingPost(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))

	_, err := repo.Like(context.Background(), "ghost", "u1")
	assert.True(t, models.IsNotFound(err))
}

func TestPostRepository_ConcurrentLikes(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(newTestDB(t))
	seedPost(t, repo, "p1", models.FeedPareja, 0, time.Now())

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Like(ctx, "p1", fmt.Sprintf("user-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	post, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, n, post.LikeCount)
}

func TestPostRepository_UpdateBody(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(newTestDB(t))
	seedPost(t, repo, "p1", models.FeedPareja, 0, time.Now())

	require.NoError(t, repo.UpdateBody(ctx, "p1", "nuevo"))
	post, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "nuevo", post.Body)

	assert.True(t, models.IsNotFound(repo.UpdateBody(ctx, "ghost", "x")))
}
