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

func seedConnection(t *testing.T, repo ConnectionRepository, from, to string) *models.Connection {
	t.Helper()
	conn, err := models.NewConnection(from, to, time.Now())
	require.NoError(t, err)
	created, err := repo.CreateIfAbsent(context.Background(), conn)
	require.NoError(t, err)
	require.True(t, created)
	return conn
}

func newMessage(connID, sender, clientID string) *models.Message {
	return &models.Message{
		ID:              "m-" + clientID,
		ConnectionID:    connID,
		SenderID:        sender,
		Text:            "hola",
		ClientMessageID: clientID,
	}
}

func TestConnectionRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConnectionRepository(db)

	conn := seedConnection(t, repo, "bob", "alice")

	again, err := models.NewConnection("alice", "bob", time.Now())
	require.NoError(t, err)
	created, err := repo.CreateIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Connection{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.RequestedBy)
	assert.Equal(t, models.ConnectionStatusPending, got.Status)
	assert.Empty(t, got.RevealedBy)
}

func TestConnectionRepository_GetMissing(t *testing.T) {
	repo := NewConnectionRepository(newTestDB(t))
	_, err := repo.GetByID(context.Background(), "a_b")
	assert.True(t, models.IsNotFound(err))
}

func TestConnectionRepository_AddRevealerIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	conn := seedConnection(t, repo, "a", "b")

	require.NoError(t, repo.AddRevealer(ctx, conn.ID, "a"))
	require.NoError(t, repo.AddRevealer(ctx, conn.ID, "a"))

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.RevealedBy)
	assert.False(t, got.IsMutuallyRevealed())

	require.NoError(t, repo.AddRevealer(ctx, conn.ID, "b"))
	got, err = repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, got.IsMutuallyRevealed())
}

func TestConnectionRepository_AppendMessageCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	conn := seedConnection(t, repo, "a", "b")

	for i := 0; i < 5; i++ {
		_, created, err := repo.AppendMessage(ctx, newMessage(conn.ID, "a", fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
		assert.True(t, created)
	}

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.InteractionCount)

	msgs, err := repo.ListMessages(ctx, conn.ID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
}

func TestConnectionRepository_AppendMessageDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	conn := seedConnection(t, repo, "a", "b")

	first, created, err := repo.AppendMessage(ctx, newMessage(conn.ID, "a", "retry-me"))
	require.NoError(t, err)
	require.True(t, created)

	retry := newMessage(conn.ID, "a", "retry-me")
	retry.ID = "another-id"
	stored, created, err := repo.AppendMessage(ctx, retry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.InteractionCount)
}

func TestConnectionRepository_AppendMessageMissingConnection(t *testing.T) {
	repo := NewConnectionRepository(newTestDB(t))
	_, _, err := repo.AppendMessage(context.Background(), newMessage("a_b", "a", "c1"))
	assert.True(t, models.IsNotFound(err))

	msgs, err := repo.ListMessages(context.Background(), "a_b", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConnectionRepository_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	conn := seedConnection(t, repo, "a", "b")

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "a"
			if i%2 == 1 {
				sender = "b"
			}
			_, _, err := repo.AppendMessage(ctx, newMessage(conn.ID, sender, fmt.Sprintf("c%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.InteractionCount)
}

func TestConnectionRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	conn := seedConnection(t, repo, "a", "b")

	ok, err := repo.TransitionStatus(ctx, conn.ID, models.ConnectionStatusPending, models.ConnectionStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, conn.ID, models.ConnectionStatusPending, models.ConnectionStatusRejected)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusAccepted, got.Status)
}

func TestConnectionRepository_UpdatedAtIsUTC(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("ART", -3*60*60)
	t.Cleanup(func() { time.Local = local })

	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	conn := seedConnection(t, repo, "a", "b")

	_, err := repo.TransitionStatus(ctx, conn.ID, models.ConnectionStatusPending, models.ConnectionStatusAccepted)
	require.NoError(t, err)
	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	_, offset := got.UpdatedAt.Zone()
	assert.Zero(t, offset, "updated_at %s", got.UpdatedAt)

	_, _, err = repo.AppendMessage(ctx, newMessage(conn.ID, "a", "c1"))
	require.NoError(t, err)
	got, err = repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	_, offset = got.UpdatedAt.Zone()
	assert.Zero(t, offset, "updated_at %s", got.UpdatedAt)
}

func TestConnectionRepository_ListForUser(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepository(newTestDB(t))
	seedConnection(t, repo, "a", "b")
	seedConnection(t, repo, "c", "a")
	seedConnection(t, repo, "b", "c")

	conns, err := repo.ListForUser(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, conns, 2)
	for _, c := range conns {
		assert.True(t, c.HasParticipant("a"))
	}
}

func TestConnectionRepository_RejectsMalformedRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConnectionRepository(db)
	conn := seedConnection(t, repo, "a", "b")

	require.NoError(t, db.Exec("UPDATE connections SET status = 'archived' WHERE id = ?", conn.ID).Error)

	_, err := repo.GetByID(ctx, conn.ID)
	assert.Equal(t, models.CodeInvalidDocument, models.ErrorCode(err))
}
