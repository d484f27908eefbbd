package service

import (
	"context"
	"fmt"
	"testing"

	"reflexion/internal/featureflags"
	"reflexion/internal/models"
	"reflexion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectionFixture(t *testing.T, flags string) (*ConnectionService, *repository.Store) {
	t.Helper()
	store := newTestStore(t)
	for _, id := range []string{"alice", "bruno", "carla"} {
		seedUser(t, store.Users, id)
	}
	svc := NewConnectionService(store.Connections, store.Users, featureflags.NewManager(flags), 0)
	svc.policy = fastPolicy
	return svc, store
}

func TestRequestConnection_SameIDEitherDirection(t *testing.T) {
	svc, _ := newConnectionFixture(t, "")
	ctx := context.Background()

	id, err := svc.RequestConnection(ctx, "bruno", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_bruno", id)

	again, err := svc.RequestConnection(ctx, "alice", "bruno")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	conn, err := svc.GetConnection(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bruno", conn.RequestedBy, "second request must not overwrite the first")
	assert.Equal(t, models.ConnectionStatusPending, conn.Status)
}

func TestRequestConnection_Rejects(t *testing.T) {
	svc, _ := newConnectionFixture(t, "")
	ctx := context.Background()

	_, err := svc.RequestConnection(ctx, "alice", "alice")
	requireCode(t, err, models.CodeValidation)

	_, err = svc.RequestConnection(ctx, "alice", "nobody")
	requireCode(t, err, models.CodeNotFound)

	_, err = svc.RequestConnection(ctx, "alice", "bad_id")
	requireCode(t, err, models.CodeValidation)
}

func TestDecide(t *testing.T) {
	svc, _ := newConnectionFixture(t, "")
	ctx := context.Background()
	id, err := svc.RequestConnection(ctx, "alice", "bruno")
	require.NoError(t, err)

	_, err = svc.AcceptConnection(ctx, id, "alice")
	requireCode(t, err, models.CodeForbidden)

	_, err = svc.AcceptConnection(ctx, id, "carla")
	requireCode(t, err, models.CodeForbidden)

	conn, err := svc.AcceptConnection(ctx, id, "bruno")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusAccepted, conn.Status)

	_, err = svc.RejectConnection(ctx, id, "bruno")
	requireCode(t, err, models.CodeValidation)

	list, err := svc.ListConnections(ctx, "bruno")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestSendMessage_CountsOncePerClientID(t *testing.T) {
	svc, _ := newConnectionFixture(t, "")
	ctx := context.Background()
	id, err := svc.RequestConnection(ctx, "alice", "bruno")
	require.NoError(t, err)

	first, err := svc.SendMessage(ctx, SendMessageInput{ConnectionID: id, SenderID: "alice", Text: "  hola  ", ClientMessageID: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, "hola", first.Text)

	replay, err := svc.SendMessage(ctx, SendMessageInput{ConnectionID: id, SenderID: "alice", Text: "hola", ClientMessageID: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	_, err = svc.SendMessage(ctx, SendMessageInput{ConnectionID: id, SenderID: "bruno", Text: "mío", ClientMessageID: "m-1"})
	requireCode(t, err, models.CodeConflict)

	conn, err := svc.GetConnection(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, conn.InteractionCount)

	msgs, err := svc.ListMessages(ctx, id, "bruno", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestSendMessage_Validation(t *testing.T) {
	svc, _ := newConnectionFixture(t, "")
	ctx := context.Background()
	id, err := svc.RequestConnection(ctx, "alice", "bruno")
	require.NoError(t, err)

	long := make([]rune, models.MaxMessageChars+1)
	for i := range long {
		long[i] = 'ñ'
	}

	tests := []struct {
		name string
		in   SendMessageInput
		code string
	}{
		{"blank text", SendMessageInput{ConnectionID: id, SenderID: "alice", Text: "   "}, models.CodeValidation},
		{"too long", SendMessageInput{ConnectionID: id, SenderID: "alice", Text: string(long)}, models.CodeValidation},
		{"outsider", SendMessageInput{ConnectionID: id, SenderID: "carla", Text: "hi"}, models.CodeForbidden},
		{"unknown connection", SendMessageInput{ConnectionID: "alice_carla", SenderID: "alice", Text: "hi"}, models.CodeNotFound},
		{"client id too long", SendMessageInput{ConnectionID: id, SenderID: "alice", Text: "hi", ClientMessageID: string(make([]byte, 65))}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.in)
			requireCode(t, err, tt.code)
		})
	}
}

func TestRevealFlow(t *testing.T) {
	svc, store := newConnectionFixture(t, "")
	ctx := context.Background()
	id, err := svc.RequestConnection(ctx, "alice", "bruno")
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		sender := "alice"
		if i%2 == 1 {
			sender = "bruno"
		}
		_, err := svc.SendMessage(ctx, SendMessageInput{
			ConnectionID:    id,
			SenderID:        sender,
			Text:            fmt.Sprintf("mensaje %d", i),
			ClientMessageID: fmt.Sprintf("c-%d", i),
		})
		require.NoError(t, err)
	}

	conn, err := svc.GetConnection(ctx, id, "alice")
	require.NoError(t, err)
	view := svc.View(conn, "alice")
	assert.Equal(t, 30, view.InteractionCount)
	assert.True(t, view.UnlockEligible)
	assert.Equal(t, "bruno", view.OtherUserID)
	assert.False(t, view.MutuallyRevealed)

	conn, err = svc.RequestIdentityReveal(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, conn.RevealedBy)
	assert.False(t, conn.IsMutuallyRevealed())

	_, err = svc.PhotoFor(ctx, id, "alice")
	requireCode(t, err, models.CodeForbidden)

	// Repeating is a no-op.
	conn, err = svc.RequestIdentityReveal(ctx, id, "alice")
	require.NoError(t, err)
	assert.Len(t, conn.RevealedBy, 1)

	conn, err = svc.RequestIdentityReveal(ctx, id, "bruno")
	require.NoError(t, err)
	assert.True(t, conn.IsMutuallyRevealed())
	assert.True(t, svc.View(conn, "bruno").ViewerRevealed)

	_, err = svc.PhotoFor(ctx, id, "alice")
	requireCode(t, err, models.CodeNotFound)

	require.NoError(t, store.Users.SetPhotoPath(ctx, "bruno", "/photos/bruno.webp"))
	path, err := svc.PhotoFor(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, "/photos/bruno.webp", path)

	_, err = svc.PhotoFor(ctx, id, "carla")
	requireCode(t, err, models.CodeForbidden)
}

func TestRevealIgnoresThresholdByDefault(t *testing.T) {
	svc, _ := newConnectionFixture(t, "")
	ctx := context.Background()
	id, err := svc.RequestConnection(ctx, "alice", "bruno")
	require.NoError(t, err)

	conn, err := svc.RequestIdentityReveal(ctx, id, "bruno")
	require.NoError(t, err)
	assert.True(t, conn.HasRevealed("bruno"))
	assert.Equal(t, models.ConnectionStatusPending, conn.Status)
}

func TestPolicyFlags(t *testing.T) {
	ctx := context.Background()

	t.Run("enforce reveal threshold", func(t *testing.T) {
		svc, _ := newConnectionFixture(t, "enforce_reveal_threshold=on")
		id, err := svc.RequestConnection(ctx, "alice", "bruno")
		require.NoError(t, err)

		_, err = svc.RequestIdentityReveal(ctx, id, "alice")
		requireCode(t, err, models.CodeValidation)
	})

	t.Run("require accepted connection", func(t *testing.T) {
		svc, _ := newConnectionFixture(t, "require_accepted_connection=on")
		id, err := svc.RequestConnection(ctx, "alice", "bruno")
		require.NoError(t, err)

		_, err = svc.SendMessage(ctx, SendMessageInput{ConnectionID: id, SenderID: "alice", Text: "hola"})
		requireCode(t, err, models.CodeForbidden)
		_, err = svc.RequestIdentityReveal(ctx, id, "alice")
		requireCode(t, err, models.CodeForbidden)

		_, err = svc.AcceptConnection(ctx, id, "bruno")
		require.NoError(t, err)
		_, err = svc.SendMessage(ctx, SendMessageInput{ConnectionID: id, SenderID: "alice", Text: "hola"})
		require.NoError(t, err)
	})
}

func TestPolicyFlags_PercentageIsPerConnection(t *testing.T) {
	ctx := context.Background()
	const flags = "require_accepted_connection=50%,enforce_reveal_threshold=50%"
	svc, _ := newConnectionFixture(t, flags)
	manager := featureflags.NewManager(flags)

	pairs := [][2]string{{"alice", "bruno"}, {"alice", "carla"}, {"bruno", "carla"}}
	for _, pair := range pairs {
		id, err := svc.RequestConnection(ctx, pair[0], pair[1])
		require.NoError(t, err)
		want := manager.Enabled(featureflags.RequireAcceptedConnection, id)

		for i, sender := range pair {
			_, err := svc.SendMessage(ctx, SendMessageInput{
				ConnectionID:    id,
				SenderID:        sender,
				Text:            "hola",
				ClientMessageID: fmt.Sprintf("%s-%d", id, i),
			})
			if want {
				requireCode(t, err, models.CodeForbidden)
			} else {
				require.NoError(t, err, "sender %s on %s", sender, id)
			}
		}

		_, err = svc.AcceptConnection(ctx, id, pair[1])
		require.NoError(t, err)
		gated := manager.Enabled(featureflags.EnforceRevealThreshold, id)
		for _, user := range pair {
			_, err := svc.RequestIdentityReveal(ctx, id, user)
			if gated {
				requireCode(t, err, models.CodeValidation)
			} else {
				require.NoError(t, err, "user %s on %s", user, id)
			}
		}
	}
}

// flakyConns fails the first failures calls of CreateIfAbsent.
type flakyConns struct {
	repository.ConnectionRepository
	failures int
	calls    int
}

func (f *flakyConns) CreateIfAbsent(ctx context.Context, conn *models.Connection) (bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return false, models.NewUnavailableError(fmt.Errorf("connection reset"))
	}
	return f.ConnectionRepository.CreateIfAbsent(ctx, conn)
}

func TestRequestConnection_RetriesUnavailable(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store.Users, "alice")
	seedUser(t, store.Users, "bruno")

	conns := &flakyConns{ConnectionRepository: store.Connections, failures: 2}
	svc := NewConnectionService(conns, store.Users, nil, 0)
	svc.policy = fastPolicy

	id, err := svc.RequestConnection(context.Background(), "alice", "bruno")
	require.NoError(t, err)
	assert.Equal(t, "alice_bruno", id)
	assert.Equal(t, 3, conns.calls)
}
