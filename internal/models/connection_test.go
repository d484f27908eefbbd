package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveConnectionID(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]string{
			{"alice", "bob"},
			{"u9", "u10"},
			{"Zed", "amy"},
			{"same-prefix", "same-prefix-2"},
		}
		for _, p := range pairs {
			ab, err := DeriveConnectionID(p[0], p[1])
			require.NoError(t, err)
			ba, err := DeriveConnectionID(p[1], p[0])
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
		}
	})

	t.Run("sorted join", func(t *testing.T) {
		id, err := DeriveConnectionID("bob", "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice_bob", id)
	})

	t.Run("rejects ids containing the separator", func(t *testing.T) {
		_, err := DeriveConnectionID("a_b", "c")
		assert.Equal(t, CodeValidation, ErrorCode(err))

		_, err = DeriveConnectionID("a", "b_c")
		assert.Equal(t, CodeValidation, ErrorCode(err))
	})

	t.Run("rejects empty ids", func(t *testing.T) {
		_, err := DeriveConnectionID("", "c")
		assert.Equal(t, CodeValidation, ErrorCode(err))
		_, err = DeriveConnectionID("a", "  ")
		assert.Equal(t, CodeValidation, ErrorCode(err))
	})
}

func TestNewConnection(t *testing.T) {
	now := time.Now()

	conn, err := NewConnection("zoe", "adam", now)
	require.NoError(t, err)
	assert.Equal(t, "adam_zoe", conn.ID)
	assert.Equal(t, "adam", conn.ParticipantA)
	assert.Equal(t, "zoe", conn.ParticipantB)
	assert.Equal(t, "zoe", conn.RequestedBy)
	assert.Equal(t, ConnectionStatusPending, conn.Status)
	assert.Zero(t, conn.InteractionCount)
	assert.Empty(t, conn.RevealedBy)
	assert.NoError(t, conn.Validate())

	_, err = NewConnection("adam", "adam", now)
	assert.Equal(t, CodeValidation, ErrorCode(err))
}

func TestConnection_RevealPredicates(t *testing.T) {
	conn, err := NewConnection("a", "b", time.Now())
	require.NoError(t, err)

	assert.False(t, conn.IsMutuallyRevealed())

	conn.RevealedBy = []string{"a"}
	assert.True(t, conn.HasRevealed("a"))
	assert.False(t, conn.IsMutuallyRevealed())

	conn.RevealedBy = []string{"a", "b"}
	assert.True(t, conn.IsMutuallyRevealed())
}

func TestConnection_InteractionUnlockEligible(t *testing.T) {
	conn := &Connection{InteractionCount: 29}
	assert.False(t, conn.InteractionUnlockEligible(30))

	conn.InteractionCount = 30
	assert.True(t, conn.InteractionUnlockEligible(30))

	conn.InteractionCount = 31
	assert.True(t, conn.InteractionUnlockEligible(30))
}

func TestConnection_Participants(t *testing.T) {
	conn, err := NewConnection("a", "b", time.Now())
	require.NoError(t, err)

	assert.True(t, conn.HasParticipant("a"))
	assert.False(t, conn.HasParticipant("c"))
	assert.False(t, conn.HasParticipant(""))
	assert.Equal(t, "b", conn.OtherParticipant("a"))
	assert.Equal(t, "a", conn.OtherParticipant("b"))
	assert.False(t, conn.CanDecide("a"))
	assert.True(t, conn.CanDecide("b"))
	assert.False(t, conn.CanDecide("c"))
}

func TestConnection_SyncRevealedBy(t *testing.T) {
	conn := &Connection{Reveals: []ConnectionReveal{
		{UserID: "b"}, {UserID: "a"}, {UserID: "b"},
	}}
	conn.SyncRevealedBy()
	assert.Equal(t, []string{"a", "b"}, conn.RevealedBy)
}

func TestConnection_Validate(t *testing.T) {
	base := func() *Connection {
		c, _ := NewConnection("a", "b", time.Now())
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *Connection)
	}{
		{"mismatched id", func(c *Connection) { c.ID = "x_y" }},
		{"unordered participants", func(c *Connection) { c.ParticipantA, c.ParticipantB = "b", "a"; c.ID = "b_a" }},
		{"unknown status", func(c *Connection) { c.Status = "archived" }},
		{"negative count", func(c *Connection) { c.InteractionCount = -1 }},
		{"outsider revealer", func(c *Connection) { c.RevealedBy = []string{"mallory"} }},
		{"outsider requester", func(c *Connection) { c.RequestedBy = "mallory" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
