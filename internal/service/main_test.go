package service

import (
	"context"
	"testing"
	"time"

	"reflexion/internal/database"
	"reflexion/internal/models"
	"reflexion/internal/repository"
	"reflexion/internal/retry"

	"github.com/stretchr/testify/require"
)

// fastPolicy keeps retry tests quick.
var fastPolicy = retry.Policy{
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	MaxElapsed:      time.Second,
}

// newTestStore returns gorm repositories over a private in-memory SQLite.
func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewGormStore(db)
}

func seedUser(t *testing.T, users repository.UserRepository, id string) *models.User {
	t.Helper()
	u := &models.User{
		ID:                 id,
		Email:              id + "@example.com",
		Password:           "hash",
		Nickname:           id,
		BirthDate:          "1990-01-01",
		SubscriptionStatus: models.SubscriptionInactive,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "error: %v", err)
}
