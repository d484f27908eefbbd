package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"reflexion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = Policy{
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	MaxElapsed:      time.Second,
}

func TestDo_RetriesUnavailable(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), fastPolicy, "test", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", models.NewUnavailableError(errors.New("connection reset"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDo_DoesNotRetryValidation(t *testing.T) {
	attempts := 0
	err := Exec(context.Background(), fastPolicy, "test", func() error {
		attempts++
		return models.NewValidationError("text is required")
	})

	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	assert.Equal(t, 1, attempts)
}

func TestDo_DoesNotRetryNotFound(t *testing.T) {
	attempts := 0
	err := Exec(context.Background(), fastPolicy, "test", func() error {
		attempts++
		return models.NewNotFoundError("Connection", "a_b")
	})

	assert.True(t, models.IsNotFound(err))
	assert.Equal(t, 1, attempts)
}

func TestDo_GivesUpWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Exec(ctx, Policy{InitialInterval: 50 * time.Millisecond, MaxInterval: 50 * time.Millisecond, MaxElapsed: time.Minute}, "test", func() error {
		attempts++
		cancel()
		return models.NewUnavailableError(errors.New("timeout"))
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
