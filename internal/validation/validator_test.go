package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	Nickname  string `validate:"notblank,min=3"`
	BirthDate string `validate:"required,birthdate"`
	Gender    string `validate:"required,oneof=male female non-binary other"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()
	valid := registerRequest{
		Email:     "alma@example.com",
		Password:  "secreto123",
		Nickname:  "Alma",
		BirthDate: "1990-05-17",
		Gender:    "other",
	}
	require.NoError(t, ValidateStruct(valid))

	tests := []struct {
		name    string
		mutate  func(r *registerRequest)
		wantMsg string
	}{
		{"bad email", func(r *registerRequest) { r.Email = "nope" }, "email must be a valid email"},
		{"short password", func(r *registerRequest) { r.Password = "short" }, "password must be at least 8 characters"},
		{"blank nickname", func(r *registerRequest) { r.Nickname = "   " }, "nickname is required"},
		{"bad date", func(r *registerRequest) { r.BirthDate = "17/05/1990" }, "birth_date must be a past date"},
		{"future date", func(r *registerRequest) { r.BirthDate = time.Now().AddDate(1, 0, 0).Format(BirthDateLayout) }, "birth_date must be a past date"},
		{"unknown gender", func(r *registerRequest) { r.Gender = "robot" }, "gender must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := ValidateStruct(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateStruct_JoinsMessages(t *testing.T) {
	t.Parallel()
	err := ValidateStruct(registerRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
	assert.Contains(t, err.Error(), "; ")
}

func TestAgeOn(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 17, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 36, AgeOn("1990-05-17", now))
	assert.Equal(t, 35, AgeOn("1990-05-18", now))
	assert.Equal(t, 35, AgeOn("1990-12-01", now))
	assert.Equal(t, 0, AgeOn("", now))
	assert.Equal(t, 0, AgeOn("2030-01-01", now))
}
