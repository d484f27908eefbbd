package service

import (
	"context"
	"strings"
	"testing"

	"reflexion/internal/config"
	"reflexion/internal/models"
	"reflexion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:        "  Lucia@Example.com ",
		Password:     "secreto-largo",
		Nickname:     "Lucía",
		BirthDate:    "1994-03-02",
		Gender:       "female",
		InterestedIn: "everyone",
	}
}

func newUserFixture(t *testing.T) (*UserService, *repository.Store) {
	t.Helper()
	store := newTestStore(t)
	svc := NewUserService(store.Users, NewPhotoService(&config.Config{PhotoDir: t.TempDir()}))
	svc.policy = fastPolicy
	return svc, store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "lucia@example.com", user.Email)
	assert.NotEqual(t, "secreto-largo", user.Password)
	assert.Equal(t, models.SubscriptionInactive, user.SubscriptionStatus)

	got, err := svc.Authenticate(ctx, "LUCIA@example.com", "secreto-largo")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "lucia@example.com", "otra-cosa")
	requireCode(t, err, models.CodeUnauthorized)

	_, err = svc.Authenticate(ctx, "nadie@example.com", "secreto-largo")
	requireCode(t, err, models.CodeUnauthorized)

	_, err = svc.Register(ctx, validRegistration())
	requireCode(t, err, models.CodeConflict)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newUserFixture(t)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "no-at-sign" }},
		{"short password", func(in *RegisterInput) { in.Password = "corta" }},
		{"blank nickname", func(in *RegisterInput) { in.Nickname = "   " }},
		{"future birth date", func(in *RegisterInput) { in.BirthDate = "2999-01-01" }},
		{"malformed birth date", func(in *RegisterInput) { in.BirthDate = "02/03/1994" }},
		{"unknown gender", func(in *RegisterInput) { in.Gender = "robot" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			requireCode(t, err, models.CodeValidation)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	bio := "  Leo poesía de madrugada.  "
	credo := "Nada es para siempre"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Bio: &bio, Credo: &credo})
	require.NoError(t, err)
	assert.Equal(t, "Leo poesía de madrugada.", updated.Bio)
	assert.Equal(t, "Lucía", updated.Nickname, "nil fields are left unchanged")

	profile, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, credo, profile.Credo)

	short := "yo"
	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Nickname: &short})
	requireCode(t, err, models.CodeValidation)

	long := strings.Repeat("b", maxBioChars+1)
	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Bio: &long})
	requireCode(t, err, models.CodeValidation)

	_, err = svc.UpdateProfile(ctx, "ghost", UpdateProfileInput{Bio: &bio})
	requireCode(t, err, models.CodeNotFound)
}

func TestSetPhoto(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	require.False(t, user.HasPhoto())

	updated, err := svc.SetPhoto(ctx, user.ID, PhotoUpload{ContentType: "image/png", Content: pngBytes(t, 64, 64)})
	require.NoError(t, err)
	assert.True(t, updated.HasPhoto())
	assert.True(t, strings.HasSuffix(updated.PhotoPath, user.ID+".webp"))

	_, err = svc.SetPhoto(ctx, "ghost", PhotoUpload{Content: pngBytes(t, 8, 8)})
	requireCode(t, err, models.CodeNotFound)
}
