package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reflexion/internal/disclosure"
	"reflexion/internal/models"
	"reflexion/internal/observability"
	"reflexion/internal/repository"
	"reflexion/internal/retry"
	"reflexion/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxBioChars = 500

type UserService struct {
	users  repository.UserRepository
	photos *PhotoService
	policy retry.Policy
}

type RegisterInput struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Nickname     string `json:"nickname" validate:"notblank,min=3,max=40"`
	BirthDate    string `json:"birth_date" validate:"required,birthdate"`
	Gender       string `json:"gender" validate:"required,oneof=male female non-binary other"`
	InterestedIn string `json:"interested_in" validate:"required,oneof=male female everyone"`
}

// UpdateProfileInput carries the editable "soul" fields. Nil fields are
// left unchanged.
type UpdateProfileInput struct {
	Nickname *string `json:"nickname"`
	Bio      *string `json:"bio"`
	Authors  *string `json:"authors"`
	Credo    *string `json:"credo"`
}

func NewUserService(users repository.UserRepository, photos *PhotoService) *UserService {
	return &UserService{
		users:  users,
		photos: photos,
		policy: retry.DefaultPolicy,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Nickname = strings.TrimSpace(in.Nickname)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:                 uuid.NewString(),
		Email:              in.Email,
		Password:           string(hashed),
		Nickname:           in.Nickname,
		BirthDate:          in.BirthDate,
		Gender:             in.Gender,
		InterestedIn:       in.InterestedIn,
		SubscriptionStatus: models.SubscriptionInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	observability.LogServiceCall(ctx, "UserService", "Register", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid email or password")

	user, err := retry.Do(ctx, s.policy, "user.get_by_email", func() (*models.User, error) {
		return s.users.GetByEmail(ctx, normalizeEmail(email))
	})
	if err != nil {
		if models.IsNotFound(err) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, invalid
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	})
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	user, err := retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	if in.Nickname != nil {
		nick := strings.TrimSpace(*in.Nickname)
		if n := disclosure.CharCount(nick); n < 3 || n > 40 {
			return nil, models.NewValidationError("nickname must be between 3 and 40 characters")
		}
		user.Nickname = nick
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if n := disclosure.CharCount(bio); n > maxBioChars {
			return nil, models.NewValidationError(fmt.Sprintf("bio has %d characters, limit is %d", n, maxBioChars))
		}
		user.Bio = bio
	}
	if in.Authors != nil {
		user.Authors = strings.TrimSpace(*in.Authors)
		if err := checkSoulField("authors", user.Authors); err != nil {
			return nil, err
		}
	}
	if in.Credo != nil {
		user.Credo = strings.TrimSpace(*in.Credo)
		if err := checkSoulField("credo", user.Credo); err != nil {
			return nil, err
		}
	}

	if err := retry.Exec(ctx, s.policy, "user.update_profile", func() error {
		return s.users.UpdateProfile(ctx, user)
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// SetPhoto normalises an uploaded image to WebP and attaches it to the user.
func (s *UserService) SetPhoto(ctx context.Context, userID string, upload PhotoUpload) (*models.User, error) {
	if s.photos == nil {
		return nil, models.NewInternalError(errors.New("photo storage not configured"))
	}
	if _, err := retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	}); err != nil {
		return nil, err
	}

	path, err := s.photos.Store(userID, upload)
	if err != nil {
		return nil, err
	}
	if err := retry.Exec(ctx, s.policy, "user.set_photo", func() error {
		return s.users.SetPhotoPath(ctx, userID, path)
	}); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
