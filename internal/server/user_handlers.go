package server

import (
	"io"

	"reflexion/internal/middleware"
	"reflexion/internal/models"
	"reflexion/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ProfileResponse is the owner's view of their account.
type ProfileResponse struct {
	*models.User
	HasPhoto bool `json:"has_photo"`
}

func toProfile(u *models.User) ProfileResponse {
	return ProfileResponse{User: u, HasPhoto: u.HasPhoto()}
}

// GetMyProfile handles GET /api/users/me
// @Summary Get my profile
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} ProfileResponse
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toProfile(user))
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update my profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toProfile(user))
}

// UploadMyPhoto handles PUT /api/users/me/photo (multipart field "photo").
func (s *Server) UploadMyPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return badRequest(c, "No file uploaded")
	}

	src, err := file.Open()
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}

	user, err := s.userService.SetPhoto(c.UserContext(), middleware.UserID(c), service.PhotoUpload{
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toProfile(user))
}

// GetFeatureFlags returns the policy flags evaluated for the current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"evaluated": s.featureFlags.Snapshot(middleware.UserID(c)),
	})
}
