package server

import (
	"errors"
	"os"
	"strings"

	"reflexion/internal/middleware"
	"reflexion/internal/models"
	"reflexion/internal/service"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyHeader carries the client message id of a send.
const IdempotencyHeader = "Idempotency-Key"

const defaultMessagePageSize = 50

// RequestConnection handles POST /api/connections
// @Summary Request a connection
// @Description Creates the pending connection with user_id, or returns the existing one
// @Tags connections
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{user_id=string} true "Target user"
// @Success 200 {object} service.ConnectionView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /connections [post]
func (s *Server) RequestConnection(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	userID := middleware.UserID(c)
	ctx := c.UserContext()
	id, err := s.connectionService.RequestConnection(ctx, userID, strings.TrimSpace(req.UserID))
	if err != nil {
		return respondError(c, err)
	}
	conn, err := s.connectionService.GetConnection(ctx, id, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.connectionService.View(conn, userID))
}

// ListConnections handles GET /api/connections
func (s *Server) ListConnections(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conns, err := s.connectionService.ListConnections(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	views := make([]service.ConnectionView, 0, len(conns))
	for i := range conns {
		views = append(views, s.connectionService.View(&conns[i], userID))
	}
	return c.JSON(views)
}

// GetConnection handles GET /api/connections/:id
// @Summary View a connection
// @Tags connections
// @Security BearerAuth
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} service.ConnectionView
// @Failure 403 {object} models.ErrorResponse
// @Router /connections/{id} [get]
func (s *Server) GetConnection(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conn, err := s.connectionService.GetConnection(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.connectionService.View(conn, userID))
}

// AcceptConnection handles POST /api/connections/:id/accept
func (s *Server) AcceptConnection(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conn, err := s.connectionService.AcceptConnection(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.connectionService.View(conn, userID))
}

// RejectConnection handles POST /api/connections/:id/reject
func (s *Server) RejectConnection(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conn, err := s.connectionService.RejectConnection(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.connectionService.View(conn, userID))
}

// GetMessages handles GET /api/connections/:id/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	page := parsePagination(c, defaultMessagePageSize)
	msgs, err := s.connectionService.ListMessages(c.UserContext(), c.Params("id"), middleware.UserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /api/connections/:id/messages
// @Summary Send a message
// @Description Retrying with the same Idempotency-Key (or client_message_id) returns the stored message without counting it twice
// @Tags connections
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Connection ID"
// @Param Idempotency-Key header string false "Client message id"
// @Param request body object{text=string,client_message_id=string} true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /connections/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Text            string `json:"text"`
		ClientMessageID string `json:"client_message_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	clientID := strings.TrimSpace(c.Get(IdempotencyHeader))
	if clientID == "" {
		clientID = req.ClientMessageID
	}

	msg, err := s.connectionService.SendMessage(c.UserContext(), service.SendMessageInput{
		ConnectionID:    c.Params("id"),
		SenderID:        middleware.UserID(c),
		Text:            req.Text,
		ClientMessageID: clientID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// RevealIdentity handles POST /api/connections/:id/reveal
func (s *Server) RevealIdentity(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conn, err := s.connectionService.RequestIdentityReveal(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.connectionService.View(conn, userID))
}

// GetConnectionPhoto handles GET /api/connections/:id/photo. The other
// participant's photo is served only after mutual reveal.
// @Summary Photo of the other participant
// @Tags connections
// @Security BearerAuth
// @Produce image/webp
// @Param id path string true "Connection ID"
// @Success 200 {file} binary
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /connections/{id}/photo [get]
func (s *Server) GetConnectionPhoto(c *fiber.Ctx) error {
	id := c.Params("id")
	path, err := s.connectionService.PhotoFor(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return respondError(c, models.NewNotFoundError("Photo", id))
		}
		return respondError(c, models.NewInternalError(err))
	}
	c.Set(fiber.HeaderContentType, "image/webp")
	c.Set(fiber.HeaderCacheControl, "private, no-store")
	return c.Send(data)
}
