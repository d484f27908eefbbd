package server

import (
	"reflexion/internal/middleware"
	"reflexion/internal/payments"

	"github.com/gofiber/fiber/v2"
)

// Checkout handles POST /api/billing/checkout
// @Summary Start a premium subscription
// @Tags billing
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{url=string}
// @Failure 409 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /billing/checkout [post]
func (s *Server) Checkout(c *fiber.Ctx) error {
	url, err := s.billingService.Checkout(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// PaymentWebhook handles POST /api/billing/webhook. The request is
// authenticated by its X-Signature header, not by a user token.
func (s *Server) PaymentWebhook(c *fiber.Ctx) error {
	if err := s.billingService.HandleWebhook(c.UserContext(), c.Body(), c.Get(payments.SignatureHeader)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
