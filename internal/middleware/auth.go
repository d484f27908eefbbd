// Package middleware provides authentication, logging, tracing and rate
// limiting middleware for the Fiber app.
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "reflexion-api"
	TokenAudience = "reflexion-client"
	TokenTTL      = 7 * 24 * time.Hour

	localsUserID  = "userID"
	localsSession = "session"
)

// Session is the authenticated caller of a request.
type Session struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker func(ctx context.Context, jti string) (bool, error)

var (
	errMissingSubject = errors.New("missing subject")
	errMissingTokenID = errors.New("missing token id")
)

// IssueToken signs an HS256 token for userID.
func IssueToken(secret, userID string, ttl time.Duration, now time.Time) (string, *Session, error) {
	session := &Session{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        session.TokenID,
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, session, nil
}

// ParseToken validates signature, issuer, audience and expiry and returns
// the session the token describes.
func ParseToken(secret, tokenString string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	if claims.ID == "" {
		return nil, errMissingTokenID
	}
	return &Session{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func bearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get("Authorization"), " ")
	if !ok || scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthRequired rejects requests without a valid, unrevoked bearer token and
// stores the Session in locals and the user context.
func AuthRequired(secret string, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		session, err := ParseToken(secret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if revoked != nil {
			isRevoked, err := revoked(c.UserContext(), session.TokenID)
			if err != nil {
				observability.GlobalLogger.WarnContext(c.UserContext(), "token revocation check failed",
					"error", err.Error())
			} else if isRevoked {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals(localsUserID, session.UserID)
		c.Locals(localsSession, session)
		c.SetUserContext(observability.WithUserID(c.UserContext(), session.UserID))

		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localsUserID).(string); ok {
		return id
	}
	return ""
}

// SessionFrom returns the Session stored by AuthRequired.
func SessionFrom(c *fiber.Ctx) (*Session, bool) {
	s, ok := c.Locals(localsSession).(*Session)
	return s, ok && s != nil
}
