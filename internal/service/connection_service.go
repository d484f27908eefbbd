// Package service holds the business rules that sit between HTTP handlers
// and the repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reflexion/internal/disclosure"
	"reflexion/internal/featureflags"
	"reflexion/internal/models"
	"reflexion/internal/observability"
	"reflexion/internal/repository"
	"reflexion/internal/retry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const maxClientMessageIDLen = 64

// ConnectionService manages requests, messaging and identity reveal between
// pairs of users.
type ConnectionService struct {
	conns     repository.ConnectionRepository
	users     repository.UserRepository
	flags     *featureflags.Manager
	threshold int
	policy    retry.Policy
	now       func() time.Time
}

// SendMessageInput is one logical send. ClientMessageID deduplicates
// retries of the same send.
type SendMessageInput struct {
	ConnectionID    string
	SenderID        string
	Text            string
	ClientMessageID string
}

// ConnectionView is the API projection of a connection for one viewer.
type ConnectionView struct {
	ID                string                  `json:"id"`
	Participants      []string                `json:"participants"`
	OtherUserID       string                  `json:"other_user_id"`
	RequestedBy       string                  `json:"requested_by"`
	Status            models.ConnectionStatus `json:"status"`
	InteractionCount  int                     `json:"interaction_count"`
	InteractionTarget int                     `json:"interaction_target"`
	UnlockEligible    bool                    `json:"unlock_eligible"`
	RevealedBy        []string                `json:"revealed_by"`
	ViewerRevealed    bool                    `json:"viewer_revealed"`
	MutuallyRevealed  bool                    `json:"mutually_revealed"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func NewConnectionService(
	conns repository.ConnectionRepository,
	users repository.UserRepository,
	flags *featureflags.Manager,
	threshold int,
) *ConnectionService {
	if threshold <= 0 {
		threshold = models.DefaultRevealThreshold
	}
	return &ConnectionService{
		conns:     conns,
		users:     users,
		flags:     flags,
		threshold: threshold,
		policy:    retry.DefaultPolicy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Threshold is the interaction count at which reveal is offered.
func (s *ConnectionService) Threshold() int {
	return s.threshold
}

// RequestConnection creates the pending connection between fromUser and
// toUser, or returns the id of the one that already exists.
func (s *ConnectionService) RequestConnection(ctx context.Context, fromUser, toUser string) (id string, err error) {
	ctx, span := observability.StartSpan(ctx, "ConnectionService", "RequestConnection")
	defer func() { span.End(err) }()

	conn, err := models.NewConnection(fromUser, toUser, s.now())
	if err != nil {
		return "", err
	}

	if _, err := retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, toUser)
	}); err != nil {
		return "", err
	}

	observability.ConnectionEvents.WithLabelValues(observability.EventConnectionRequested).Inc()
	created, err := retry.Do(ctx, s.policy, "connection.create", func() (bool, error) {
		return s.conns.CreateIfAbsent(ctx, conn)
	})
	if err != nil {
		return "", err
	}
	if created {
		observability.ConnectionEvents.WithLabelValues(observability.EventConnectionCreated).Inc()
		observability.LogServiceCall(ctx, "ConnectionService", "RequestConnection",
			slog.String("connection_id", conn.ID),
			slog.String("requested_by", fromUser),
		)
	}
	return conn.ID, nil
}

func (s *ConnectionService) load(ctx context.Context, id string) (*models.Connection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.NewValidationError("connection id is required")
	}
	return retry.Do(ctx, s.policy, "connection.get", func() (*models.Connection, error) {
		return s.conns.GetByID(ctx, id)
	})
}

func (s *ConnectionService) loadForParticipant(ctx context.Context, id, userID string) (*models.Connection, error) {
	conn, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conn.HasParticipant(userID) {
		return nil, models.NewForbiddenError("not a participant of this connection")
	}
	return conn, nil
}

// policyOn evaluates a policy flag against the connection id so both
// participants fall in the same rollout bucket.
func (s *ConnectionService) policyOn(flag string, conn *models.Connection) bool {
	return s.flags.Enabled(flag, conn.ID)
}

func (s *ConnectionService) requireAccepted(conn *models.Connection) error {
	if s.policyOn(featureflags.RequireAcceptedConnection, conn) &&
		conn.Status != models.ConnectionStatusAccepted {
		return models.NewForbiddenError("connection has not been accepted")
	}
	return nil
}

// GetConnection returns the connection if userID participates in it.
func (s *ConnectionService) GetConnection(ctx context.Context, id, userID string) (*models.Connection, error) {
	return s.loadForParticipant(ctx, id, userID)
}

// ListConnections returns every connection where userID is either participant.
func (s *ConnectionService) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	return retry.Do(ctx, s.policy, "connection.list", func() ([]models.Connection, error) {
		return s.conns.ListForUser(ctx, userID)
	})
}

// AcceptConnection moves a pending connection to accepted.
func (s *ConnectionService) AcceptConnection(ctx context.Context, id, userID string) (*models.Connection, error) {
	return s.decide(ctx, id, userID, models.ConnectionStatusAccepted, observability.EventConnectionAccepted)
}

// RejectConnection moves a pending connection to rejected.
func (s *ConnectionService) RejectConnection(ctx context.Context, id, userID string) (*models.Connection, error) {
	return s.decide(ctx, id, userID, models.ConnectionStatusRejected, observability.EventConnectionRejected)
}

func (s *ConnectionService) decide(ctx context.Context, id, userID string, to models.ConnectionStatus, event string) (*models.Connection, error) {
	conn, err := s.loadForParticipant(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !conn.CanDecide(userID) {
		return nil, models.NewForbiddenError("only the invited user can answer a request")
	}
	if conn.Status != models.ConnectionStatusPending {
		return nil, models.NewValidationError(fmt.Sprintf("connection is already %s", conn.Status))
	}

	moved, err := retry.Do(ctx, s.policy, "connection.transition", func() (bool, error) {
		return s.conns.TransitionStatus(ctx, id, models.ConnectionStatusPending, to)
	})
	if err != nil {
		return nil, err
	}

	conn, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !moved && conn.Status != to {
		return nil, models.NewValidationError(fmt.Sprintf("connection is already %s", conn.Status))
	}
	if moved {
		observability.ConnectionEvents.WithLabelValues(event).Inc()
		observability.LogServiceCall(ctx, "ConnectionService", "decide",
			slog.String("connection_id", id),
			slog.String("status", string(to)),
		)
	}
	return conn, nil
}

// SendMessage appends a message and bumps the interaction count by one.
// Replaying the same ClientMessageID returns the stored message and does
// not count again.
func (s *ConnectionService) SendMessage(ctx context.Context, in SendMessageInput) (msg *models.Message, err error) {
	ctx, span := observability.StartSpan(ctx, "ConnectionService", "SendMessage",
		attribute.String("connection.id", in.ConnectionID))
	defer func() { span.End(err) }()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("message text is required")
	}
	if n := disclosure.CharCount(text); n > models.MaxMessageChars {
		return nil, models.NewValidationError(fmt.Sprintf("message has %d characters, limit is %d", n, models.MaxMessageChars))
	}
	clientID := strings.TrimSpace(in.ClientMessageID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	if len(clientID) > maxClientMessageIDLen {
		return nil, models.NewValidationError("client message id is too long")
	}

	conn, err := s.loadForParticipant(ctx, in.ConnectionID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccepted(conn); err != nil {
		return nil, err
	}

	candidate := &models.Message{
		ID:              uuid.NewString(),
		ConnectionID:    conn.ID,
		SenderID:        in.SenderID,
		Text:            text,
		ClientMessageID: clientID,
		CreatedAt:       s.now(),
	}

	type appendResult struct {
		msg     *models.Message
		created bool
	}
	res, err := retry.Do(ctx, s.policy, "message.append", func() (appendResult, error) {
		stored, created, err := s.conns.AppendMessage(ctx, candidate)
		return appendResult{msg: stored, created: created}, err
	})
	if err != nil {
		return nil, err
	}
	if res.msg.SenderID != in.SenderID {
		return nil, models.NewConflictError("client message id already used by the other participant")
	}
	if res.created {
		observability.ConnectionEvents.WithLabelValues(observability.EventMessageSent).Inc()
	}
	return res.msg, nil
}

// ListMessages returns a page of messages, oldest first.
func (s *ConnectionService) ListMessages(ctx context.Context, id, viewerID string, limit, offset int) ([]models.Message, error) {
	if _, err := s.loadForParticipant(ctx, id, viewerID); err != nil {
		return nil, err
	}
	return retry.Do(ctx, s.policy, "message.list", func() ([]models.Message, error) {
		return s.conns.ListMessages(ctx, id, limit, offset)
	})
}

// RequestIdentityReveal records that userID agrees to show their photo.
// Repeating it is a no-op; there is no way to take it back.
func (s *ConnectionService) RequestIdentityReveal(ctx context.Context, id, userID string) (*models.Connection, error) {
	conn, err := s.loadForParticipant(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccepted(conn); err != nil {
		return nil, err
	}
	if s.policyOn(featureflags.EnforceRevealThreshold, conn) && !conn.InteractionUnlockEligible(s.threshold) {
		return nil, models.NewValidationError(fmt.Sprintf(
			"reveal unlocks after %d interactions, this connection has %d", s.threshold, conn.InteractionCount))
	}

	wasMutual := conn.IsMutuallyRevealed()
	if !conn.HasRevealed(userID) {
		if err := retry.Exec(ctx, s.policy, "connection.reveal", func() error {
			return s.conns.AddRevealer(ctx, id, userID)
		}); err != nil {
			return nil, err
		}
		observability.ConnectionEvents.WithLabelValues(observability.EventRevealRequested).Inc()
	}

	conn, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !wasMutual && conn.IsMutuallyRevealed() {
		observability.ConnectionEvents.WithLabelValues(observability.EventMutualReveal).Inc()
		observability.LogServiceCall(ctx, "ConnectionService", "RequestIdentityReveal",
			slog.String("connection_id", id),
			slog.Bool("mutual", true),
		)
	}
	return conn, nil
}

// PhotoFor returns the stored photo path of the other participant. Photos
// are only released once both participants have asked to reveal.
func (s *ConnectionService) PhotoFor(ctx context.Context, id, viewerID string) (string, error) {
	conn, err := s.loadForParticipant(ctx, id, viewerID)
	if err != nil {
		return "", err
	}
	if !conn.IsMutuallyRevealed() {
		return "", models.NewForbiddenError("photos unlock after both participants reveal")
	}

	otherID := conn.OtherParticipant(viewerID)
	other, err := retry.Do(ctx, s.policy, "user.get", func() (*models.User, error) {
		return s.users.GetByID(ctx, otherID)
	})
	if err != nil {
		return "", err
	}
	if !other.HasPhoto() {
		return "", models.NewNotFoundError("Photo", otherID)
	}
	return other.PhotoPath, nil
}

// View projects conn for viewerID.
func (s *ConnectionService) View(conn *models.Connection, viewerID string) ConnectionView {
	revealed := conn.RevealedBy
	if revealed == nil {
		revealed = []string{}
	}
	return ConnectionView{
		ID:                conn.ID,
		Participants:      conn.Participants(),
		OtherUserID:       conn.OtherParticipant(viewerID),
		RequestedBy:       conn.RequestedBy,
		Status:            conn.Status,
		InteractionCount:  conn.InteractionCount,
		InteractionTarget: s.threshold,
		UnlockEligible:    conn.InteractionUnlockEligible(s.threshold),
		RevealedBy:        revealed,
		ViewerRevealed:    conn.HasRevealed(viewerID),
		MutuallyRevealed:  conn.IsMutuallyRevealed(),
		CreatedAt:         conn.CreatedAt,
		UpdatedAt:         conn.UpdatedAt,
	}
}
