package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ConnectionIDSeparator joins the two participant ids of a connection id.
const ConnectionIDSeparator = "_"

// DefaultRevealThreshold is the interaction count at which photo reveal unlocks.
const DefaultRevealThreshold = 30

// ConnectionStatus represents the status of a connection request.
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates a request awaiting a decision.
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusAccepted indicates an accepted request.
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	// ConnectionStatusRejected indicates a rejected request.
	ConnectionStatusRejected ConnectionStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionStatusPending, ConnectionStatusAccepted, ConnectionStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s ConnectionStatus) Terminal() bool {
	return s == ConnectionStatusAccepted || s == ConnectionStatusRejected
}

// Connection is the relationship between an unordered pair of users.
// ParticipantA < ParticipantB always holds, and ID is derived from them.
type Connection struct {
	ID               string             `gorm:"primaryKey;type:varchar(140)" json:"id"`
	ParticipantA     string             `gorm:"type:varchar(64);not null;index" json:"participant_a"`
	ParticipantB     string             `gorm:"type:varchar(64);not null;index" json:"participant_b"`
	RequestedBy      string             `gorm:"type:varchar(64);not null" json:"requested_by"`
	Status           ConnectionStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	InteractionCount int                `gorm:"not null;default:0" json:"interaction_count"`
	Reveals          []ConnectionReveal `gorm:"foreignKey:ConnectionID" json:"-"`
	RevealedBy       []string           `gorm:"-" json:"revealed_by"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// ConnectionReveal is one member of a connection's revealedBy set.
type ConnectionReveal struct {
	ConnectionID string    `gorm:"primaryKey;type:varchar(140)" json:"connection_id"`
	UserID       string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ConnectionReveal) TableName() string {
	return "connection_reveals"
}

func validateParticipantID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("user id is required")
	}
	if strings.Contains(id, ConnectionIDSeparator) {
		return NewValidationError(fmt.Sprintf("user id must not contain %q", ConnectionIDSeparator))
	}
	return nil
}

// DeriveConnectionID returns the id shared by both orderings of a pair.
func DeriveConnectionID(userA, userB string) (string, error) {
	if err := validateParticipantID(userA); err != nil {
		return "", err
	}
	if err := validateParticipantID(userB); err != nil {
		return "", err
	}
	lo, hi := orderPair(userA, userB)
	return lo + ConnectionIDSeparator + hi, nil
}

func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// NewConnection builds a pending connection requested by fromUser.
func NewConnection(fromUser, toUser string, now time.Time) (*Connection, error) {
	if fromUser == toUser {
		return nil, NewValidationError("cannot connect with yourself")
	}
	id, err := DeriveConnectionID(fromUser, toUser)
	if err != nil {
		return nil, err
	}
	a, b := orderPair(fromUser, toUser)
	return &Connection{
		ID:           id,
		ParticipantA: a,
		ParticipantB: b,
		RequestedBy:  fromUser,
		Status:       ConnectionStatusPending,
		RevealedBy:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Participants returns both participant ids in sorted order.
func (c *Connection) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Connection) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.ParticipantA || userID == c.ParticipantB)
}

// OtherParticipant returns the participant that is not userID.
func (c *Connection) OtherParticipant(userID string) string {
	if userID == c.ParticipantA {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// HasRevealed reports whether userID is in the revealedBy set.
func (c *Connection) HasRevealed(userID string) bool {
	return slices.Contains(c.RevealedBy, userID)
}

// IsMutuallyRevealed is true iff both participants have requested reveal.
func (c *Connection) IsMutuallyRevealed() bool {
	return c.HasRevealed(c.ParticipantA) && c.HasRevealed(c.ParticipantB)
}

// InteractionUnlockEligible reports whether enough messages were exchanged
// for reveal to be offered.
func (c *Connection) InteractionUnlockEligible(threshold int) bool {
	return c.InteractionCount >= threshold
}

// CanDecide reports whether userID may accept or reject the request.
func (c *Connection) CanDecide(userID string) bool {
	return c.HasParticipant(userID) && userID != c.RequestedBy
}

// SyncRevealedBy fills RevealedBy from the loaded reveal rows.
func (c *Connection) SyncRevealedBy() {
	ids := make([]string, 0, len(c.Reveals))
	for _, r := range c.Reveals {
		ids = append(ids, r.UserID)
	}
	slices.Sort(ids)
	c.RevealedBy = slices.Compact(ids)
}

// Validate checks a connection loaded from the store.
func (c *Connection) Validate() error {
	want, err := DeriveConnectionID(c.ParticipantA, c.ParticipantB)
	if err != nil {
		return err
	}
	if c.ParticipantA >= c.ParticipantB {
		return fmt.Errorf("participants out of order")
	}
	if c.ID != want {
		return fmt.Errorf("id %q does not match participants", c.ID)
	}
	if !c.HasParticipant(c.RequestedBy) {
		return fmt.Errorf("requester %q is not a participant", c.RequestedBy)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("unknown status %q", c.Status)
	}
	if c.InteractionCount < 0 {
		return fmt.Errorf("negative interaction count %d", c.InteractionCount)
	}
	for _, id := range c.RevealedBy {
		if !c.HasParticipant(id) {
			return fmt.Errorf("revealer %q is not a participant", id)
		}
	}
	return nil
}
