// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"time"
)

// Gender values accepted at registration.
const (
	GenderMale      = "male"
	GenderFemale    = "female"
	GenderNonBinary = "non-binary"
	GenderOther     = "other"
)

// InterestedIn values accepted at registration.
const (
	InterestedInMale     = "male"
	InterestedInFemale   = "female"
	InterestedInEveryone = "everyone"
)

// SubscriptionStatus tracks the premium plan state of a user.
type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
)

// Valid reports whether s is a known subscription status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionInactive, SubscriptionTrial, SubscriptionActive:
		return true
	}
	return false
}

// DefaultDisplayName is shown for authors without a nickname.
const DefaultDisplayName = "Alma Anónima"

// User is a registered member. IDs are opaque strings issued at registration.
type User struct {
	ID                 string             `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email              string             `gorm:"uniqueIndex;not null" json:"email"`
	Password           string             `gorm:"not null" json:"-"`
	Nickname           string             `gorm:"not null" json:"nickname"`
	BirthDate          string             `gorm:"type:varchar(10)" json:"birth_date"`
	Gender             string             `gorm:"type:varchar(20)" json:"gender"`
	InterestedIn       string             `gorm:"type:varchar(20)" json:"interested_in"`
	Bio                string             `gorm:"type:text" json:"bio"`
	Authors            string             `gorm:"type:text" json:"authors"`
	Credo              string             `gorm:"type:text" json:"credo"`
	PhotoPath          string             `json:"-"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:varchar(20);default:'inactive'" json:"subscription_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// DisplayName returns the nickname or the anonymous fallback.
func (u *User) DisplayName() string {
	if u == nil || u.Nickname == "" {
		return DefaultDisplayName
	}
	return u.Nickname
}

// HasPhoto reports whether the user uploaded a photo.
func (u *User) HasPhoto() bool {
	return u.PhotoPath != ""
}

// Validate checks a user loaded from the store.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("missing id")
	}
	if u.Email == "" {
		return fmt.Errorf("missing email")
	}
	if u.SubscriptionStatus != "" && !u.SubscriptionStatus.Valid() {
		return fmt.Errorf("unknown subscription status %q", u.SubscriptionStatus)
	}
	return nil
}
