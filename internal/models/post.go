package models

import (
	"fmt"
	"time"
)

// Named feeds accept new posts. Derived feeds are computed from like counts.
const (
	FeedPareja        = "pareja"
	FeedAmistad       = "amistad"
	FeedNocturno      = "nocturno"
	FeedMaestrisimos  = "maestrisimos"
	FeedNadieMeQuiere = "nadiemequiere"
)

// IsNamedFeed reports whether posts can be authored into feed.
func IsNamedFeed(feed string) bool {
	switch feed {
	case FeedPareja, FeedAmistad, FeedNocturno:
		return true
	}
	return false
}

// IsDerivedFeed reports whether feed is computed from like counts.
func IsDerivedFeed(feed string) bool {
	return feed == FeedMaestrisimos || feed == FeedNadieMeQuiere
}

// Post is a piece of anonymous writing. LikeCount only grows.
type Post struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AuthorID    string `gorm:"type:varchar(64);not null;index" json:"author_id"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Body        string `gorm:"type:text;not null" json:"body"`
	Authors     string `gorm:"type:text" json:"authors,omitempty"`
	Credo       string `gorm:"type:text" json:"credo,omitempty"`

	// Author snapshot taken at creation time.
	AuthorAge          int       `gorm:"not null;default:0" json:"age,omitempty"`
	AuthorGender       string    `gorm:"type:varchar(16)" json:"gender,omitempty"`
	AuthorInterestedIn string    `gorm:"type:varchar(16)" json:"interested_in,omitempty"`
	Feed               string    `gorm:"type:varchar(32);not null;index:idx_posts_feed_created" json:"feed"`
	LikeCount          int       `gorm:"not null;default:0;index" json:"like_count"`
	CreatedAt          time.Time `gorm:"index:idx_posts_feed_created" json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// Validate checks a post loaded from the store.
func (p *Post) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if p.AuthorID == "" {
		return fmt.Errorf("missing author")
	}
	if !IsNamedFeed(p.Feed) {
		return fmt.Errorf("unknown feed %q", p.Feed)
	}
	if p.LikeCount < 0 {
		return fmt.Errorf("negative like count %d", p.LikeCount)
	}
	return nil
}

// Like records that a user liked a post. One row per (post, user).
type Like struct {
	PostID    string    `gorm:"primaryKey;type:varchar(64)" json:"post_id"`
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}
