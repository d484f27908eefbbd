// Package disclosure computes how much of a post's text is unlocked by its
// like count, and the social-proof badge attached to it.
package disclosure

import (
	"fmt"
	"unicode/utf8"

	"reflexion/internal/models"
)

// Unlock curve. These are product policy, not configuration.
const (
	BaseLimit     = 1200
	ExpansionStep = 1000
	LikesPerStep  = 100
)

// Badge thresholds.
const (
	TopBadgeLikes     = 500
	UnlovedBelowLikes = 100
)

// Badge is the social-proof label shown next to a post.
type Badge string

const (
	BadgeTop     Badge = "top"
	BadgeRecent  Badge = "recent"
	BadgeUnloved Badge = "unloved"
)

func tier(likeCount int) int {
	if likeCount < 0 {
		return 0
	}
	return likeCount / LikesPerStep
}

// MaxChars returns the number of characters unlocked at likeCount.
func MaxChars(likeCount int) int {
	return BaseLimit + tier(likeCount)*ExpansionStep
}

// NextUnlockThreshold returns the like count at which the next tier unlocks.
func NextUnlockThreshold(likeCount int) int {
	return (tier(likeCount) + 1) * LikesPerStep
}

// LikesRemainingToNextUnlock is always in [1, LikesPerStep].
func LikesRemainingToNextUnlock(likeCount int) int {
	if likeCount < 0 {
		likeCount = 0
	}
	return NextUnlockThreshold(likeCount) - likeCount
}

// CharCount counts code points, so accented Spanish text is not penalised.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// CheckLength rejects text longer than the limit unlocked at likeCount.
// Text is never truncated on write.
func CheckLength(text string, likeCount int) error {
	limit := MaxChars(likeCount)
	if n := CharCount(text); n > limit {
		return models.NewValidationError(fmt.Sprintf("text has %d characters, limit is %d", n, limit))
	}
	return nil
}

// BadgeFor returns the badge for likeCount.
func BadgeFor(likeCount int) Badge {
	switch {
	case likeCount >= TopBadgeLikes:
		return BadgeTop
	case likeCount < UnlovedBelowLikes:
		return BadgeUnloved
	default:
		return BadgeRecent
	}
}

// Limits bundles the unlock state of a post for API responses.
type Limits struct {
	LikeCount      int   `json:"like_count"`
	MaxChars       int   `json:"max_chars"`
	NextUnlockAt   int   `json:"next_unlock_at"`
	LikesRemaining int   `json:"likes_remaining"`
	Badge          Badge `json:"badge"`
}

// Summary computes Limits for likeCount.
func Summary(likeCount int) Limits {
	return Limits{
		LikeCount:      likeCount,
		MaxChars:       MaxChars(likeCount),
		NextUnlockAt:   NextUnlockThreshold(likeCount),
		LikesRemaining: LikesRemainingToNextUnlock(likeCount),
		Badge:          BadgeFor(likeCount),
	}
}
