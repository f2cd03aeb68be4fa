// Package profile manages user profiles: the public identity record every
// authenticated user owns, its solved-challenge counters, and the staff
// fields that gate the admin panel.
package profile

import (
	"time"

	"github.com/TheRockzi/hackacademy/internal/rank"
)

// Profile is a user's platform record. One row per credential, created
// lazily on first session resolution when registration didn't get to it.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`

	// Solved-challenge counters per category. Ranks are derived from these
	// on read and never stored.
	WebSolved         int `json:"web_solved"`
	ProgrammingSolved int `json:"programming_solved"`
	CryptoSolved      int `json:"crypto_solved"`

	IsStaff   bool   `json:"is_staff"`
	StaffRole string `json:"staff_role,omitempty"`
	IsBanned  bool   `json:"is_banned"`
}

// Ranks derives the per-category rank titles from the solve counters.
func (p *Profile) Ranks() rank.Ranks {
	return rank.FromCounts(p.WebSolved, p.ProgrammingSolved, p.CryptoSolved)
}

// ChangeType classifies a profile-change notification.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Notification is a profile-change event published on the change feed.
// Subscribers treat it as an invalidation hint and refetch; the payload
// carries only identifiers, never full profile state.
type Notification struct {
	Type      ChangeType `json:"type"`
	ProfileID string     `json:"profile_id"`
}
