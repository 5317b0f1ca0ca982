package models

import "time"

// Session holds the API credentials of a signed-in console user.
// The browser only carries a signed reference to ID.
type Session struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Email       string    `gorm:"size:255" json:"email"`
	AccessToken string    `gorm:"type:text;not null" json:"-"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || s.AccessToken == "" || !now.Before(s.ExpiresAt)
}
