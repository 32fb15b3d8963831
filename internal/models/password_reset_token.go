package models

import "time"

// PasswordResetToken stores the SHA-256 hash of a one-time reset secret.
type PasswordResetToken struct {
	BaseModel

	UserID    string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	TokenHash string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Usable reports whether the token is unused and not yet expired at now.
func (t PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
