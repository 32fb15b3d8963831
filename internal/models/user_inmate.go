package models

import "time"

// Relations between a visitor and an inmate.
const (
	RelationAuthorized = "AUTHORIZED"
	RelationFamily     = "FAMILY"
	RelationLawyer     = "LAWYER"
	RelationOther      = "OTHER"
)

// UserInmate links a visitor to an inmate they may schedule visits for.
type UserInmate struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	InmateID  string    `gorm:"primaryKey;type:varchar(36);index" json:"inmate_id"`
	Relation  string    `gorm:"type:varchar(16);not null;default:'AUTHORIZED'" json:"relation"`
	CreatedAt time.Time `json:"created_at"`

	User   *User   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Inmate *Inmate `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
