package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification kinds.
const (
	KindVisitCreated  = "VISIT_CREATED"
	KindVisitApproved = "VISIT_APPROVED"
	KindVisitUpdated  = "VISIT_UPDATED"
	KindVisitReminder = "VISIT_REMINDER"
	KindVisitCanceled = "VISIT_CANCELED"
	KindSystem        = "SYSTEM"
)

// NotificationKinds lists every accepted kind.
var NotificationKinds = []string{
	KindVisitCreated,
	KindVisitApproved,
	KindVisitUpdated,
	KindVisitReminder,
	KindVisitCanceled,
	KindSystem,
}

// ValidNotificationKind reports whether kind is one of NotificationKinds.
func ValidNotificationKind(kind string) bool {
	for _, k := range NotificationKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Notification is a persisted in-app message addressed to one user. At most
// one row exists per (user, visit, kind); rows without a visit are not
// deduplicated.
type Notification struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_notifications_user_visit_kind,priority:1;index:idx_notifications_user_read,priority:1" json:"user_id"`
	VisitID   *string        `gorm:"type:varchar(36);uniqueIndex:idx_notifications_user_visit_kind,priority:2" json:"visit_id"`
	Kind      string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_notifications_user_visit_kind,priority:3" json:"kind"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	IsRead    bool           `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	ReadAt    *time.Time     `json:"read_at"`
	Meta      datatypes.JSON `json:"meta"`

	User  *User  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Visit *Visit `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID when none was supplied.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
