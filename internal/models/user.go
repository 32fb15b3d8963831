package models

// User roles.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User is a visitor or administrator account.
type User struct {
	BaseModel

	Name         string  `gorm:"type:varchar(120);not null" json:"name"`
	LastName     string  `gorm:"type:varchar(120);not null" json:"last_name"`
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Role         string  `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`
	NationalID   *string `gorm:"type:varchar(64);uniqueIndex" json:"national_id"`
	Phone        *string `gorm:"type:varchar(64)" json:"phone"`
	Address      *string `gorm:"type:text" json:"address"`
	NotifyEmail  bool    `gorm:"not null;default:true" json:"notify_email"`
	BirthDate    *Date   `gorm:"type:date" json:"birth_date"`
	AvatarURL    *string `gorm:"type:text" json:"avatar_url"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
