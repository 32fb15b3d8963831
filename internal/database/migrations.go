package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/models"
	"github.com/visicontrol/visicontrol/pkg/crypto"
)

// AdminSeed describes the administrator account created on first start. An
// empty Email disables seeding.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
	LastName string
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Inmate{},
		&models.UserInmate{},
		&models.Visit{},
		&models.Notification{},
		&models.PasswordResetToken{},
	)
}

// SeedData creates the administrator account when it does not exist yet.
// Existing accounts are left untouched, including their password.
func SeedData(db *gorm.DB, admin AdminSeed) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		return nil
	}
	if admin.Password == "" {
		return errors.New("admin seed requires a password")
	}

	hash, err := crypto.HashPassword(admin.Password)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(admin.Name)
	if name == "" {
		name = "Administrador"
	}

	user := models.User{
		Name:         name,
		LastName:     strings.TrimSpace(admin.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		NotifyEmail:  true,
	}
	return db.Where(models.User{Email: email}).Attrs(user).FirstOrCreate(&models.User{}).Error
}
