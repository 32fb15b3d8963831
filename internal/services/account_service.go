package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/auth"
	"github.com/visicontrol/visicontrol/internal/models"
	"github.com/visicontrol/visicontrol/pkg/crypto"
	apperrors "github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/logger"
	"github.com/visicontrol/visicontrol/pkg/mail"
	"github.com/visicontrol/visicontrol/pkg/metrics"
)

const (
	defaultResetTokenTTL   = time.Hour
	defaultResetTokenBytes = 32
	defaultResetBaseURL    = "http://localhost:5173"
	resetEmailSubject      = "Recuperar contraseña – VisiControl"
)

var (
	// ErrEmailTaken is returned when registering an e-mail that already has an account.
	ErrEmailTaken = apperrors.NewConflict("EMAIL_TAKEN", "Este correo ya tiene una cuenta.")
	// ErrNationalIDTaken is returned when registering a national id that is already in use.
	ErrNationalIDTaken = apperrors.NewConflict("NATIONAL_ID_TAKEN", "Esta cédula ya está registrada.")

	errBadCredentials  = apperrors.New("INVALID_CREDENTIALS", "Credenciales inválidas", http.StatusUnauthorized)
	errUserNotFound    = apperrors.New("USER_NOT_FOUND", "Usuario no encontrado", http.StatusNotFound)
	errWrongPassword   = apperrors.New("WRONG_PASSWORD", "Contraseña actual incorrecta", http.StatusBadRequest)
	errResetTokenFails = apperrors.New("INVALID_RESET_TOKEN", "Token inválido o caducado", http.StatusBadRequest)
)

// RegisterInput carries the fields of a new visitor account.
type RegisterInput struct {
	Name       string
	LastName   string
	Email      string
	Password   string
	NationalID string
	BirthDate  string
}

// ProfileInput carries optional profile changes. Nil fields are left untouched.
type ProfileInput struct {
	Phone       *string
	Address     *string
	AvatarURL   *string
	NotifyEmail *bool
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AccountOption customises the AccountService.
type AccountOption func(*AccountService)

// WithMailer sets the mailer used for password reset links.
func WithMailer(mailer mail.Mailer) AccountOption {
	return func(s *AccountService) {
		s.mailer = mailer
	}
}

// WithResetBaseURL sets the front-end base URL used in reset links.
func WithResetBaseURL(url string) AccountOption {
	return func(s *AccountService) {
		if trimmed := strings.TrimRight(strings.TrimSpace(url), "/"); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// WithResetTokenTTL overrides the lifetime of reset tokens.
func WithResetTokenTTL(d time.Duration) AccountOption {
	return func(s *AccountService) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

// WithAccountClock injects a custom time source.
func WithAccountClock(clock func() time.Time) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AccountService handles registration, sign-in, profile and password flows.
type AccountService struct {
	db       *gorm.DB
	tokens   *auth.JWTService
	mailer   mail.Mailer
	baseURL  string
	resetTTL time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB, tokens *auth.JWTService, opts ...AccountOption) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("account service: jwt service is required")
	}

	svc := &AccountService{
		db:       db,
		tokens:   tokens,
		baseURL:  defaultResetBaseURL,
		resetTTL: defaultResetTokenTTL,
		now:      time.Now,
		log:      logger.WithModule("accounts"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a USER account and signs it in.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	nationalID := strings.TrimSpace(input.NationalID)
	name := strings.TrimSpace(input.Name)
	lastName := strings.TrimSpace(input.LastName)
	if name == "" || lastName == "" || email == "" || input.Password == "" || nationalID == "" {
		return nil, apperrors.NewBadRequest("Faltan campos requeridos")
	}

	var birthDate *models.Date
	if strings.TrimSpace(input.BirthDate) != "" {
		parsed, err := models.ParseDate(input.BirthDate)
		if err != nil {
			return nil, apperrors.NewBadRequest("birth_date must be YYYY-MM-DD")
		}
		birthDate = &parsed
	}

	if taken, err := s.exists(ctx, "email = ?", email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	if taken, err := s.exists(ctx, "national_id = ?", nationalID); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrNationalIDTaken
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user := models.User{
		Name:         name,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		NationalID:   &nationalID,
		NotifyEmail:  true,
		BirthDate:    birthDate,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken.WithInternal(err)
		}
		return nil, fmt.Errorf("account service: create user: %w", err)
	}

	return s.issue(&user)
}

// Login verifies the credentials and returns a signed access token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, errBadCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("account service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.PasswordHash, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, errBadCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return s.issue(&user)
}

// Me loads the account of userID.
func (s *AccountService) Me(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("account service: load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies contact details and the notification opt-in.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Phone != nil {
		updates["phone"] = normaliseOptional(input.Phone)
	}
	if input.Address != nil {
		updates["address"] = normaliseOptional(input.Address)
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = normaliseOptional(input.AvatarURL)
	}
	if input.NotifyEmail != nil {
		updates["notify_email"] = *input.NotifyEmail
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("account service: update profile: %w", err)
	}
	return s.Me(ctx, user.ID)
}

// ChangePassword replaces the password after verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	ctx = ensureContext(ctx)
	if current == "" || next == "" {
		return apperrors.NewBadRequest("Faltan datos")
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.PasswordHash, current) {
		return errWrongPassword
	}
	return s.setPassword(s.db.WithContext(ctx), user.ID, next)
}

// ForgotPassword issues a reset token and e-mails the reset link. Unknown
// addresses succeed silently. When SMTP is disabled the token is still stored
// and a warning is logged.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	if email == "" {
		return apperrors.NewBadRequest("Falta el correo")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("account service: load user: %w", err)
	}

	token, err := crypto.GenerateToken(defaultResetTokenBytes)
	if err != nil {
		return fmt.Errorf("account service: generate reset token: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND used_at IS NULL", user.ID).
			Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: crypto.HashToken(token),
			ExpiresAt: s.now().Add(s.resetTTL),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("account service: store reset token: %w", err)
	}

	if s.mailer == nil {
		s.log.Warn("password reset requested without mailer", zap.String("user_id", user.ID))
		return nil
	}

	link := s.resetLink(token)
	err = s.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: resetEmailSubject,
		Text:    resetEmailText(link, s.resetTTL),
		HTML:    resetEmailHTML(link, s.resetTTL),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mail.ErrSMTPDisabled):
		s.log.Warn("password reset e-mail skipped, smtp disabled", zap.String("user_id", user.ID))
		return nil
	default:
		return fmt.Errorf("account service: send reset e-mail: %w", err)
	}
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" || password == "" {
		return apperrors.NewBadRequest("Faltan datos")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		if err := tx.First(&record, "token_hash = ?", crypto.HashToken(token)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errResetTokenFails
			}
			return fmt.Errorf("account service: load reset token: %w", err)
		}

		now := s.now()
		if !record.Usable(now) {
			return errResetTokenFails
		}

		result := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now)
		if result.Error != nil {
			return fmt.Errorf("account service: consume reset token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errResetTokenFails
		}

		return s.setPassword(tx, record.UserID, password)
	})
}

// CleanupResetTokens removes expired and consumed reset tokens.
func (s *AccountService) CleanupResetTokens(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("account service: cleanup reset tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *AccountService) setPassword(tx *gorm.DB, userID, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("account service: hash password: %w", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("account service: update password: %w", err)
	}
	return nil
}

func (s *AccountService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateAccessToken(auth.AccessTokenInput{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		Name:     user.Name,
		LastName: user.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("account service: issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AccountService) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("account service: check user: %w", err)
	}
	return count > 0, nil
}

func (s *AccountService) resetLink(token string) string {
	return fmt.Sprintf("%s/reset?token=%s", s.baseURL, token)
}

func resetEmailHTML(link string, ttl time.Duration) string {
	escaped := html.EscapeString(link)
	var b strings.Builder
	b.WriteString("<p>Hola,</p>\n")
	b.WriteString("<p>Solicitaste recuperar tu contraseña. Haz clic en el enlace para continuar:</p>\n")
	fmt.Fprintf(&b, "<p><a href=\"%s\" target=\"_blank\" rel=\"noopener noreferrer\">%s</a></p>\n", escaped, escaped)
	fmt.Fprintf(&b, "<p><small>Este enlace expira en %s.</small></p>\n", expiryText(ttl))
	b.WriteString("<p>Si no fuiste tú, ignora este correo.</p>\n")
	return b.String()
}

func resetEmailText(link string, ttl time.Duration) string {
	return fmt.Sprintf("Hola,\n\nSolicitaste recuperar tu contraseña. Abre este enlace para continuar:\n%s\n\nEste enlace expira en %s.\nSi no fuiste tú, ignora este correo.\n",
		link, expiryText(ttl))
}

func expiryText(ttl time.Duration) string {
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		if hours := int(ttl / time.Hour); hours > 1 {
			return fmt.Sprintf("%d horas", hours)
		}
		return "1 hora"
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minuto"
	}
	return fmt.Sprintf("%d minutos", minutes)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
