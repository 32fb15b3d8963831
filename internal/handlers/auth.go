package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/response"
)

// AuthHandler manages registration, login, password recovery and the caller's profile.
type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	LastName   string `json:"last_name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6,max=128"`
	NationalID string `json:"national_id" validate:"required,max=32"`
	BirthDate  string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=128"`
}

type profileRequest struct {
	Phone       *string `json:"phone" validate:"omitempty,max=40"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,max=512"`
	NotifyEmail *bool   `json:"notify_email"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.Register(requestContext(c), services.RegisterInput{
		Name:       strings.TrimSpace(req.Name),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      req.Email,
		Password:   req.Password,
		NationalID: req.NationalID,
		BirthDate:  req.BirthDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"token": result.Token, "user": result.User})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"token": result.Token, "user": result.User})
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.ForgotPassword(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "Si el correo existe, te enviaremos instrucciones."})
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(requestContext(c), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "Contraseña actualizada"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.accounts.Me(requestContext(c), currentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user": user})
}

// PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req profileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.UpdateProfile(requestContext(c), currentActor(c).UserID, services.ProfileInput{
		Phone:       req.Phone,
		Address:     req.Address,
		AvatarURL:   req.AvatarURL,
		NotifyEmail: req.NotifyEmail,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user": user})
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.ChangePassword(requestContext(c), currentActor(c).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Contraseña actualizada"})
}
