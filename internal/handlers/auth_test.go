package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visicontrol/visicontrol/internal/handlers/testutil"
	"github.com/visicontrol/visicontrol/internal/models"
)

type authPayload struct {
	OK    bool        `json:"ok"`
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func registerBody(email, nationalID string) map[string]any {
	return map[string]any{
		"name":        "Ana",
		"last_name":   "Pérez",
		"email":       email,
		"password":    "Secreta123",
		"national_id": nationalID,
		"birth_date":  "1990-05-17",
	}
}

func TestAuthRegisterLoginAndMe(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", registerBody("Ana@Example.com", "0102030405"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered authPayload
	testutil.DecodeInto(t, w, &registered)
	require.True(t, registered.OK)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "ana@example.com", registered.User.Email)
	require.Equal(t, models.RoleUser, registered.User.Role)
	require.NotContains(t, w.Body.String(), "password_hash")

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "Secreta123"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login authPayload
	testutil.DecodeInto(t, w, &login)
	require.NotEmpty(t, login.Token)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, login.Token)
	require.Equal(t, http.StatusOK, w.Code)

	var me authPayload
	testutil.DecodeInto(t, w, &me)
	require.Equal(t, registered.User.ID, me.User.ID)
	require.True(t, me.User.NotifyEmail)
}

func TestAuthRegisterConflicts(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", registerBody("ana@example.com", "0102030405"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/auth/register", registerBody("ana@example.com", "9999999999"), "")
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/register", registerBody("otra@example.com", "0102030405"), "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthRegisterValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	body := registerBody("not-an-email", "0102030405")
	w := env.Request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.OK)
	require.Contains(t, resp.Message, "email")

	body = registerBody("ana@example.com", "0102030405")
	body["birth_date"] = "17/05/1990"
	w = env.Request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	env := testutil.NewEnv(t)
	user, _ := env.CreateUser(models.RoleUser, "Passw0rd!")

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": user.Email, "password": "wrong-password"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "Passw0rd!"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthUpdateProfileAndChangePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	user, token := env.CreateUser(models.RoleUser, "Passw0rd!")

	w := env.Request(http.MethodPatch, "/api/auth/me", map[string]any{
		"phone":        "0991234567",
		"notify_email": false,
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me authPayload
	testutil.DecodeInto(t, w, &me)
	require.NotNil(t, me.User.Phone)
	require.Equal(t, "0991234567", *me.User.Phone)
	require.False(t, me.User.NotifyEmail)

	w = env.Request(http.MethodPost, "/api/auth/change-password", map[string]string{
		"current_password": "incorrect",
		"new_password":     "NuevaClave1",
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/change-password", map[string]string{
		"current_password": "Passw0rd!",
		"new_password":     "NuevaClave1",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": user.Email, "password": "NuevaClave1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	env := testutil.NewEnv(t)
	user, _ := env.CreateUser(models.RoleUser, "Passw0rd!")

	for _, email := range []string{user.Email, "nobody@example.com"} {
		w := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := testutil.DecodeResponse(t, w)
		require.True(t, resp.OK)
		require.Equal(t, "Si el correo existe, te enviaremos instrucciones.", resp.Message)
	}

	var tokens int64
	require.NoError(t, env.DB.Model(&models.PasswordResetToken{}).Where("user_id = ?", user.ID).Count(&tokens).Error)
	require.EqualValues(t, 1, tokens)

	w := env.Request(http.MethodPost, "/api/auth/reset-password", map[string]string{"token": "bogus", "password": "NuevaClave1"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
