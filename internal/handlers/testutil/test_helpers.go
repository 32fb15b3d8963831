package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/api"
	"github.com/visicontrol/visicontrol/internal/app"
	iauth "github.com/visicontrol/visicontrol/internal/auth"
	sharedtestutil "github.com/visicontrol/visicontrol/internal/database/testutil"
	"github.com/visicontrol/visicontrol/internal/models"
	"github.com/visicontrol/visicontrol/internal/realtime"
	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/crypto"
)

const jwtSecret = "test-suite-super-secret-key-32-bytes!!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T             *testing.T
	DB            *gorm.DB
	Router        *gin.Engine
	JWT           *iauth.JWTService
	Hub           *realtime.Hub
	Config        *app.Config
	Notifications *services.NotificationService
}

// EnvOption customises the configuration used by NewEnv.
type EnvOption func(*app.Config)

// WithEnvironment sets server.environment.
func WithEnvironment(env string) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.Environment = env
	}
}

// WithMetrics exposes the Prometheus endpoint.
func WithMetrics() EnvOption {
	return func(cfg *app.Config) {
		cfg.Monitoring.Prometheus.Enabled = true
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{Environment: "test"},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			RateLimit: app.RateLimitSettings{Requests: 1000, Window: time.Minute},
		},
		Notifications: app.NotificationConfig{HeartbeatInterval: time.Hour, SendBuffer: 16},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	hub := realtime.NewHub(cfg.Notifications.HubOptions())

	notifications, err := services.NewNotificationService(db, hub, services.WithListLimits(cfg.Notifications.ListLimits()))
	require.NoError(t, err)

	visits, err := services.NewVisitService(db, notifications)
	require.NoError(t, err)
	inmates, err := services.NewInmateService(db)
	require.NoError(t, err)
	accounts, err := services.NewAccountService(db, jwtSvc)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		Config:        cfg,
		JWT:           jwtSvc,
		Hub:           hub,
		Notifications: notifications,
		Visits:        visits,
		Inmates:       inmates,
		Accounts:      accounts,
	})
	require.NoError(t, err)

	return &Env{
		T:             t,
		DB:            db,
		Router:        router,
		JWT:           jwtSvc,
		Hub:           hub,
		Config:        cfg,
		Notifications: notifications,
	}
}

// CreateUser inserts a user with the given role and returns it with a signed access token.
func (e *Env) CreateUser(role, password string) (*models.User, string) {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	suffix := uuid.NewString()[:8]
	user := &models.User{
		Name:         "Test",
		LastName:     "User " + suffix,
		Email:        "user-" + suffix + "@example.com",
		PasswordHash: hashed,
		Role:         role,
		NotifyEmail:  true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)

	return user, e.Token(user)
}

// Token signs an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		Name:     user.Name,
		LastName: user.LastName,
	})
	require.NoError(e.T, err)
	return token
}

// CreateInmate inserts an enabled inmate.
func (e *Env) CreateInmate(first, last string) *models.Inmate {
	e.T.Helper()

	inmate := &models.Inmate{
		FirstName: first,
		LastName:  last,
		DocType:   models.DocCedula,
		Status:    models.InmateEnabled,
	}
	require.NoError(e.T, e.DB.Create(inmate).Error)
	return inmate
}

// Link authorises user to visit inmate.
func (e *Env) Link(user *models.User, inmate *models.Inmate) {
	e.T.Helper()
	require.NoError(e.T, e.DB.Create(&models.UserInmate{
		UserID:   user.ID,
		InmateID: inmate.ID,
		Relation: models.RelationAuthorized,
	}).Error)
}

// Envelope captures the common response fields plus the raw body.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DecodeResponse parses the standard API envelope from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var resp Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the full response body into dest.
func DecodeInto[T any](t *testing.T, w *httptest.ResponseRecorder, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	switch v := body.(type) {
	case nil:
		buf = bytes.NewBuffer(nil)
	case string:
		buf = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
