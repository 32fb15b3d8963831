package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/visicontrol/visicontrol/internal/app"
	"github.com/visicontrol/visicontrol/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	return &app.Config{
		Server: app.ServerConfig{Port: 0, Environment: "test"},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "visicontrol.db"),
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "bootstrap-secret-bootstrap-secret", Issuer: "test", TTL: time.Hour},
			SeedAdmin: app.SeedAdminSettings{
				Email:    "admin@visicontrol.local",
				Password: "Admin123!",
				Name:     "Admin",
				LastName: "Root",
			},
		},
		Notifications: app.NotificationConfig{ReminderSchedule: "@every 1h"},
	}
}

func TestBootstrapRuntimeWiresStack(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stack.Shutdown(ctx, zap.NewNop())
	})

	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.Hub)
	require.NotNil(t, stack.Scheduler)

	var admin models.User
	require.NoError(t, stack.DB.Where("email = ?", "admin@visicontrol.local").First(&admin).Error)
	require.Equal(t, models.RoleAdmin, admin.Role)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, stack.Scheduler.RunOnce(context.Background()))
}

func TestBootstrapRuntimeRejectsInvalidMailer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.SMTP.Enabled = true

	_, err := bootstrapRuntime(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestShutdownToleratesPartialStack(t *testing.T) {
	var stack *runtimeStack
	stack.Shutdown(context.Background(), zap.NewNop())

	(&runtimeStack{}).Shutdown(context.Background(), nil)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestLoadApplicationConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4100\n"), 0o600))

	cfg, err := loadApplicationConfig(path)
	require.NoError(t, err)
	require.Equal(t, 4100, cfg.Server.Port)
}

func TestLoadEnvFile(t *testing.T) {
	loaded, err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	require.False(t, loaded)

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VISICONTROL_TEST_FLAG=on\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("VISICONTROL_TEST_FLAG") })

	loaded, err = loadEnvFile(path)
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, "on", os.Getenv("VISICONTROL_TEST_FLAG"))
}
