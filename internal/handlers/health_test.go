package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visicontrol/visicontrol/internal/handlers/testutil"
)

func TestHealthReportsStoreTime(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		OK        bool   `json:"ok"`
		Service   string `json:"service"`
		DBTime    string `json:"db_time"`
		LiveUsers int    `json:"live_users"`
	}
	testutil.DecodeInto(t, w, &payload)
	require.True(t, payload.OK)
	require.Equal(t, "visicontrol-api", payload.Service)
	require.NotEmpty(t, payload.DBTime)
	require.Zero(t, payload.LiveUsers)
}
