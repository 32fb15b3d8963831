package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/visicontrol/visicontrol/pkg/metrics"
)

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/visits/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.CollectAndCount(metrics.APILatency)
	for _, path := range []string{"/api/visits/a", "/api/visits/b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	for _, path := range []string{"/random/1", "/random/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.LessOrEqual(t, testutil.CollectAndCount(metrics.APILatency), before+2)
}
