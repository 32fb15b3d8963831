package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appValidator "github.com/visicontrol/visicontrol/pkg/validator"
)

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	return c, rec
}

func TestFormatValidationError(t *testing.T) {
	msg := formatValidationError(appValidator.ValidationErrors{
		{Field: "user_id", Tag: "required"},
		{Field: "relation", Tag: "oneof", Param: "AUTHORIZED FAMILY"},
		{Field: "ids[0]", Tag: "uuid"},
		{Field: "visit_hour", Tag: "visit_hour"},
	})
	require.Equal(t, "user id is required; relation must be one of: AUTHORIZED FAMILY; ids[0] must be a valid UUID; visit hour must be HH:MM", msg)

	require.Equal(t, "invalid request payload", formatValidationError(nil))
}

func TestParseQueryHelpers(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/?limit=abc&page=3&flag=Yes&off=0", "")

	require.Equal(t, 50, parseIntQuery(c, "limit", 50))
	require.Equal(t, 3, parseIntQuery(c, "page", 1))
	require.Equal(t, 7, parseIntQuery(c, "missing", 7))

	require.True(t, parseBoolQuery(c, "flag"))
	require.False(t, parseBoolQuery(c, "off"))
	require.False(t, parseBoolQuery(c, "missing"))
}

func TestBindOptionalAcceptsEmptyBody(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/", "")
	var req markReadRequest
	require.True(t, bindOptional(c, &req))
	require.Empty(t, req.IDs)

	c, rec := newTestContext(http.MethodPost, "/", "")
	require.False(t, bindAndValidate(c, &req))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBindAndValidateRejectsInvalidIDs(t *testing.T) {
	c, rec := newTestContext(http.MethodPost, "/", `{"ids":["x"]}`)
	var req markReadRequest
	require.False(t, bindAndValidate(c, &req))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "UUID")
}
