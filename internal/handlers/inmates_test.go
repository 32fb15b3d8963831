package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visicontrol/visicontrol/internal/handlers/testutil"
	"github.com/visicontrol/visicontrol/internal/models"
	"github.com/visicontrol/visicontrol/internal/services"
)

type inmateItem struct {
	OK   bool          `json:"ok"`
	Item models.Inmate `json:"item"`
}

func TestInmateAdminRoutesRequireAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser(models.RoleUser, "Passw0rd!")

	w := env.Request(http.MethodGet, "/api/inmates", nil, token)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPost, "/api/inmates", map[string]string{"first_name": "A", "last_name": "B"}, token)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodGet, "/api/inmates", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInmateAdminCrud(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser(models.RoleAdmin, "Passw0rd!")

	w := env.Request(http.MethodPost, "/api/inmates", map[string]string{
		"first_name":  "Luis",
		"last_name":   "Andrade",
		"national_id": "1712345678",
		"pavilion":    "B",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created inmateItem
	testutil.DecodeInto(t, w, &created)
	require.Equal(t, models.DocCedula, created.Item.DocType)
	require.Equal(t, models.InmateEnabled, created.Item.Status)

	w = env.Request(http.MethodPut, "/api/inmates/"+created.Item.ID, map[string]string{"status": "BLOCKED", "cell": "12"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated inmateItem
	testutil.DecodeInto(t, w, &updated)
	require.Equal(t, "BLOCKED", updated.Item.Status)
	require.NotNil(t, updated.Item.Cell)
	require.Equal(t, "12", *updated.Item.Cell)

	w = env.Request(http.MethodGet, "/api/inmates/"+created.Item.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPut, "/api/inmates/"+created.Item.ID, map[string]string{"doc_type": "LICENCIA"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodGet, "/api/inmates/00000000-0000-4000-8000-000000000000", nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInmateAdminListPaginates(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateUser(models.RoleAdmin, "Passw0rd!")
	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		env.CreateInmate(name, "Test")
	}

	w := env.Request(http.MethodGet, "/api/inmates?page=2&limit=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page struct {
		OK         bool                `json:"ok"`
		Items      []models.Inmate     `json:"items"`
		Pagination services.Pagination `json:"pagination"`
	}
	testutil.DecodeInto(t, w, &page)
	require.True(t, page.OK)
	require.Len(t, page.Items, 1)
	require.Equal(t, services.Pagination{Page: 2, Limit: 2, Total: 3}, page.Pagination)
}

func TestInmateAuthorizeAndListMine(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.CreateUser(models.RoleAdmin, "Passw0rd!")
	visitor, visitorToken := env.CreateUser(models.RoleUser, "Passw0rd!")
	inmate := env.CreateInmate("Marta", "Salazar")
	env.CreateInmate("Otro", "Interno")

	w := env.Request(http.MethodPost, "/api/inmates/"+inmate.ID+"/authorize", map[string]string{
		"user_id": visitor.ID,
		"rel":     "FAMILY",
	}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var link struct {
		OK   bool              `json:"ok"`
		Item models.UserInmate `json:"item"`
	}
	testutil.DecodeInto(t, w, &link)
	require.Equal(t, models.RelationFamily, link.Item.Relation)

	var mine struct {
		OK    bool                    `json:"ok"`
		Items []services.LinkedInmate `json:"items"`
	}
	w = env.Request(http.MethodGet, "/api/inmates/my", nil, visitorToken)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, w, &mine)
	require.Len(t, mine.Items, 1)
	require.Equal(t, inmate.ID, mine.Items[0].InmateID)
	require.Equal(t, models.RelationFamily, mine.Items[0].Relation)

	w = env.Request(http.MethodGet, "/api/inmates/my?q=zzz", nil, visitorToken)
	testutil.DecodeInto(t, w, &mine)
	require.Empty(t, mine.Items)

	w = env.Request(http.MethodDelete, "/api/inmates/"+inmate.ID+"/authorize/"+visitor.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/api/inmates/my", nil, visitorToken)
	testutil.DecodeInto(t, w, &mine)
	require.Empty(t, mine.Items)
}

func TestInmateAuthorizeValidatesPayload(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.CreateUser(models.RoleAdmin, "Passw0rd!")
	inmate := env.CreateInmate("Marta", "Salazar")

	w := env.Request(http.MethodPost, "/api/inmates/"+inmate.ID+"/authorize", map[string]string{}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/inmates/"+inmate.ID+"/authorize", map[string]string{
		"user_id":  "00000000-0000-4000-8000-000000000000",
		"relation": "AUTHORIZED",
	}, adminToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}
