package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visicontrol/visicontrol/internal/database/testutil"
	"github.com/visicontrol/visicontrol/internal/models"
	apperrors "github.com/visicontrol/visicontrol/pkg/errors"
)

func newInmateService(t *testing.T) *InmateService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewInmateService(db)
	require.NoError(t, err)
	return svc
}

func TestInmateServiceCreateAndUpdate(t *testing.T) {
	svc := newInmateService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, InmateInput{FirstName: stringPtr("Solo")})
	require.True(t, apperrors.IsStatus(err, http.StatusBadRequest))

	created, err := svc.Create(ctx, InmateInput{
		FirstName:  stringPtr(" Pedro "),
		LastName:   stringPtr("Gómez"),
		NationalID: stringPtr("0912345678"),
		BirthDate:  stringPtr("1980-02-29"),
		Pavilion:   stringPtr("B"),
	})
	require.NoError(t, err)
	require.Equal(t, "Pedro", created.FirstName)
	require.Equal(t, models.DocCedula, created.DocType)
	require.Equal(t, models.InmateEnabled, created.Status)
	require.NotNil(t, created.BirthDate)
	require.Equal(t, models.Date("1980-02-29"), *created.BirthDate)

	updated, err := svc.Update(ctx, created.ID, InmateInput{
		Status: stringPtr("blocked"),
		Cell:   stringPtr("12"),
	})
	require.NoError(t, err)
	require.Equal(t, models.InmateBlocked, updated.Status)
	require.Equal(t, "12", *updated.Cell)
	require.Equal(t, "B", *updated.Pavilion)

	_, err = svc.Update(ctx, created.ID, InmateInput{DocType: stringPtr("DNI")})
	require.True(t, apperrors.IsStatus(err, http.StatusBadRequest))

	_, err = svc.Get(ctx, "missing")
	require.True(t, apperrors.IsStatus(err, http.StatusNotFound))
}

func TestInmateServiceListPaginates(t *testing.T) {
	svc := newInmateService(t)
	ctx := context.Background()

	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		createInmate(t, svc.db, name, "Test")
	}
	blocked := createInmate(t, svc.db, "Diego", "Test")
	require.NoError(t, svc.db.Model(&blocked).Update("status", models.InmateBlocked).Error)

	page, err := svc.List(ctx, ListInmatesInput{Page: 2, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, Pagination{Page: 2, Limit: 3, Total: 4}, page.Pagination)

	page, err = svc.List(ctx, ListInmatesInput{Status: models.InmateBlocked})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, defaultInmatePageSize, page.Pagination.Limit)

	page, err = svc.List(ctx, ListInmatesInput{Query: "brU", Limit: 1000})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, maxInmatePageSize, page.Pagination.Limit)
}

func TestInmateServiceAuthorizeAndListForUser(t *testing.T) {
	svc := newInmateService(t)
	ctx := context.Background()

	user := createUser(t, svc.db, "visita@example.com")
	zoe := createInmate(t, svc.db, "Zoe", "Luna")
	abel := createInmate(t, svc.db, "Abel", "Sol")
	blocked := createInmate(t, svc.db, "Bea", "Mar")
	require.NoError(t, svc.db.Model(&blocked).Update("status", models.InmateBlocked).Error)

	_, err := svc.Authorize(ctx, zoe.ID, user.ID, "")
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, abel.ID, user.ID, "family")
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, blocked.ID, user.ID, models.RelationLawyer)
	require.NoError(t, err)

	link, err := svc.Authorize(ctx, zoe.ID, user.ID, models.RelationLawyer)
	require.NoError(t, err)
	require.Equal(t, models.RelationLawyer, link.Relation)

	_, err = svc.Authorize(ctx, zoe.ID, "ghost", "")
	require.True(t, apperrors.IsStatus(err, http.StatusNotFound))
	_, err = svc.Authorize(ctx, zoe.ID, user.ID, "FRIEND")
	require.True(t, apperrors.IsStatus(err, http.StatusBadRequest))

	items, err := svc.ListForUser(ctx, user.ID, "")
	require.NoError(t, err)
	require.Equal(t, []LinkedInmate{
		{InmateID: abel.ID, FirstName: "Abel", LastName: "Sol", Relation: models.RelationFamily},
		{InmateID: zoe.ID, FirstName: "Zoe", LastName: "Luna", Relation: models.RelationLawyer},
	}, items)

	items, err = svc.ListForUser(ctx, user.ID, "LUNA")
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.Unauthorize(ctx, zoe.ID, user.ID))
	require.NoError(t, svc.Unauthorize(ctx, zoe.ID, user.ID))

	items, err = svc.ListForUser(ctx, user.ID, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, abel.ID, items[0].InmateID)
}
