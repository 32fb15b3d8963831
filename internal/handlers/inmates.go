package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/response"
)

// InmateHandler exposes the visitor inmate lookup and the admin inmate registry.
type InmateHandler struct {
	inmates *services.InmateService
}

func NewInmateHandler(inmates *services.InmateService) *InmateHandler {
	return &InmateHandler{inmates: inmates}
}

type inmateRequest struct {
	FirstName  *string `json:"first_name" validate:"omitempty,max=120"`
	LastName   *string `json:"last_name" validate:"omitempty,max=120"`
	DocType    *string `json:"doc_type" validate:"omitempty,oneof=CEDULA PASAPORTE OTRO"`
	NationalID *string `json:"national_id" validate:"omitempty,max=32"`
	BirthDate  *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Pavilion   *string `json:"pavilion" validate:"omitempty,max=60"`
	Cell       *string `json:"cell" validate:"omitempty,max=60"`
	Status     *string `json:"status" validate:"omitempty,oneof=ENABLED BLOCKED"`
	Notes      *string `json:"notes"`
}

func (r inmateRequest) input() services.InmateInput {
	return services.InmateInput{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		DocType:    r.DocType,
		NationalID: r.NationalID,
		BirthDate:  r.BirthDate,
		Pavilion:   r.Pavilion,
		Cell:       r.Cell,
		Status:     r.Status,
		Notes:      r.Notes,
	}
}

type authorizeRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	Relation string `json:"relation" validate:"omitempty,oneof=AUTHORIZED FAMILY LAWYER OTHER"`
	Rel      string `json:"rel" validate:"omitempty,oneof=AUTHORIZED FAMILY LAWYER OTHER"`
}

// GET /api/inmates/my
func (h *InmateHandler) ListMine(c *gin.Context) {
	items, err := h.inmates.ListForUser(requestContext(c), currentActor(c).UserID, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"items": items})
}

// GET /api/inmates
func (h *InmateHandler) List(c *gin.Context) {
	page, err := h.inmates.List(requestContext(c), services.ListInmatesInput{
		Query:  c.Query("q"),
		Status: c.Query("status"),
		Page:   parseIntQuery(c, "page", 1),
		Limit:  parseIntQuery(c, "limit", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"items": page.Items, "pagination": page.Pagination})
}

// GET /api/inmates/:id
func (h *InmateHandler) Get(c *gin.Context) {
	inmate, err := h.inmates.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"item": inmate})
}

// POST /api/inmates
func (h *InmateHandler) Create(c *gin.Context) {
	var req inmateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	inmate, err := h.inmates.Create(requestContext(c), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"item": inmate})
}

// PUT /api/inmates/:id
func (h *InmateHandler) Update(c *gin.Context) {
	var req inmateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	inmate, err := h.inmates.Update(requestContext(c), c.Param("id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"item": inmate})
}

// POST /api/inmates/:id/authorize
func (h *InmateHandler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	relation := strings.TrimSpace(req.Relation)
	if relation == "" {
		relation = strings.TrimSpace(req.Rel)
	}

	link, err := h.inmates.Authorize(requestContext(c), c.Param("id"), req.UserID, relation)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"item": link})
}

// DELETE /api/inmates/:id/authorize/:userId
func (h *InmateHandler) Unauthorize(c *gin.Context) {
	if err := h.inmates.Unauthorize(requestContext(c), c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil)
}
