package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/response"
)

// VisitHandler schedules and manages visits.
type VisitHandler struct {
	visits *services.VisitService
}

func NewVisitHandler(visits *services.VisitService) *VisitHandler {
	return &VisitHandler{visits: visits}
}

type createVisitRequest struct {
	InmateID    string  `json:"inmate_id" validate:"required,uuid"`
	VisitDate   string  `json:"visit_date" validate:"required,datetime=2006-01-02"`
	VisitHour   string  `json:"visit_hour" validate:"required,visit_hour"`
	Notes       *string `json:"notes"`
	VisitorName string  `json:"visitor_name" validate:"omitempty,max=160"`
}

type updateVisitRequest struct {
	VisitorName *string `json:"visitor_name" validate:"omitempty,max=160"`
	VisitDate   *string `json:"visit_date" validate:"omitempty,datetime=2006-01-02"`
	VisitHour   *string `json:"visit_hour" validate:"omitempty,visit_hour"`
	Status      *string `json:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED CANCELED"`
	Notes       *string `json:"notes"`
}

// GET /api/visits
func (h *VisitHandler) List(c *gin.Context) {
	visits, err := h.visits.List(requestContext(c), services.ListVisitsInput{
		Actor:  currentActor(c),
		Date:   c.Query("date"),
		Status: c.Query("status"),
		Scope:  c.Query("scope"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"visits": visits})
}

// POST /api/visits
func (h *VisitHandler) Create(c *gin.Context) {
	var req createVisitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	visit, err := h.visits.Create(requestContext(c), services.CreateVisitInput{
		Actor:       currentActor(c),
		InmateID:    req.InmateID,
		VisitDate:   req.VisitDate,
		VisitHour:   req.VisitHour,
		Notes:       req.Notes,
		VisitorName: req.VisitorName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"visit": visit})
}

// PUT /api/visits/:id
func (h *VisitHandler) Update(c *gin.Context) {
	var req updateVisitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	visit, err := h.visits.Update(requestContext(c), currentActor(c), c.Param("id"), services.UpdateVisitInput{
		VisitorName: req.VisitorName,
		VisitDate:   req.VisitDate,
		VisitHour:   req.VisitHour,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"visit": visit})
}

// DELETE /api/visits/:id
func (h *VisitHandler) Delete(c *gin.Context) {
	if err := h.visits.Delete(requestContext(c), currentActor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil)
}
