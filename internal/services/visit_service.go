package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/models"
	apperrors "github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/logger"
)

const (
	maxVisitListSize   = 200
	defaultVisitorName = "Visitante"
	visitHourLayout    = "15:04"
	visitScopeAll      = "all"
)

var (
	errVisitNotFound  = apperrors.New("VISIT_NOT_FOUND", "Visita no encontrada", http.StatusNotFound)
	errInmateNotFound = apperrors.New("INMATE_NOT_FOUND", "Interno no encontrado", http.StatusNotFound)
	errNotAuthorized  = apperrors.New("INMATE_NOT_AUTHORIZED", "No estás autorizado para visitar a este interno", http.StatusForbidden)
)

// Notifier stores notifications produced by domain actions.
type Notifier interface {
	Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error)
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   string
	Name   string
}

// IsAdmin reports whether the actor carries the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// ListVisitsInput filters visit listings.
type ListVisitsInput struct {
	Actor  Actor
	Date   string
	Status string
	Scope  string
}

// CreateVisitInput carries the fields of a new visit request.
type CreateVisitInput struct {
	Actor       Actor
	InmateID    string
	VisitDate   string
	VisitHour   string
	Notes       *string
	VisitorName string
}

// UpdateVisitInput carries optional admin changes to a visit.
type UpdateVisitInput struct {
	VisitorName *string
	VisitDate   *string
	VisitHour   *string
	Status      *string
	Notes       *string
}

// VisitService manages visit scheduling and emits the related notifications.
type VisitService struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
}

// NewVisitService constructs a VisitService. notifier may be nil.
func NewVisitService(db *gorm.DB, notifier Notifier) (*VisitService, error) {
	if db == nil {
		return nil, errors.New("visit service: db is required")
	}
	return &VisitService{db: db, notifier: notifier, log: logger.WithModule("visits")}, nil
}

// List returns visits ordered by date and hour, newest first. Non-admins and
// admins without scope=all only see the visits they created.
func (s *VisitService) List(ctx context.Context, input ListVisitsInput) ([]models.Visit, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(input.Actor.UserID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	query := s.db.WithContext(ctx).Model(&models.Visit{})
	if !(input.Actor.IsAdmin() && strings.EqualFold(input.Scope, visitScopeAll)) {
		query = query.Where("created_by = ?", input.Actor.UserID)
	}
	if date := strings.TrimSpace(input.Date); date != "" {
		parsed, err := models.ParseDate(date)
		if err != nil {
			return nil, apperrors.NewBadRequest("date must be YYYY-MM-DD")
		}
		query = query.Where("visit_date = ?", parsed)
	}
	if status := strings.ToUpper(strings.TrimSpace(input.Status)); status != "" {
		if !validVisitStatus(status) {
			return nil, apperrors.NewBadRequest("unknown visit status")
		}
		query = query.Where("status = ?", status)
	}

	visits := make([]models.Visit, 0)
	if err := query.
		Order("visit_date DESC").
		Order("visit_hour DESC").
		Limit(maxVisitListSize).
		Find(&visits).Error; err != nil {
		return nil, fmt.Errorf("visit service: list visits: %w", err)
	}
	return visits, nil
}

// Create schedules a visit. Non-admin callers must be linked to the inmate.
func (s *VisitService) Create(ctx context.Context, input CreateVisitInput) (*models.Visit, error) {
	ctx = ensureContext(ctx)
	actor := input.Actor
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	inmateID := strings.TrimSpace(input.InmateID)
	if inmateID == "" {
		return nil, apperrors.NewBadRequest("inmate_id, visit_date and visit_hour are required")
	}
	date, hour, err := parseSchedule(input.VisitDate, input.VisitHour)
	if err != nil {
		return nil, err
	}

	var inmate models.Inmate
	if err := s.db.WithContext(ctx).First(&inmate, "id = ?", inmateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInmateNotFound
		}
		return nil, fmt.Errorf("visit service: load inmate: %w", err)
	}

	if !actor.IsAdmin() {
		var links int64
		if err := s.db.WithContext(ctx).
			Model(&models.UserInmate{}).
			Where("user_id = ? AND inmate_id = ?", actor.UserID, inmate.ID).
			Count(&links).Error; err != nil {
			return nil, fmt.Errorf("visit service: check authorization: %w", err)
		}
		if links == 0 {
			return nil, errNotAuthorized
		}
	}

	visitorName := strings.TrimSpace(input.VisitorName)
	if visitorName == "" {
		visitorName = strings.TrimSpace(actor.Name)
	}
	if visitorName == "" {
		visitorName = defaultVisitorName
	}

	visit := models.Visit{
		VisitorName: visitorName,
		InmateName:  inmate.FullName(),
		InmateID:    &inmate.ID,
		VisitDate:   date,
		VisitHour:   hour,
		Status:      models.VisitPending,
		Notes:       normaliseOptional(input.Notes),
		CreatedBy:   stringPtr(actor.UserID),
	}
	if err := s.db.WithContext(ctx).Create(&visit).Error; err != nil {
		return nil, fmt.Errorf("visit service: create visit: %w", err)
	}

	s.notify(ctx, &visit, models.KindVisitCreated,
		"Visita registrada",
		fmt.Sprintf("Tu visita a %s el %s a las %s quedó pendiente de aprobación.", visit.InmateName, visit.VisitDate, visit.VisitHour),
		map[string]any{"visit_date": visit.VisitDate.String(), "visit_hour": visit.VisitHour})

	return &visit, nil
}

// Update applies admin changes to a visit. Status transitions and reschedules
// notify the visit's creator.
func (s *VisitService) Update(ctx context.Context, actor Actor, id string, input UpdateVisitInput) (*models.Visit, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	visit, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := *visit

	updates := map[string]any{}
	if input.VisitorName != nil {
		name := strings.TrimSpace(*input.VisitorName)
		if name == "" {
			return nil, apperrors.NewBadRequest("visitor_name cannot be empty")
		}
		updates["visitor_name"] = name
		visit.VisitorName = name
	}
	if input.VisitDate != nil {
		date, err := models.ParseDate(*input.VisitDate)
		if err != nil {
			return nil, apperrors.NewBadRequest("visit_date must be YYYY-MM-DD")
		}
		updates["visit_date"] = date
		visit.VisitDate = date
	}
	if input.VisitHour != nil {
		hour, err := parseVisitHour(*input.VisitHour)
		if err != nil {
			return nil, err
		}
		updates["visit_hour"] = hour
		visit.VisitHour = hour
	}
	if input.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*input.Status))
		if !validVisitStatus(status) {
			return nil, apperrors.NewBadRequest("unknown visit status")
		}
		updates["status"] = status
		visit.Status = status
	}
	if input.Notes != nil {
		visit.Notes = normaliseOptional(input.Notes)
		updates["notes"] = visit.Notes
	}

	if len(updates) == 0 {
		return visit, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Visit{}).Where("id = ?", visit.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("visit service: update visit: %w", err)
	}

	s.notifyTransitions(ctx, &previous, visit)
	return s.load(ctx, visit.ID)
}

// Delete cancels a visit. Only its creator or an admin may do so.
func (s *VisitService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(actor.UserID) == "" {
		return apperrors.ErrUnauthorized
	}

	visit, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	owner := visit.CreatedBy != nil && *visit.CreatedBy == actor.UserID
	if !owner && !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	if visit.Status == models.VisitCanceled {
		return nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Visit{}).
		Where("id = ?", visit.ID).
		Update("status", models.VisitCanceled).Error; err != nil {
		return fmt.Errorf("visit service: cancel visit: %w", err)
	}

	previous := *visit
	visit.Status = models.VisitCanceled
	s.notifyTransitions(ctx, &previous, visit)
	return nil
}

func (s *VisitService) load(ctx context.Context, id string) (*models.Visit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("visit id is required")
	}
	var visit models.Visit
	if err := s.db.WithContext(ctx).First(&visit, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errVisitNotFound
		}
		return nil, fmt.Errorf("visit service: load visit: %w", err)
	}
	return &visit, nil
}

func (s *VisitService) notifyTransitions(ctx context.Context, before, after *models.Visit) {
	if before.Status != after.Status {
		switch after.Status {
		case models.VisitApproved:
			s.notify(ctx, after, models.KindVisitApproved,
				"Visita aprobada",
				fmt.Sprintf("Tu visita a %s el %s a las %s fue aprobada.", after.InmateName, after.VisitDate, after.VisitHour),
				map[string]any{"visit_date": after.VisitDate.String(), "visit_hour": after.VisitHour})
		case models.VisitRejected, models.VisitCanceled:
			s.notify(ctx, after, models.KindVisitCanceled,
				"Visita cancelada",
				fmt.Sprintf("Tu visita a %s el %s a las %s fue cancelada.", after.InmateName, after.VisitDate, after.VisitHour),
				map[string]any{"status": after.Status})
		}
	}

	if before.VisitDate != after.VisitDate || before.VisitHour != after.VisitHour {
		s.notify(ctx, after, models.KindVisitUpdated,
			"Visita reprogramada",
			fmt.Sprintf("Tu visita a %s ahora es el %s a las %s.", after.InmateName, after.VisitDate, after.VisitHour),
			map[string]any{
				"old_date": before.VisitDate.String(),
				"old_hour": before.VisitHour,
				"new_date": after.VisitDate.String(),
				"new_hour": after.VisitHour,
			})
	}
}

// notify records a notification for the visit creator. Failures are logged
// and never fail the visit operation.
func (s *VisitService) notify(ctx context.Context, visit *models.Visit, kind, title, body string, meta map[string]any) {
	if s.notifier == nil || visit.CreatedBy == nil {
		return
	}
	visitID := visit.ID
	if _, err := s.notifier.Create(ctx, CreateNotificationInput{
		UserID:  *visit.CreatedBy,
		VisitID: &visitID,
		Kind:    kind,
		Title:   title,
		Body:    body,
		Meta:    meta,
	}); err != nil {
		s.log.Warn("visit notification failed",
			zap.String("visit_id", visit.ID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

func parseSchedule(dateValue, hourValue string) (models.Date, string, error) {
	if strings.TrimSpace(dateValue) == "" || strings.TrimSpace(hourValue) == "" {
		return "", "", apperrors.NewBadRequest("inmate_id, visit_date and visit_hour are required")
	}
	date, err := models.ParseDate(dateValue)
	if err != nil {
		return "", "", apperrors.NewBadRequest("visit_date must be YYYY-MM-DD")
	}
	hour, err := parseVisitHour(hourValue)
	if err != nil {
		return "", "", err
	}
	return date, hour, nil
}

func parseVisitHour(value string) (string, error) {
	parsed, err := time.Parse(visitHourLayout, strings.TrimSpace(value))
	if err != nil {
		return "", apperrors.NewBadRequest("visit_hour must be HH:MM")
	}
	return parsed.Format(visitHourLayout), nil
}

func validVisitStatus(status string) bool {
	switch status {
	case models.VisitPending, models.VisitApproved, models.VisitRejected, models.VisitCanceled:
		return true
	default:
		return false
	}
}
