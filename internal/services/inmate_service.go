package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/visicontrol/visicontrol/internal/models"
	apperrors "github.com/visicontrol/visicontrol/pkg/errors"
)

const (
	defaultInmatePageSize = 50
	maxInmatePageSize     = 200
	maxLinkedInmates      = 200
)

// LinkedInmate is an inmate the user is authorised to visit.
type LinkedInmate struct {
	InmateID  string `json:"inmate_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Relation  string `json:"relation"`
}

// ListInmatesInput filters the admin inmate listing.
type ListInmatesInput struct {
	Query  string
	Status string
	Page   int
	Limit  int
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// InmatePage is one page of the admin inmate listing.
type InmatePage struct {
	Items      []models.Inmate `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// InmateInput carries inmate attributes. Nil fields are left untouched on update.
type InmateInput struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	DocType    *string `json:"doc_type"`
	NationalID *string `json:"national_id"`
	BirthDate  *string `json:"birth_date"`
	Pavilion   *string `json:"pavilion"`
	Cell       *string `json:"cell"`
	Status     *string `json:"status"`
	Notes      *string `json:"notes"`
}

// InmateService manages inmates and the visitor authorisation links.
type InmateService struct {
	db *gorm.DB
}

// NewInmateService constructs an InmateService.
func NewInmateService(db *gorm.DB) (*InmateService, error) {
	if db == nil {
		return nil, errors.New("inmate service: db is required")
	}
	return &InmateService{db: db}, nil
}

// ListForUser returns the enabled inmates linked to userID, optionally
// filtered by a name or document search.
func (s *InmateService) ListForUser(ctx context.Context, userID, search string) ([]LinkedInmate, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	query := s.db.WithContext(ctx).
		Table("user_inmates AS ui").
		Select("i.id AS inmate_id, i.first_name, i.last_name, ui.relation").
		Joins("JOIN inmates i ON i.id = ui.inmate_id").
		Where("ui.user_id = ?", userID).
		Where("i.status = ?", models.InmateEnabled)

	if term := likeTerm(search); term != "" {
		query = query.Where("(LOWER(i.first_name) LIKE ? OR LOWER(i.last_name) LIKE ? OR LOWER(i.national_id) LIKE ?)", term, term, term)
	}

	items := make([]LinkedInmate, 0)
	if err := query.
		Order("i.first_name ASC").
		Order("i.last_name ASC").
		Limit(maxLinkedInmates).
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("inmate service: list linked inmates: %w", err)
	}
	return items, nil
}

// List returns a page of inmates, newest first.
func (s *InmateService) List(ctx context.Context, input ListInmatesInput) (*InmatePage, error) {
	ctx = ensureContext(ctx)

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultInmatePageSize
	}
	if limit > maxInmatePageSize {
		limit = maxInmatePageSize
	}

	query := s.db.WithContext(ctx).Model(&models.Inmate{})
	if status := strings.ToUpper(strings.TrimSpace(input.Status)); status != "" {
		if !validInmateStatus(status) {
			return nil, apperrors.NewBadRequest("unknown inmate status")
		}
		query = query.Where("status = ?", status)
	}
	if term := likeTerm(input.Query); term != "" {
		query = query.Where("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(national_id) LIKE ?)", term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("inmate service: count inmates: %w", err)
	}

	items := make([]models.Inmate, 0)
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("inmate service: list inmates: %w", err)
	}

	return &InmatePage{
		Items:      items,
		Pagination: Pagination{Page: page, Limit: limit, Total: total},
	}, nil
}

// Get loads a single inmate.
func (s *InmateService) Get(ctx context.Context, id string) (*models.Inmate, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("inmate id is required")
	}
	var inmate models.Inmate
	if err := s.db.WithContext(ctx).First(&inmate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInmateNotFound
		}
		return nil, fmt.Errorf("inmate service: load inmate: %w", err)
	}
	return &inmate, nil
}

// Create registers a new inmate. First and last name are required.
func (s *InmateService) Create(ctx context.Context, input InmateInput) (*models.Inmate, error) {
	ctx = ensureContext(ctx)
	inmate := models.Inmate{
		DocType: models.DocCedula,
		Status:  models.InmateEnabled,
	}
	if err := applyInmateInput(&inmate, input); err != nil {
		return nil, err
	}
	if inmate.FirstName == "" || inmate.LastName == "" {
		return nil, apperrors.NewBadRequest("first_name and last_name are required")
	}

	if err := s.db.WithContext(ctx).Create(&inmate).Error; err != nil {
		return nil, fmt.Errorf("inmate service: create inmate: %w", err)
	}
	return &inmate, nil
}

// Update applies the non-nil fields of input to the inmate.
func (s *InmateService) Update(ctx context.Context, id string, input InmateInput) (*models.Inmate, error) {
	ctx = ensureContext(ctx)
	inmate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyInmateInput(inmate, input); err != nil {
		return nil, err
	}
	if inmate.FirstName == "" || inmate.LastName == "" {
		return nil, apperrors.NewBadRequest("first_name and last_name cannot be empty")
	}

	if err := s.db.WithContext(ctx).Save(inmate).Error; err != nil {
		return nil, fmt.Errorf("inmate service: update inmate: %w", err)
	}
	return inmate, nil
}

// Authorize links userID to the inmate, replacing the relation of an existing link.
func (s *InmateService) Authorize(ctx context.Context, inmateID, userID, relation string) (*models.UserInmate, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user_id is required")
	}
	relation = strings.ToUpper(strings.TrimSpace(relation))
	if relation == "" {
		relation = models.RelationAuthorized
	}
	if !validRelation(relation) {
		return nil, apperrors.NewBadRequest("unknown relation")
	}

	inmate, err := s.Get(ctx, inmateID)
	if err != nil {
		return nil, err
	}

	var users int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
		return nil, fmt.Errorf("inmate service: load user: %w", err)
	}
	if users == 0 {
		return nil, apperrors.New("USER_NOT_FOUND", "Usuario no encontrado", http.StatusNotFound)
	}

	link := models.UserInmate{UserID: userID, InmateID: inmate.ID, Relation: relation}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "inmate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"relation"}),
		}).
		Create(&link).Error; err != nil {
		return nil, fmt.Errorf("inmate service: authorize user: %w", err)
	}
	return &link, nil
}

// Unauthorize removes the link between userID and the inmate. Missing links are ignored.
func (s *InmateService) Unauthorize(ctx context.Context, inmateID, userID string) error {
	ctx = ensureContext(ctx)
	inmateID = strings.TrimSpace(inmateID)
	userID = strings.TrimSpace(userID)
	if inmateID == "" || userID == "" {
		return apperrors.NewBadRequest("inmate id and user id are required")
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND inmate_id = ?", userID, inmateID).
		Delete(&models.UserInmate{}).Error; err != nil {
		return fmt.Errorf("inmate service: unauthorize user: %w", err)
	}
	return nil
}

func applyInmateInput(inmate *models.Inmate, input InmateInput) error {
	if input.FirstName != nil {
		inmate.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		inmate.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.DocType != nil {
		docType := strings.ToUpper(strings.TrimSpace(*input.DocType))
		switch docType {
		case models.DocCedula, models.DocPasaporte, models.DocOtro:
			inmate.DocType = docType
		default:
			return apperrors.NewBadRequest("unknown doc_type")
		}
	}
	if input.NationalID != nil {
		inmate.NationalID = normaliseOptional(input.NationalID)
	}
	if input.BirthDate != nil {
		if strings.TrimSpace(*input.BirthDate) == "" {
			inmate.BirthDate = nil
		} else {
			date, err := models.ParseDate(*input.BirthDate)
			if err != nil {
				return apperrors.NewBadRequest("birth_date must be YYYY-MM-DD")
			}
			inmate.BirthDate = &date
		}
	}
	if input.Pavilion != nil {
		inmate.Pavilion = normaliseOptional(input.Pavilion)
	}
	if input.Cell != nil {
		inmate.Cell = normaliseOptional(input.Cell)
	}
	if input.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*input.Status))
		if !validInmateStatus(status) {
			return apperrors.NewBadRequest("unknown inmate status")
		}
		inmate.Status = status
	}
	if input.Notes != nil {
		inmate.Notes = normaliseOptional(input.Notes)
	}
	return nil
}

func likeTerm(search string) string {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return ""
	}
	return "%" + search + "%"
}

func validInmateStatus(status string) bool {
	return status == models.InmateEnabled || status == models.InmateBlocked
}

func validRelation(relation string) bool {
	switch relation {
	case models.RelationAuthorized, models.RelationFamily, models.RelationLawyer, models.RelationOther:
		return true
	default:
		return false
	}
}
