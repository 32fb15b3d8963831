package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/visicontrol/visicontrol/internal/database"
	"github.com/visicontrol/visicontrol/internal/models"
	apperrors "github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/logger"
	"github.com/visicontrol/visicontrol/pkg/metrics"
)

const (
	// DefaultListLimit is used when callers do not ask for a page size.
	DefaultListLimit = 50
	// MaxListLimit caps the number of notifications returned by List.
	MaxListLimit = 200

	reminderTitle = "Recordatorio de visita"
	reminderBody  = "Recuerda que mañana tienes una visita programada."

	pushTypeNotification = "notification"
)

// ListLimits bounds notification page sizes.
type ListLimits struct {
	Default int
	Max     int
}

// Clamp returns limit bounded to [1, Max].
func (l ListLimits) Clamp(limit int) int {
	maxLimit := l.Max
	if maxLimit <= 0 {
		maxLimit = MaxListLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Pusher delivers payloads to a user's live connections. Implementations must
// not block.
type Pusher interface {
	Push(userID string, payload any)
}

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	VisitID   *string        `json:"visit_id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at"`
	Meta      map[string]any `json:"meta"`
}

// NotificationEvent is the payload pushed to live connections for every newly stored notification.
type NotificationEvent struct {
	Type string           `json:"type"`
	Item *NotificationDTO `json:"item"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID  string
	VisitID *string
	Kind    string
	Title   string
	Body    string
	Meta    map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	OnlyUnread bool
	Limit      int
}

// ReminderRunStats summarises one GenerateDueReminders pass.
type ReminderRunStats struct {
	Candidates int `json:"candidates"`
	Inserted   int `json:"inserted"`
	Failed     int `json:"failed"`
}

// NotificationOption customises the NotificationService.
type NotificationOption func(*NotificationService)

// WithListLimits overrides the default and maximum list page sizes.
func WithListLimits(limits ListLimits) NotificationOption {
	return func(s *NotificationService) {
		if limits.Max > 0 {
			s.limits.Max = limits.Max
		}
		if limits.Default > 0 {
			s.limits.Default = limits.Default
		}
	}
}

// NotificationService stores per-user notifications and hands new ones to the
// live delivery channel.
type NotificationService struct {
	db     *gorm.DB
	hub    Pusher
	limits ListLimits
	log    *zap.Logger
}

// NewNotificationService constructs a NotificationService. hub may be nil, in
// which case notifications are only persisted.
func NewNotificationService(db *gorm.DB, hub Pusher, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{
		db:     db,
		hub:    hub,
		limits: ListLimits{Default: DefaultListLimit, Max: MaxListLimit},
		log:    logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Limits returns the configured page sizes.
func (s *NotificationService) Limits() ListLimits {
	return s.limits
}

// Create stores a notification unless one already exists for the same
// (user, visit, kind). A newly stored row is pushed to the user's live
// connections once; when the insert is suppressed the existing row is returned
// and nothing is pushed.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	kind := strings.TrimSpace(input.Kind)
	if !models.ValidNotificationKind(kind) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification kind %q", input.Kind))
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	row := models.Notification{
		UserID:  userID,
		VisitID: normaliseOptional(input.VisitID),
		Kind:    kind,
		Title:   title,
		Body:    strings.TrimSpace(input.Body),
	}
	if input.Meta != nil {
		data, err := json.Marshal(input.Meta)
		if err != nil {
			return nil, apperrors.NewBadRequest("meta must be JSON serialisable")
		}
		row.Meta = datatypes.JSON(data)
	}

	dto, _, err := s.insert(ctx, row)
	return dto, err
}

// insert runs the conflict-suppressed insert. It reports whether a row was
// actually written and pushes it when so.
func (s *NotificationService) insert(ctx context.Context, row models.Notification) (*NotificationDTO, bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return nil, false, fmt.Errorf("notification service: create notification: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		existing, err := s.findExisting(ctx, row.UserID, row.VisitID, row.Kind)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	metrics.NotificationsCreated.WithLabelValues(row.Kind).Inc()
	dto := mapNotification(row)
	s.push(&dto)
	return &dto, true, nil
}

func (s *NotificationService) findExisting(ctx context.Context, userID string, visitID *string, kind string) (*NotificationDTO, error) {
	query := s.db.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind)
	if visitID == nil {
		query = query.Where("visit_id IS NULL")
	} else {
		query = query.Where("visit_id = ?", *visitID)
	}

	var existing models.Notification
	if err := query.Order("created_at DESC").First(&existing).Error; err != nil {
		return nil, fmt.Errorf("notification service: load existing notification: %w", err)
	}
	dto := mapNotification(existing)
	return &dto, nil
}

func (s *NotificationService) push(dto *NotificationDTO) {
	if s.hub == nil || dto == nil {
		return
	}
	s.hub.Push(dto.UserID, NotificationEvent{Type: pushTypeNotification, Item: dto})
}

// List returns the user's notifications, newest first. A zero limit means the
// configured default; any other value is clamped to [1, Max].
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if input.OnlyUnread {
		query = query.Where("is_read = ?", false)
	}

	limit := input.Limit
	if limit == 0 {
		limit = s.limits.Default
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(s.limits.Clamp(limit)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// MarkRead flags the given notifications of userID as read and returns how
// many rows changed. Ids belonging to other users or already read are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewBadRequest("user id is required")
	}

	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountUnread returns the number of unread notifications of userID.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewBadRequest("user id is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// Today returns the store's current date.
func (s *NotificationService) Today(ctx context.Context) (models.Date, error) {
	today, err := database.CurrentDate(ensureContext(ctx), s.db)
	if err != nil {
		return "", fmt.Errorf("notification service: %w", err)
	}
	return today, nil
}

type reminderCandidate struct {
	VisitID   string
	UserID    string
	VisitDate models.Date
	VisitHour string
}

// GenerateDueReminders creates a VISIT_REMINDER for every pending or approved
// visit scheduled for tomorrow (store clock) whose creator opted into
// notifications. Reruns never duplicate reminders. Per-visit failures are
// collected and returned together after the remaining visits were processed.
func (s *NotificationService) GenerateDueReminders(ctx context.Context) (ReminderRunStats, error) {
	ctx = ensureContext(ctx)
	var stats ReminderRunStats

	today, err := s.Today(ctx)
	if err != nil {
		return stats, err
	}
	tomorrow, err := today.AddDays(1)
	if err != nil {
		return stats, fmt.Errorf("notification service: compute tomorrow: %w", err)
	}

	var candidates []reminderCandidate
	if err := s.db.WithContext(ctx).
		Table("visits AS v").
		Select("v.id AS visit_id, v.created_by AS user_id, v.visit_date, v.visit_hour").
		Joins("JOIN users u ON u.id = v.created_by").
		Where("v.created_by IS NOT NULL").
		Where("u.notify_email = ?", true).
		Where("v.status IN ?", []string{models.VisitPending, models.VisitApproved}).
		Where("v.visit_date = ?", tomorrow).
		Order("v.visit_hour ASC").
		Scan(&candidates).Error; err != nil {
		return stats, fmt.Errorf("notification service: select reminder candidates: %w", err)
	}
	stats.Candidates = len(candidates)

	var errs error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		visitID := candidate.VisitID
		meta, _ := json.Marshal(map[string]string{
			"visit_date": candidate.VisitDate.String(),
			"visit_hour": candidate.VisitHour,
		})
		_, inserted, err := s.insert(ctx, models.Notification{
			UserID:  candidate.UserID,
			VisitID: &visitID,
			Kind:    models.KindVisitReminder,
			Title:   reminderTitle,
			Body:    reminderBody,
			Meta:    datatypes.JSON(meta),
		})
		if err != nil {
			stats.Failed++
			s.log.Warn("reminder insert failed", zap.String("visit_id", visitID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("visit %s: %w", visitID, err))
			continue
		}
		if inserted {
			stats.Inserted++
		}
	}

	return stats, errs
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		VisitID:   row.VisitID,
		Kind:      row.Kind,
		Title:     row.Title,
		Body:      row.Body,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
		Meta:      decodeJSON(row.Meta),
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
