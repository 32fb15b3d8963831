package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/models"
	"github.com/visicontrol/visicontrol/pkg/mail"
)

type pushedEvent struct {
	userID  string
	payload any
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushedEvent
}

func (p *recordingPusher) Push(userID string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushedEvent{userID: userID, payload: payload})
}

func (p *recordingPusher) Events() []pushedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pushedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPusher) Kinds() []string {
	var kinds []string
	for _, evt := range p.Events() {
		if notif, ok := evt.payload.(NotificationEvent); ok && notif.Item != nil {
			kinds = append(kinds, notif.Item.Kind)
		}
	}
	return kinds
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func createUser(t *testing.T, db *gorm.DB, email string, mutate ...func(*models.User)) models.User {
	t.Helper()
	user := models.User{
		BaseModel:    models.BaseModel{ID: uuid.NewString()},
		Name:         "Ana",
		LastName:     "Pérez",
		Email:        email,
		PasswordHash: "x",
		Role:         models.RoleUser,
		NotifyEmail:  true,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	notifyEmail := user.NotifyEmail
	require.NoError(t, db.Create(&user).Error)
	// Create skips a false value on a column with a default and reads the
	// default back into the struct.
	require.NoError(t, db.Model(&user).Update("notify_email", notifyEmail).Error)
	user.NotifyEmail = notifyEmail
	return user
}

func createInmate(t *testing.T, db *gorm.DB, first, last string) models.Inmate {
	t.Helper()
	inmate := models.Inmate{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		FirstName: first,
		LastName:  last,
		DocType:   models.DocCedula,
		Status:    models.InmateEnabled,
	}
	require.NoError(t, db.Create(&inmate).Error)
	return inmate
}

func createVisit(t *testing.T, db *gorm.DB, owner *models.User, date models.Date, hour, status string) models.Visit {
	t.Helper()
	visit := models.Visit{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		VisitorName: "Ana",
		InmateName:  "Juan Díaz",
		VisitDate:   date,
		VisitHour:   hour,
		Status:      status,
	}
	if owner != nil {
		visit.CreatedBy = &owner.ID
	}
	require.NoError(t, db.Create(&visit).Error)
	return visit
}
