package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel {
			u := &User{}
			return &u.BaseModel
		}},
		{"inmate", func() *BaseModel {
			i := &Inmate{}
			return &i.BaseModel
		}},
		{"visit", func() *BaseModel {
			v := &Visit{}
			return &v.BaseModel
		}},
		{"password_reset_token", func() *BaseModel {
			p := &PasswordResetToken{}
			return &p.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestNotificationBeforeCreateKeepsExplicitID(t *testing.T) {
	n := &Notification{ID: "fixed"}
	require.NoError(t, n.BeforeCreate(nil))
	require.Equal(t, "fixed", n.ID)

	generated := &Notification{}
	require.NoError(t, generated.BeforeCreate(nil))
	require.NotEmpty(t, generated.ID)
}

func TestValidNotificationKind(t *testing.T) {
	for _, kind := range NotificationKinds {
		require.True(t, ValidNotificationKind(kind), kind)
	}
	require.False(t, ValidNotificationKind("visit_created"))
	require.False(t, ValidNotificationKind(""))
}

func TestInmateFullName(t *testing.T) {
	require.Equal(t, "Ana Pérez", Inmate{FirstName: "Ana", LastName: "Pérez"}.FullName())
	require.Equal(t, "Ana", Inmate{FirstName: "Ana"}.FullName())
	require.Equal(t, "Pérez", Inmate{LastName: "Pérez"}.FullName())
}

func TestPasswordResetTokenUsable(t *testing.T) {
	now := time.Now()
	token := PasswordResetToken{ExpiresAt: now.Add(time.Minute)}
	require.True(t, token.Usable(now))

	require.False(t, token.Usable(now.Add(2*time.Minute)))

	used := now
	token.UsedAt = &used
	require.False(t, token.Usable(now))
}

func TestUserIsAdmin(t *testing.T) {
	var nilUser *User
	require.False(t, nilUser.IsAdmin())
	require.False(t, (&User{Role: RoleUser}).IsAdmin())
	require.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}
