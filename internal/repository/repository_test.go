package repository

import (
	"testing"

	"github.com/sakif/game-reviews/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestUserUpdate_Differs(t *testing.T) {
	current := &model.User{
		Email:        "a@x.com",
		Username:     "ana",
		FullName:     "Ana Lopez",
		PasswordHash: "hash",
		Role:         model.RoleUser,
	}

	tests := []struct {
		name string
		upd  UserUpdate
		want bool
	}{
		{"empty update", UserUpdate{}, false},
		{"same email", UserUpdate{Email: ptr("a@x.com")}, false},
		{"every field identical", UserUpdate{
			Email:    ptr("a@x.com"),
			Username: ptr("ana"),
			FullName: ptr("Ana Lopez"),
			Role:     ptr(model.RoleUser),
		}, false},
		{"new email", UserUpdate{Email: ptr("b@x.com")}, true},
		{"new password hash", UserUpdate{PasswordHash: ptr("other")}, true},
		{"elevated role", UserUpdate{Role: ptr(model.RoleAdmin)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.upd.Differs(current); got != tt.want {
				t.Errorf("Differs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserUpdate_IsEmpty(t *testing.T) {
	if !(UserUpdate{}).IsEmpty() {
		t.Error("zero UserUpdate should be empty")
	}
	if (UserUpdate{FullName: ptr("")}).IsEmpty() {
		t.Error("update with a set field should not be empty")
	}
}
