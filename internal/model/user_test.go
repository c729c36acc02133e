package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUserPublic_OmitsPasswordHash(t *testing.T) {
	u := User{
		ID:           "u1",
		Email:        "a@x.com",
		Username:     "ana",
		PasswordHash: "$2a$12$secretsecretsecret",
		Role:         RoleAdmin,
	}

	raw, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "secret") || strings.Contains(strings.ToLower(string(raw)), "password") {
		t.Errorf("public JSON leaks the hash: %s", raw)
	}

	raw, err = json.Marshal(u)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "secret") {
		t.Errorf("User JSON leaks the hash: %s", raw)
	}
}

func TestRoleIsValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAdmin, true},
		{"admin", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.role.IsValid(); got != tt.want {
			t.Errorf("Role(%q).IsValid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestFavoriteHas(t *testing.T) {
	f := Favorite{UserID: "u1", Games: []string{"1942", "7346"}}
	if !f.Has("7346") {
		t.Error("Has(7346) = false, want true")
	}
	if f.Has("1") {
		t.Error("Has(1) = true, want false")
	}
}
