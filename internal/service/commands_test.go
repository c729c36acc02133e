package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/game-reviews/internal/apperror"
)

func violationFor(t *testing.T, err error, field string) string {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "want *apperror.AppError, got %T", err)
	for _, v := range appErr.Violations {
		if v.Field == field {
			return v.Message
		}
	}
	t.Fatalf("no violation for %q in %v", field, appErr.Violations)
	return ""
}

func TestRegisterCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RegisterCommand)
		field   string
		message string
	}{
		{"missing email", func(c *RegisterCommand) { c.Email = "" }, "email", "email is required"},
		{"bad email", func(c *RegisterCommand) { c.Email = "x" }, "email", "email must be a valid email address"},
		{"short username", func(c *RegisterCommand) { c.Username = "ab" }, "username", "username must be at least 3 characters"},
		{"short password", func(c *RegisterCommand) { c.Password, c.ConfirmPassword = "short", "short" }, "password", "password must be at least 8 characters"},
		{"confirmation differs", func(c *RegisterCommand) { c.ConfirmPassword = "something-else" }, "confirmPassword", "confirmPassword must match password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validRegister("a@x.com")
			tt.mutate(&cmd)

			err := cmd.Validate()
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Equal(t, tt.message, violationFor(t, err, tt.field))
		})
	}
}

func TestRegisterCommand_AdminMarkerNotValidated(t *testing.T) {
	cmd := validRegister("a@x.com")
	cmd.AdminMarker = "anything at all"
	assert.NoError(t, cmd.Validate())
}

func TestUpdateCommand_Validate(t *testing.T) {
	assert.NoError(t, UpdateCommand{}.Validate(), "empty update is structurally valid")
	assert.NoError(t, UpdateCommand{FullName: strPtr("")}.Validate())

	err := UpdateCommand{Email: strPtr("nope")}.Validate()
	assert.Equal(t, "email must be a valid email address", violationFor(t, err, "email"))

	err = UpdateCommand{Password: strPtr("long-enough")}.Validate()
	assert.Equal(t, "confirmPassword must match password", violationFor(t, err, "confirmPassword"))

	assert.NoError(t, UpdateCommand{
		Password:        strPtr("long-enough"),
		ConfirmPassword: strPtr("long-enough"),
	}.Validate())
}
