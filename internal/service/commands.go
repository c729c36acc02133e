package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/game-reviews/internal/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations under the form field names, not the Go names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// RegisterCommand is a sign-up form after decoding. AdminMarker is read by
// the elevation guard and never stored.
type RegisterCommand struct {
	Email           string `form:"email" validate:"required,email,max=254"`
	Username        string `form:"username" validate:"required,min=3,max=32"`
	FullName        string `form:"fullName" validate:"max=100"`
	Password        string `form:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
	AdminMarker     string `form:"admin" validate:"-"`
}

// Validate checks the command's structure.
func (c RegisterCommand) Validate() error {
	return validateStruct(c)
}

// UpdateCommand is a profile edit. Nil fields were not submitted and stay as
// they are; a nil Password keeps the current one.
type UpdateCommand struct {
	Email           *string `form:"email" validate:"omitempty,email,max=254"`
	Username        *string `form:"username" validate:"omitempty,min=3,max=32"`
	FullName        *string `form:"fullName" validate:"omitempty,max=100"`
	Password        *string `form:"password" validate:"omitempty,min=8,max=72"`
	ConfirmPassword *string `form:"confirmPassword" validate:"-"`
	AdminMarker     string  `form:"admin" validate:"-"`
}

func (c UpdateCommand) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.Password != nil && (c.ConfirmPassword == nil || *c.ConfirmPassword != *c.Password) {
		return apperror.ValidationFailed("confirmPassword", "confirmPassword must match password")
	}
	return nil
}

// LoginCommand is the login form.
type LoginCommand struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

func (c LoginCommand) Validate() error {
	return validateStruct(c)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("service: validating %T: %w", v, err)
	}

	violations := make([]apperror.FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, apperror.FieldViolation{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apperror.Invalid(violations)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "eqfield":
		return field + " must match password"
	default:
		return field + " is invalid"
	}
}
