package handler

import (
	"net/http"
	"strings"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/service"
)

// Request decoding. Everything the browser submits is turned into a typed
// command here; services never see raw form values. Fields that are not part
// of a command (_csrf, _method and anything else) are dropped on the floor.

func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return apperror.ValidationFailed("body", "malformed form body")
	}
	return nil
}

// optional returns nil for a missing or blank field.
func optional(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostForm.Get(key)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func decodeRegister(r *http.Request) (service.RegisterCommand, error) {
	if err := parseForm(r); err != nil {
		return service.RegisterCommand{}, err
	}
	f := r.PostForm
	return service.RegisterCommand{
		Email:           f.Get("email"),
		Username:        f.Get("username"),
		FullName:        f.Get("fullName"),
		Password:        f.Get("password"),
		ConfirmPassword: f.Get("confirmPassword"),
		AdminMarker:     f.Get("admin"),
	}, nil
}

// decodeUpdate treats blank inputs as "leave unchanged": an edit form posts
// every field, and an empty password box means keep the current password.
func decodeUpdate(r *http.Request) (service.UpdateCommand, error) {
	if err := parseForm(r); err != nil {
		return service.UpdateCommand{}, err
	}
	cmd := service.UpdateCommand{
		Email:       optional(r, "email"),
		Username:    optional(r, "username"),
		FullName:    optional(r, "fullName"),
		Password:    optional(r, "password"),
		AdminMarker: r.PostForm.Get("admin"),
	}
	if cmd.Password != nil {
		confirm := r.PostForm.Get("confirmPassword")
		cmd.ConfirmPassword = &confirm
	}
	return cmd, nil
}

func decodeLogin(r *http.Request) (service.LoginCommand, error) {
	if err := parseForm(r); err != nil {
		return service.LoginCommand{}, err
	}
	return service.LoginCommand{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}, nil
}
