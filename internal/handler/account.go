package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/route"
	"github.com/sakif/game-reviews/internal/service"
	"github.com/sakif/game-reviews/internal/session"
)

// AccountHandler serves registration, profiles and the admin user list.
//
//	POST   /register             → HandleRegister
//	GET    /admin                → HandleListUsers   (admin)
//	GET    /profiles/{id}        → HandleShow        (self or admin)
//	GET    /profiles/{id}/edit   → HandleEdit        (self or admin)
//	PUT    /profiles/{id}        → HandleUpdate      (self or admin)
//	DELETE /profiles/{id}        → HandleDelete      (self or admin)
type AccountHandler struct {
	responder
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService, sessions *session.Manager, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		responder: responder{sessions: sessions, logger: logger},
		accounts:  accounts,
	}
}

func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	cmd, err := decodeRegister(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	_, err = h.accounts.Register(r.Context(), cmd)
	switch {
	case err == nil:
		h.redirect(w, r, session.FlashSuccess, "Your registration has been completed successfully!", route.Login)
	case apperror.KindOf(err) == apperror.KindValidation:
		h.fail(w, r, err)
	default:
		h.logger.Warn("registration failed", slog.String("error", err.Error()))
		h.redirect(w, r, session.FlashError, "An error has occurred in registration!", route.Register)
	}
}

// UserList is the admin page payload.
type UserList struct {
	Users []model.PublicUser `json:"users"`
}

func (h *AccountHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("listing users failed", slog.String("error", err.Error()))
	}
	if err != nil || len(users) == 0 {
		h.redirect(w, r, session.FlashError, "Users not found!", route.Root)
		return
	}
	h.respond(w, r, http.StatusOK, UserList{Users: users})
}

// Profile is the profile page payload.
type Profile struct {
	User     model.PublicUser `json:"user"`
	Editable bool             `json:"editable"`
}

func (h *AccountHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	h.showProfile(w, r, false)
}

func (h *AccountHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	h.showProfile(w, r, true)
}

func (h *AccountHandler) showProfile(w http.ResponseWriter, r *http.Request, editable bool) {
	user, err := h.accounts.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			h.logger.Error("loading profile failed", slog.String("error", err.Error()))
		}
		h.redirect(w, r, session.FlashError, "User not found!", route.Root)
		return
	}
	h.respond(w, r, http.StatusOK, Profile{User: user, Editable: editable})
}

func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cmd, err := decodeUpdate(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.accounts.Update(r.Context(), id, cmd)
	switch {
	case err == nil && out.Succeeded():
		h.refreshBoundUser(r, id)
		h.redirect(w, r, session.FlashSuccess, "User successfully updated!", route.Profile(id))
	case err == nil, apperror.KindOf(err) == apperror.KindConflict:
		h.redirect(w, r, session.FlashError, "User update failed!", route.Profile(id))
	case apperror.KindOf(err) == apperror.KindValidation:
		h.fail(w, r, err)
	default:
		h.logger.Error("updating user failed", slog.String("userID", id), slog.String("error", err.Error()))
		h.redirect(w, r, session.FlashError, "User update failed!", route.Root)
	}
}

// refreshBoundUser keeps the session's copy of the user in step with an
// edit the user made to their own account.
func (h *AccountHandler) refreshBoundUser(r *http.Request, id string) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		return
	}
	_, bound, ok := sess.Current()
	if !ok || bound.ID != id {
		return
	}
	fresh, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		return
	}
	sess.Refresh(model.User{
		ID:        fresh.ID,
		Email:     fresh.Email,
		Username:  fresh.Username,
		FullName:  fresh.FullName,
		Role:      fresh.Role,
		CreatedAt: fresh.CreatedAt,
		UpdatedAt: fresh.UpdatedAt,
	})
}

func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := session.FromContext(r.Context())

	out, err := h.accounts.Delete(r.Context(), id, sess)
	switch {
	case err == nil:
		h.redirect(w, r, session.FlashSuccess, "User successfully deleted!", out.Redirect)
	case errors.Is(err, service.ErrAccountNotFound):
		h.redirect(w, r, session.FlashError, "User not found!", route.Root)
	default:
		h.logger.Error("deleting user failed",
			slog.String("userID", id),
			slog.Int("reviewsDeleted", out.ReviewsDeleted),
			slog.Bool("favoriteDeleted", out.FavoriteDeleted),
			slog.String("error", err.Error()),
		)
		h.redirect(w, r, session.FlashError, "User deletion failed!", route.Root)
	}
}
