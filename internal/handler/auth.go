package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/route"
	"github.com/sakif/game-reviews/internal/service"
	"github.com/sakif/game-reviews/internal/session"
)

// AuthHandler logs users in and out.
//
//	POST /login   → HandleLogin
//	GET  /logout  → HandleLogout
//	GET  /me      → HandleMe
//	GET  /flashes → HandleFlashes
type AuthHandler struct {
	responder
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService, sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		responder: responder{sessions: sessions, logger: logger},
		auth:      auth,
	}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	cmd, err := decodeLogin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess := session.FromContext(r.Context())
	if sess == nil {
		h.fail(w, r, errors.New("handler: no session in request context"))
		return
	}

	res, err := h.auth.Login(r.Context(), cmd, sess)
	switch {
	case err == nil:
		h.redirect(w, r, session.FlashSuccess, "", res.Landing)
	case errors.Is(err, service.ErrEmailNotRegistered):
		h.redirect(w, r, session.FlashError, service.ErrEmailNotRegistered.Message, route.Register)
	case errors.Is(err, service.ErrIncorrectPassword):
		h.redirect(w, r, session.FlashError, service.ErrIncorrectPassword.Message, route.Login)
	case apperror.KindOf(err) == apperror.KindValidation:
		h.fail(w, r, err)
	default:
		h.logger.Error("login failed", slog.String("error", err.Error()))
		h.redirect(w, r, session.FlashError, "An error has occurred during login!", route.Login)
	}
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		h.auth.Logout(sess)
	}
	h.redirect(w, r, session.FlashSuccess, "Successfully logged out!", route.Root)
}

// Me is the current identity, if any.
type Me struct {
	Authenticated bool              `json:"authenticated"`
	User          *model.PublicUser `json:"user,omitempty"`
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	var me Me
	if sess := session.FromContext(r.Context()); sess != nil {
		if _, u, ok := sess.Current(); ok {
			me = Me{Authenticated: true, User: &u}
		}
	}
	h.respond(w, r, http.StatusOK, me)
}

// FlashList is the payload of GET /flashes.
type FlashList struct {
	Flashes []session.Flash `json:"flashes"`
}

// HandleFlashes drains the queued messages.
func (h *AuthHandler) HandleFlashes(w http.ResponseWriter, r *http.Request) {
	out := FlashList{Flashes: []session.Flash{}}
	if sess := session.FromContext(r.Context()); sess != nil {
		if f := sess.PopFlashes(); len(f) > 0 {
			out.Flashes = f
		}
	}
	h.respond(w, r, http.StatusOK, out)
}
