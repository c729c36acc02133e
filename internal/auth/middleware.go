package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/route"
	"github.com/sakif/game-reviews/internal/session"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserLookup is the read the guard needs from the user store.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Guard gates routes on the identity bound to the request's session.
// It must run inside session.Manager.Middleware.
type Guard struct {
	tokens   *TokenIssuer
	users    UserLookup
	sessions *session.Manager
	logger   *slog.Logger
}

func NewGuard(tokens *TokenIssuer, users UserLookup, sessions *session.Manager, logger *slog.Logger) *Guard {
	return &Guard{tokens: tokens, users: users, sessions: sessions, logger: logger}
}

// RequireAuth lets the request through only when the session holds a user,
// a token that still validates for that same user, and the user still
// exists. The session's copy of the user is refreshed from the store, so a
// role change or a deletion takes effect on the next request. Anything else
// clears the session and sends the caller to the login page.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			http.Redirect(w, r, route.Login, http.StatusSeeOther)
			return
		}

		token, bound, ok := sess.Current()
		if ok {
			userID, err := g.tokens.Validate(token)
			if err == nil && userID != bound.ID {
				err = errSubjectMismatch
			}
			if err == nil {
				var user *model.User
				user, err = g.users.GetByID(r.Context(), userID)
				if err != nil && !errors.Is(err, apperror.ErrNotFound) {
					g.logger.Error("loading bound user failed",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
					http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
					return
				}
				if err == nil {
					if changed(bound, user) {
						sess.Refresh(*user)
					}
					ctx := context.WithValue(r.Context(), userIDKey, userID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			g.logger.Info("rejecting session token",
				slog.String("user_id", bound.ID),
				slog.String("reason", err.Error()),
			)
			sess.Clear()
		}

		sess.AddFlash(session.FlashError, "Please log in to continue.")
		g.redirect(w, r, sess, route.Login)
	})
}

var errSubjectMismatch = errors.New("subject mismatch")

func changed(bound model.PublicUser, current *model.User) bool {
	return bound.Role != current.Role || bound.Email != current.Email ||
		bound.Username != current.Username || bound.FullName != current.FullName
}

// RequireAdmin must be chained after RequireAuth.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess != nil && sess.Role() == model.RoleAdmin {
			next.ServeHTTP(w, r)
			return
		}
		if sess != nil {
			sess.AddFlash(session.FlashError, "You are not authorized to view this page!")
		}
		g.redirect(w, r, sess, route.Root)
	})
}

// RequireSelfOrAdmin allows the account named by the {id} URL parameter to
// act on itself, and admins to act on anyone. Chain after RequireAuth.
func (g *Guard) RequireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess != nil {
			_, user, ok := sess.Current()
			if ok && (user.IsAdmin() || user.ID == chi.URLParam(r, "id")) {
				next.ServeHTTP(w, r)
				return
			}
			sess.AddFlash(session.FlashError, "You are not authorized to do that!")
		}
		g.redirect(w, r, sess, route.Root)
	})
}

func (g *Guard) redirect(w http.ResponseWriter, r *http.Request, sess *session.Session, target string) {
	if sess != nil {
		if err := g.sessions.Save(w, r, sess); err != nil {
			g.logger.Error("saving session failed", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// UserIDFromContext returns the id RequireAuth validated for this request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
