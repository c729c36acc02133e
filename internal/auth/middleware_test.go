package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/session"
)

// stubUsers answers GetByID from a map; err, when set, is returned instead.
type stubUsers struct {
	users map[string]*model.User
	err   error
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

type guardFixture struct {
	tokens   *TokenIssuer
	users    *stubUsers
	sessions *session.Manager
	guard    *Guard
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := NewTokenIssuer("guard-secret", time.Hour)
	require.NoError(t, err)
	sessions := session.NewManager(session.NewMemoryStore(), session.Options{}, logger)
	users := &stubUsers{users: map[string]*model.User{}}
	return &guardFixture{
		tokens:   tokens,
		users:    users,
		sessions: sessions,
		guard:    NewGuard(tokens, users, sessions, logger),
	}
}

// request builds a request carrying sess in its context.
func request(method, target string, sess *session.Session) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	return r.WithContext(session.NewContext(r.Context(), sess))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func (f *guardFixture) boundSession(t *testing.T, id string, role model.Role) *session.Session {
	t.Helper()
	token, err := f.tokens.Issue(id)
	require.NoError(t, err)
	f.users.users[id] = &model.User{ID: id, Role: role}
	s := session.New("sid-" + id)
	s.Bind(token, model.User{ID: id, Role: role})
	return s
}

// =========================================================================
// RequireAuth
// =========================================================================

func TestRequireAuth_ValidSession(t *testing.T) {
	f := newGuardFixture(t)
	sess := f.boundSession(t, "u1", model.RoleUser)

	var called bool
	var seen string
	h := f.guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen, _ = UserIDFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), request(http.MethodGet, "/games", sess))

	assert.True(t, called)
	assert.Equal(t, "u1", seen)
}

func TestRequireAuth_NoIdentityRedirectsToLogin(t *testing.T) {
	f := newGuardFixture(t)

	var called bool
	rec := httptest.NewRecorder()
	f.guard.RequireAuth(okHandler(&called)).ServeHTTP(rec, request(http.MethodGet, "/games", session.New("sid")))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAuth_TokenForAnotherUserClearsSession(t *testing.T) {
	f := newGuardFixture(t)
	otherToken, err := f.tokens.Issue("u2")
	require.NoError(t, err)
	sess := session.New("sid")
	sess.Bind(otherToken, model.User{ID: "u1", Role: model.RoleUser})

	var called bool
	rec := httptest.NewRecorder()
	f.guard.RequireAuth(okHandler(&called)).ServeHTTP(rec, request(http.MethodGet, "/games", sess))

	assert.False(t, called)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	_, _, ok := sess.Current()
	assert.False(t, ok, "session should be cleared")
}

func TestRequireAuth_ForgedTokenRejected(t *testing.T) {
	f := newGuardFixture(t)
	sess := session.New("sid")
	sess.Bind("forged.token.value", model.User{ID: "u1", Role: model.RoleAdmin})

	var called bool
	rec := httptest.NewRecorder()
	f.guard.RequireAuth(okHandler(&called)).ServeHTTP(rec, request(http.MethodGet, "/admin", sess))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestRequireAuth_DeletedUserIsLoggedOut(t *testing.T) {
	f := newGuardFixture(t)
	sess := f.boundSession(t, "a1", model.RoleAdmin)
	delete(f.users.users, "a1")

	var called bool
	rec := httptest.NewRecorder()
	h := f.guard.RequireAuth(f.guard.RequireAdmin(okHandler(&called)))
	h.ServeHTTP(rec, request(http.MethodGet, "/admin", sess))

	assert.False(t, called)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	_, _, ok := sess.Current()
	assert.False(t, ok, "session should be cleared")
}

func TestRequireAuth_RoleIsReadFromStore(t *testing.T) {
	f := newGuardFixture(t)
	sess := f.boundSession(t, "a1", model.RoleAdmin)
	f.users.users["a1"].Role = model.RoleUser

	var called bool
	rec := httptest.NewRecorder()
	h := f.guard.RequireAuth(f.guard.RequireAdmin(okHandler(&called)))
	h.ServeHTTP(rec, request(http.MethodGet, "/admin", sess))

	assert.False(t, called, "a demoted admin must not reach admin routes")
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, model.RoleUser, sess.Role())
}

func TestRequireAuth_StoreFailureIs503(t *testing.T) {
	f := newGuardFixture(t)
	sess := f.boundSession(t, "u1", model.RoleUser)
	f.users.err = apperror.Storage("stub: reading user", errors.New("down"))

	var called bool
	rec := httptest.NewRecorder()
	f.guard.RequireAuth(okHandler(&called)).ServeHTTP(rec, request(http.MethodGet, "/games", sess))

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	_, _, ok := sess.Current()
	assert.True(t, ok, "a store outage does not log the user out")
}

// =========================================================================
// RequireAdmin / RequireSelfOrAdmin
// =========================================================================

func TestRequireAdmin(t *testing.T) {
	f := newGuardFixture(t)

	tests := []struct {
		name       string
		role       model.Role
		wantCalled bool
	}{
		{"admin passes", model.RoleAdmin, true},
		{"user is redirected", model.RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := f.boundSession(t, "u1", tt.role)
			var called bool
			rec := httptest.NewRecorder()
			f.guard.RequireAdmin(okHandler(&called)).ServeHTTP(rec, request(http.MethodGet, "/admin", sess))

			assert.Equal(t, tt.wantCalled, called)
			if !tt.wantCalled {
				assert.Equal(t, "/", rec.Header().Get("Location"))
			}
		})
	}
}

func TestRequireSelfOrAdmin(t *testing.T) {
	f := newGuardFixture(t)

	tests := []struct {
		name       string
		actorID    string
		role       model.Role
		target     string
		wantCalled bool
	}{
		{"self", "u1", model.RoleUser, "u1", true},
		{"someone else", "u1", model.RoleUser, "u2", false},
		{"admin on someone else", "a1", model.RoleAdmin, "u2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := f.boundSession(t, tt.actorID, tt.role)
			var called bool

			r := chi.NewRouter()
			r.With(f.guard.RequireSelfOrAdmin).Put("/profiles/{id}", okHandler(&called).ServeHTTP)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, request(http.MethodPut, "/profiles/"+tt.target, sess))

			assert.Equal(t, tt.wantCalled, called)
		})
	}
}
