package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/game-reviews/internal/apperror"
)

// DefaultCookieName is the cookie carrying the session id.
const DefaultCookieName = "sid"

// Options configure the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager moves sessions between the cookie, the Store and the request context.
type Manager struct {
	store  Store
	opts   Options
	logger *slog.Logger
	newID  func() string
}

func NewManager(store Store, opts Options, logger *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		opts:   opts,
		logger: logger,
		newID:  func() string { return xid.New().String() },
	}
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request's session, or nil outside Middleware.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// Middleware loads the caller's session and attaches it to the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// Load returns the session named by the request cookie. Unknown, expired or
// unreadable ids yield a fresh session with a new id.
func (m *Manager) Load(r *http.Request) *Session {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return New(m.newID())
	}

	d, err := m.store.Load(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			m.logger.Warn("loading session failed, starting a new one",
				slog.String("error", err.Error()),
			)
		}
		return New(m.newID())
	}
	return FromData(c.Value, d)
}

// Save persists s and writes its cookie. It must run before the response
// status is written. An empty session is removed and its cookie expired.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	ctx := r.Context()

	if s.rotated {
		old := s.id
		s.id = m.newID()
		s.rotated = false
		if err := m.store.Delete(ctx, old); err != nil {
			m.logger.Warn("deleting rotated session failed", slog.String("error", err.Error()))
		}
	}

	if s.isEmpty() {
		if err := m.store.Delete(ctx, s.id); err != nil {
			return err
		}
		http.SetCookie(w, m.cookie("", -1))
		s.dirty = false
		return nil
	}

	if err := m.store.Save(ctx, s.id, s.Data(), m.opts.TTL); err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(s.id, int(m.opts.TTL.Seconds())))
	s.dirty = false
	return nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
