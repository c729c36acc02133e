package session

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	st := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(st, Options{TTL: time.Hour}, logger), st
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", DefaultCookieName)
	return nil
}

func TestManager_SaveThenLoad(t *testing.T) {
	m, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := m.Load(req)
	s.AddFlash(FlashSuccess, "hello")

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, req, s))
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, s.ID(), c.Value)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(c)
	loaded := m.Load(next)
	assert.Equal(t, s.ID(), loaded.ID())
	assert.Equal(t, []Flash{{Kind: FlashSuccess, Message: "hello"}}, loaded.PopFlashes())
}

func TestManager_BindRotatesID(t *testing.T) {
	m, st := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := m.Load(req)
	s.AddFlash(FlashError, "pre-login")
	require.NoError(t, m.Save(httptest.NewRecorder(), req, s))
	before := s.ID()

	s.Bind("tok", testUser())
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, req, s))

	assert.NotEqual(t, before, s.ID())
	assert.Equal(t, s.ID(), sessionCookie(t, rec).Value)
	_, err := st.Load(req.Context(), before)
	assert.Error(t, err, "pre-login id must be gone")
}

func TestManager_EmptySessionExpiresCookie(t *testing.T) {
	m, st := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := m.Load(req)
	s.Bind("tok", testUser())
	require.NoError(t, m.Save(httptest.NewRecorder(), req, s))

	s.Clear()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, req, s))

	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	assert.Equal(t, 0, st.Len())
}

func TestManager_UnknownCookieStartsFresh(t *testing.T) {
	m, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})

	s := m.Load(req)
	assert.NotEqual(t, "forged", s.ID())
	_, _, ok := s.Current()
	assert.False(t, ok)
}

func TestManager_Middleware(t *testing.T) {
	m, _ := newTestManager(t)

	var got *Session
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID())
	assert.Nil(t, FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
