// Package session implements the request-scoped identity binding.
//
// A Session is an explicit value: handlers get it from the request context
// and pass it to the services that need to bind or clear the caller's
// identity. Nothing here is global. Persistence between requests is the job
// of a Store, and the Manager moves a Session between cookie, store and
// context.
package session

import (
	"github.com/sakif/game-reviews/internal/model"
)

// FlashKind tags a one-shot message for the presentation layer.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a message shown once on the next page.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// Data is the persisted form of a session. User is always the sanitized view.
type Data struct {
	Token   string            `json:"token,omitempty"`
	User    *model.PublicUser `json:"user,omitempty"`
	Flashes []Flash           `json:"flashes,omitempty"`
}

// Session is the identity bound to one client.
type Session struct {
	id      string
	data    Data
	dirty   bool
	rotated bool
}

// New returns an empty session with the given id.
func New(id string) *Session {
	return &Session{id: id}
}

// FromData rebuilds a session loaded from a Store.
func FromData(id string, d Data) *Session {
	return &Session{id: id, data: d}
}

func (s *Session) ID() string { return s.id }

// Data returns a copy of the persisted form.
func (s *Session) Data() Data {
	d := s.data
	d.Flashes = append([]Flash(nil), s.data.Flashes...)
	return d
}

// Bind stores token and the sanitized user, replacing any previous identity.
// The session id is rotated on the next save so a pre-login id cannot be
// reused after login.
func (s *Session) Bind(token string, user model.User) {
	pub := user.Public()
	s.data.Token = token
	s.data.User = &pub
	s.dirty = true
	s.rotated = true
}

// Refresh replaces the bound user record while keeping the token and the
// session id. It does nothing when no identity is bound.
func (s *Session) Refresh(user model.User) {
	if s.data.User == nil {
		return
	}
	pub := user.Public()
	s.data.User = &pub
	s.dirty = true
}

// Clear removes the bound token and user. Pending flashes survive, so a
// logout can still say goodbye.
func (s *Session) Clear() {
	s.data.Token = ""
	s.data.User = nil
	s.dirty = true
}

// Current returns the bound token and user, if any.
func (s *Session) Current() (string, model.PublicUser, bool) {
	if s.data.User == nil || s.data.Token == "" {
		return "", model.PublicUser{}, false
	}
	return s.data.Token, *s.data.User, true
}

// Role is the bound user's role, or empty when nobody is bound.
func (s *Session) Role() model.Role {
	if _, u, ok := s.Current(); ok {
		return u.Role
	}
	return ""
}

// AddFlash queues a message for the next page.
func (s *Session) AddFlash(kind FlashKind, message string) {
	s.data.Flashes = append(s.data.Flashes, Flash{Kind: kind, Message: message})
	s.dirty = true
}

// PopFlashes returns and removes queued messages.
func (s *Session) PopFlashes() []Flash {
	f := s.data.Flashes
	if len(f) > 0 {
		s.data.Flashes = nil
		s.dirty = true
	}
	return f
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) isEmpty() bool {
	return s.data.Token == "" && s.data.User == nil && len(s.data.Flashes) == 0
}
