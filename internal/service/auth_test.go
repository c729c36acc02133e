package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/session"
)

// =========================================================================
// Login TESTS
// =========================================================================

func TestLogin_BindsSessionAndPicksLanding(t *testing.T) {
	tests := []struct {
		name        string
		marker      string
		wantLanding string
	}{
		{"user lands on games", "", "/games"},
		{"admin lands on admin", testAdminSecret, "/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cmd := validRegister("a@x.com")
			cmd.AdminMarker = tt.marker
			id := f.register(t, cmd)

			sess := session.New("sid")
			res, err := f.auth.Login(context.Background(), LoginCommand{Email: "a@x.com", Password: "hunter2hunter2"}, sess)
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if res.Landing != tt.wantLanding {
				t.Errorf("Landing = %q, want %q", res.Landing, tt.wantLanding)
			}

			token, user, ok := sess.Current()
			if !ok {
				t.Fatal("session should be bound after login")
			}
			if user.ID != id {
				t.Errorf("bound user = %q, want %q", user.ID, id)
			}
			subject, err := f.tokens.Validate(token)
			if err != nil {
				t.Fatalf("bound token does not validate: %v", err)
			}
			if subject != id {
				t.Errorf("token subject = %q, want %q", subject, id)
			}
		})
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t, validRegister("a@x.com"))

	_, err := f.auth.Login(context.Background(), LoginCommand{Email: "A@X.COM", Password: "hunter2hunter2"}, session.New("sid"))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLogin_WrongPasswordLeavesSessionUnbound(t *testing.T) {
	f := newFixture(t)
	f.register(t, validRegister("a@x.com"))
	sess := session.New("sid")

	res, err := f.auth.Login(context.Background(), LoginCommand{Email: "a@x.com", Password: "not-the-password"}, sess)
	if !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("Login() error = %v, want ErrIncorrectPassword", err)
	}
	if res != nil {
		t.Error("no result expected on failure")
	}
	if _, _, ok := sess.Current(); ok {
		t.Error("session must not be bound after a failed login")
	}
	if sess.Dirty() {
		t.Error("failed login should not touch the session")
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	sess := session.New("sid")

	_, err := f.auth.Login(context.Background(), LoginCommand{Email: "nobody@x.com", Password: "whatever"}, sess)
	if !errors.Is(err, ErrEmailNotRegistered) {
		t.Fatalf("Login() error = %v, want ErrEmailNotRegistered", err)
	}
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("KindOf = %s, want NotFound", apperror.KindOf(err))
	}
}

func TestLogin_InvalidCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(context.Background(), LoginCommand{Email: "", Password: ""}, session.New("sid"))
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("KindOf = %s, want Validation", apperror.KindOf(err))
	}
}

// =========================================================================
// Logout TESTS
// =========================================================================

func TestLogout_ClearsBinding(t *testing.T) {
	f := newFixture(t)
	sess := boundSession(t, f, "user-1", model.RoleUser)

	f.auth.Logout(sess)

	if _, _, ok := sess.Current(); ok {
		t.Error("session should be cleared after logout")
	}
}

func TestLogout_AnonymousIsHarmless(t *testing.T) {
	f := newFixture(t)
	sess := session.New("sid")

	f.auth.Logout(sess)

	if _, _, ok := sess.Current(); ok {
		t.Error("anonymous session should stay unbound")
	}
}
