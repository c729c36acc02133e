package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/auth"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/route"
	"github.com/sakif/game-reviews/internal/session"
)

// Login failures. Handlers pick the flash message and redirect off these.
var (
	ErrEmailNotRegistered = &apperror.AppError{
		Err:     apperror.ErrNotFound,
		Message: "You do not have an account associated to this email!",
		Field:   "email",
	}
	ErrIncorrectPassword = &apperror.AppError{
		Err:     apperror.ErrUnauthorized,
		Message: "Incorrect Password!",
		Field:   "password",
	}
)

// AuthService logs users in and out by binding and clearing their session.
type AuthService struct {
	users     userReader
	passwords *auth.CredentialStore
	tokens    *auth.TokenIssuer
	logger    *slog.Logger
}

type userReader interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

func NewAuthService(
	users userReader,
	passwords *auth.CredentialStore,
	tokens *auth.TokenIssuer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// LoginResult is what a successful login bound to the session.
type LoginResult struct {
	User    model.PublicUser
	Token   string
	Landing string
}

// Login verifies cmd and, only on success, binds the issued token and the
// sanitized user to sess.
func (s *AuthService) Login(ctx context.Context, cmd LoginCommand, sess *session.Session) (*LoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(cmd.Email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrEmailNotRegistered
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", cmd.Email, err)
	}

	if !s.passwords.Verify(cmd.Password, user.PasswordHash) {
		s.logger.Info("login rejected", slog.String("userID", user.ID))
		return nil, ErrIncorrectPassword
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}
	sess.Bind(token, *user)

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)
	return &LoginResult{
		User:    user.Public(),
		Token:   token,
		Landing: route.Landing(user.Role),
	}, nil
}

// Logout clears the identity bound to sess.
func (s *AuthService) Logout(sess *session.Session) {
	if _, u, ok := sess.Current(); ok {
		s.logger.Info("user logged out", slog.String("userID", u.ID))
	}
	sess.Clear()
}
