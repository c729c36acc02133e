// Package service holds the account business rules. It sits between the HTTP
// handlers and the stores:
//
//	handler → AccountService / AuthService → Users, Reviews, Favorites
//	                                       ↘ CredentialStore, TokenIssuer, ElevationGuard
//
// Nothing in here reads requests or writes responses. The only request-scoped
// state a service touches is the *session.Session the handler passes in.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/auth"
	"github.com/sakif/game-reviews/internal/events"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/repository"
	"github.com/sakif/game-reviews/internal/route"
	"github.com/sakif/game-reviews/internal/session"
)

// ErrAccountNotFound is returned by Delete when the user row does not exist.
var ErrAccountNotFound = &apperror.AppError{
	Err:     apperror.ErrNotFound,
	Message: "User not found!",
}

// AccountService registers, updates and deletes accounts.
//
// Users, Reviews and Favorites are separate stores with no shared
// transaction. Register and Delete write to them in a fixed order and do not
// undo earlier writes when a later one fails.
type AccountService struct {
	users     repository.UserRepository
	reviews   repository.ReviewRepository
	favorites repository.FavoriteRepository
	passwords *auth.CredentialStore
	elevation *auth.ElevationGuard
	events    events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewAccountService(
	users repository.UserRepository,
	reviews repository.ReviewRepository,
	favorites repository.FavoriteRepository,
	passwords *auth.CredentialStore,
	elevation *auth.ElevationGuard,
	publisher events.Publisher,
	logger *slog.Logger,
) *AccountService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AccountService{
		users:     users,
		reviews:   reviews,
		favorites: favorites,
		passwords: passwords,
		elevation: elevation,
		events:    publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterOutcome is the result of a registration whose user row was stored.
// FavoriteInitialized is false when the follow-up favourites write failed;
// the account exists without one and nothing repairs it.
type RegisterOutcome struct {
	User                model.PublicUser
	FavoriteInitialized bool
}

// Register validates cmd, stores the user, then creates its empty favourites
// list. An error means no user was stored.
func (s *AccountService) Register(ctx context.Context, cmd RegisterCommand) (*RegisterOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    normalizeEmail(cmd.Email),
		Username: strings.TrimSpace(cmd.Username),
		FullName: strings.TrimSpace(cmd.FullName),
		Role:     s.elevation.ResolveRole(cmd.AdminMarker, model.RoleUser),
	}
	if cmd.Password != "" {
		hash, err := s.passwords.Hash(cmd.Password)
		if err != nil {
			return nil, fmt.Errorf("service/account: hashing password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: creating user %s: %w", user.Email, err)
	}

	out := &RegisterOutcome{User: user.Public(), FavoriteInitialized: true}
	if err := s.favorites.Create(ctx, &model.Favorite{UserID: user.ID, Games: []string{}}); err != nil {
		out.FavoriteInitialized = false
		s.logger.Error("user stored without favorites record",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)
	s.publish(ctx, events.Event{
		Type:   events.AccountRegistered,
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	return out, nil
}

// UpdateOutcome carries what the store reported. Only an update that matched
// the row and changed at least one value counts as a success; resubmitting
// the stored values is a failure.
type UpdateOutcome struct {
	Matched int64
	Changed int64
}

func (o UpdateOutcome) Succeeded() bool {
	return o.Matched > 0 && o.Changed > 0
}

// Update applies cmd to the user with the given id. The returned error is
// non-nil only for validation or storage failures; an unknown id or an
// unchanged row comes back as an outcome that did not succeed.
func (s *AccountService) Update(ctx context.Context, id string, cmd UpdateCommand) (UpdateOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return UpdateOutcome{}, err
	}

	upd := repository.UserUpdate{
		Username: trimmed(cmd.Username),
		FullName: trimmed(cmd.FullName),
	}
	if cmd.Email != nil {
		email := normalizeEmail(*cmd.Email)
		upd.Email = &email
	}
	if cmd.Password != nil && *cmd.Password != "" {
		hash, err := s.passwords.Hash(*cmd.Password)
		if err != nil {
			return UpdateOutcome{}, fmt.Errorf("service/account: hashing password: %w", err)
		}
		upd.PasswordHash = &hash
	}
	// A marker that does not match leaves the stored role alone.
	if role := s.elevation.ResolveRole(cmd.AdminMarker, ""); role == model.RoleAdmin {
		upd.Role = &role
	}

	if upd.IsEmpty() {
		return UpdateOutcome{}, nil
	}

	res, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("service/account: updating user %s: %w", id, err)
	}

	out := UpdateOutcome{Matched: res.Matched, Changed: res.Changed}
	if out.Succeeded() {
		s.logger.Info("user updated", slog.String("userID", id))
		s.publish(ctx, events.Event{Type: events.AccountUpdated, UserID: id})
	}
	return out, nil
}

// DeleteOutcome reports how far a deletion got and where the actor goes next.
type DeleteOutcome struct {
	ReviewsDeleted  int
	FavoriteDeleted bool
	SessionCleared  bool
	Redirect        string
}

// Delete removes the user's reviews one at a time, then its favourites list,
// then the user row. A review that is already gone counts as removed. Any
// other failure stops the cascade where it is; whatever was already removed
// stays removed. ErrAccountNotFound means the user row itself was missing.
//
// When the actor is not an admin the actor's session is cleared afterwards,
// since the only account a non-admin can delete is its own.
func (s *AccountService) Delete(ctx context.Context, id string, actor *session.Session) (*DeleteOutcome, error) {
	out := &DeleteOutcome{}

	reviews, err := s.reviews.ListByAuthor(ctx, id)
	if err != nil {
		return out, fmt.Errorf("service/account: listing reviews of %s: %w", id, err)
	}
	for _, r := range reviews {
		err := s.reviews.Delete(ctx, r.ID)
		if errors.Is(err, apperror.ErrNotFound) {
			// Removed by a concurrent request since the listing.
			out.ReviewsDeleted++
			continue
		}
		if err != nil {
			s.logger.Error("review cascade stopped",
				slog.String("userID", id),
				slog.String("reviewID", r.ID),
				slog.Int("deleted", out.ReviewsDeleted),
				slog.Int("remaining", len(reviews)-out.ReviewsDeleted),
			)
			return out, fmt.Errorf("service/account: deleting review %s: %w", r.ID, err)
		}
		out.ReviewsDeleted++
	}

	switch err := s.favorites.DeleteByUser(ctx, id); {
	case err == nil:
		out.FavoriteDeleted = true
	case errors.Is(err, apperror.ErrNotFound):
		// Registration can leave an account without one.
	default:
		return out, fmt.Errorf("service/account: deleting favorites of %s: %w", id, err)
	}

	switch err := s.users.Delete(ctx, id); {
	case errors.Is(err, apperror.ErrNotFound):
		return out, ErrAccountNotFound
	case err != nil:
		return out, fmt.Errorf("service/account: deleting user %s: %w", id, err)
	}

	var actorRole model.Role
	if actor != nil {
		actorRole = actor.Role()
		if actorRole != model.RoleAdmin {
			actor.Clear()
			out.SessionCleared = true
		}
	}
	out.Redirect = route.AfterDelete(actorRole)

	s.logger.Info("user deleted",
		slog.String("userID", id),
		slog.Int("reviews", out.ReviewsDeleted),
		slog.Bool("sessionCleared", out.SessionCleared),
	)
	s.publish(ctx, events.Event{
		Type:            events.AccountDeleted,
		UserID:          id,
		ReviewsDeleted:  out.ReviewsDeleted,
		FavoriteDeleted: out.FavoriteDeleted,
	})
	return out, nil
}

// ListUsers returns every account, sanitized.
func (s *AccountService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing users: %w", err)
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (model.PublicUser, error) {
	if id == "" {
		return model.PublicUser{}, apperror.ValidationFailed("id", "user ID must not be empty")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("service/account: fetching user %s: %w", id, err)
	}
	return u.Public(), nil
}

func (s *AccountService) publish(ctx context.Context, evt events.Event) {
	evt.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publishing account event failed",
			slog.String("type", string(evt.Type)),
			slog.String("userID", evt.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
