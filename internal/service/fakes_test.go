package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/auth"
	"github.com/sakif/game-reviews/internal/events"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Setting one of the
// *Err fields makes the matching call fail.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int

	createErr error
	updateErr error
	deleteErr error
	listErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.ID = "user-" + strconv.Itoa(f.nextID)
	f.nextID++
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) List(context.Context) ([]model.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserRepo) Update(_ context.Context, id string, upd repository.UserUpdate) (repository.UpdateResult, error) {
	if f.updateErr != nil {
		return repository.UpdateResult{}, f.updateErr
	}
	u, ok := f.users[id]
	if !ok {
		return repository.UpdateResult{}, nil
	}
	if !upd.Differs(u) {
		return repository.UpdateResult{Matched: 1}, nil
	}
	applyUpdate(u, upd)
	return repository.UpdateResult{Matched: 1, Changed: 1}, nil
}

func applyUpdate(u *model.User, upd repository.UserUpdate) {
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

// fakeReviewRepo keeps insertion order so cascade order can be asserted.
type fakeReviewRepo struct {
	reviews []model.Review
	deleted []string

	listErr   error
	failOnID  string
	deleteErr error
	// afterList runs between ListByAuthor and its return, standing in for
	// another request that acts on the same rows.
	afterList func([]model.Review)
}

func (f *fakeReviewRepo) Create(_ context.Context, r *model.Review) error {
	if r.ID == "" {
		r.ID = "review-" + strconv.Itoa(len(f.reviews)+len(f.deleted)+1)
	}
	f.reviews = append(f.reviews, *r)
	return nil
}

func (f *fakeReviewRepo) ListByAuthor(_ context.Context, author string) ([]model.Review, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Review
	for _, r := range f.reviews {
		if r.Author == author {
			out = append(out, r)
		}
	}
	if f.afterList != nil {
		f.afterList(out)
	}
	return out, nil
}

func (f *fakeReviewRepo) ListByGame(_ context.Context, game string) ([]model.Review, error) {
	var out []model.Review
	for _, r := range f.reviews {
		if r.Game == game {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) Delete(_ context.Context, id string) error {
	if id == f.failOnID {
		return f.deleteErr
	}
	for i, r := range f.reviews {
		if r.ID == id {
			f.reviews = append(f.reviews[:i], f.reviews[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return apperror.NotFound("review", id)
}

func (f *fakeReviewRepo) countByAuthor(author string) int {
	n := 0
	for _, r := range f.reviews {
		if r.Author == author {
			n++
		}
	}
	return n
}

type fakeFavoriteRepo struct {
	favorites map[string]*model.Favorite

	createErr error
	deleteErr error
}

func newFakeFavoriteRepo() *fakeFavoriteRepo {
	return &fakeFavoriteRepo{favorites: make(map[string]*model.Favorite)}
}

func (f *fakeFavoriteRepo) Create(_ context.Context, fav *model.Favorite) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.favorites[fav.UserID]; ok {
		return apperror.Conflict("favorite", fav.UserID)
	}
	cp := *fav
	cp.Games = append([]string{}, fav.Games...)
	f.favorites[fav.UserID] = &cp
	return nil
}

func (f *fakeFavoriteRepo) GetByUser(_ context.Context, userID string) (*model.Favorite, error) {
	fav, ok := f.favorites[userID]
	if !ok {
		return nil, apperror.NotFound("favorite", userID)
	}
	cp := *fav
	return &cp, nil
}

func (f *fakeFavoriteRepo) AddGame(_ context.Context, userID, game string) error {
	fav, ok := f.favorites[userID]
	if !ok {
		return apperror.NotFound("favorite", userID)
	}
	if !fav.Has(game) {
		fav.Games = append(fav.Games, game)
	}
	return nil
}

func (f *fakeFavoriteRepo) DeleteByUser(_ context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.favorites[userID]; !ok {
		return apperror.NotFound("favorite", userID)
	}
	delete(f.favorites, userID)
	return nil
}

// recordingPublisher remembers every event it was handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// =========================================================================
// FIXTURE
// =========================================================================

const testAdminSecret = "let-me-in"

type fixture struct {
	users     *fakeUserRepo
	reviews   *fakeReviewRepo
	favorites *fakeFavoriteRepo
	events    *recordingPublisher
	passwords *auth.CredentialStore
	tokens    *auth.TokenIssuer

	accounts *AccountService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := auth.NewTokenIssuer("service-test-secret", auth.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	// Cost 4 is bcrypt's minimum and keeps the suite fast.
	passwords := auth.NewCredentialStoreForTest(4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		users:     newFakeUserRepo(),
		reviews:   &fakeReviewRepo{},
		favorites: newFakeFavoriteRepo(),
		events:    &recordingPublisher{},
		passwords: passwords,
		tokens:    tokens,
	}
	f.accounts = NewAccountService(f.users, f.reviews, f.favorites, passwords,
		auth.NewElevationGuard(testAdminSecret), f.events, logger)
	f.auth = NewAuthService(f.users, passwords, tokens, logger)
	return f
}

func validRegister(email string) RegisterCommand {
	return RegisterCommand{
		Email:           email,
		Username:        "player1",
		FullName:        "Player One",
		Password:        "hunter2hunter2",
		ConfirmPassword: "hunter2hunter2",
	}
}

// register stores a user through the service and returns its id.
func (f *fixture) register(t *testing.T, cmd RegisterCommand) string {
	t.Helper()
	out, err := f.accounts.Register(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Register(%s): %v", cmd.Email, err)
	}
	return out.User.ID
}

func strPtr(s string) *string { return &s }
