package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/auth"
	"github.com/sakif/game-reviews/internal/catalog"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/repository"
	"github.com/sakif/game-reviews/internal/route"
	"github.com/sakif/game-reviews/internal/session"
)

const catalogFailed = "IGDB API call failed!"

// GameCatalog is the part of catalog.Client the handlers use.
type GameCatalog interface {
	Popular(ctx context.Context) ([]catalog.Game, error)
	Search(ctx context.Context, term string) ([]catalog.Game, error)
	Game(ctx context.Context, id int64) (*catalog.Game, error)
}

// GamesHandler serves the catalog pages.
//
//	GET  /games               → HandlePopular
//	GET  /games/search?q=     → HandleSearch
//	GET  /games/{id}          → HandleShow
//	POST /games/{id}/favorite → HandleAddFavorite
type GamesHandler struct {
	responder
	catalog   GameCatalog
	users     auth.UserLookup
	reviews   repository.ReviewRepository
	favorites repository.FavoriteRepository
}

// NewGamesHandler accepts a nil catalog; the catalog routes then answer 503.
func NewGamesHandler(
	c GameCatalog,
	users auth.UserLookup,
	reviews repository.ReviewRepository,
	favorites repository.FavoriteRepository,
	sessions *session.Manager,
	logger *slog.Logger,
) *GamesHandler {
	return &GamesHandler{
		responder: responder{sessions: sessions, logger: logger},
		catalog:   c,
		users:     users,
		reviews:   reviews,
		favorites: favorites,
	}
}

type GameList struct {
	Games []catalog.Game `json:"games"`
}

// GameReview is a review with its author resolved. AuthorUser is nil when
// the author no longer exists.
type GameReview struct {
	model.Review
	AuthorUser *model.PublicUser `json:"authorUser,omitempty"`
}

// GameDetail is a game page: the game, its reviews, and the viewer's
// favourites so the page can show whether it is already one of them.
type GameDetail struct {
	Game      catalog.Game `json:"game"`
	Reviews   []GameReview `json:"reviews"`
	Favorites []string     `json:"favorites"`
}

func (h *GamesHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog != nil {
		return true
	}
	h.saveSession(w, r)
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:   "Unavailable",
		Message: "game catalog is not configured",
	})
	return false
}

func (h *GamesHandler) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, catalog.ErrNoResults) {
		h.logger.Error("catalog request failed", slog.String("error", err.Error()))
	}
	h.redirect(w, r, session.FlashError, catalogFailed, route.Root)
}

func (h *GamesHandler) HandlePopular(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	games, err := h.catalog.Popular(r.Context())
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, GameList{Games: games})
}

func (h *GamesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	games, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, GameList{Games: games})
}

func (h *GamesHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, apperror.ValidationFailed("id", "game id must be a positive integer"))
		return
	}

	game, err := h.catalog.Game(r.Context(), id)
	if err != nil {
		h.catalogError(w, r, err)
		return
	}

	detail := GameDetail{Game: *game, Reviews: []GameReview{}, Favorites: []string{}}

	reviews, err := h.reviews.ListByGame(r.Context(), strconv.FormatInt(id, 10))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail.Reviews = h.withAuthors(r.Context(), reviews)

	if sess := session.FromContext(r.Context()); sess != nil {
		if _, u, ok := sess.Current(); ok {
			fav, err := h.favorites.GetByUser(r.Context(), u.ID)
			switch {
			case err == nil:
				detail.Favorites = fav.Games
			case !errors.Is(err, apperror.ErrNotFound):
				h.logger.Warn("loading favorites failed", slog.String("userID", u.ID), slog.String("error", err.Error()))
			}
		}
	}

	h.respond(w, r, http.StatusOK, detail)
}

// withAuthors resolves each review's author once per distinct id.
func (h *GamesHandler) withAuthors(ctx context.Context, reviews []model.Review) []GameReview {
	out := make([]GameReview, 0, len(reviews))
	authors := make(map[string]*model.PublicUser)
	for _, rv := range reviews {
		author, seen := authors[rv.Author]
		if !seen {
			u, err := h.users.GetByID(ctx, rv.Author)
			switch {
			case err == nil:
				pub := u.Public()
				author = &pub
			case !errors.Is(err, apperror.ErrNotFound):
				h.logger.Warn("loading review author failed", slog.String("userID", rv.Author), slog.String("error", err.Error()))
			}
			authors[rv.Author] = author
		}
		out = append(out, GameReview{Review: rv, AuthorUser: author})
	}
	return out
}

// HandleAddFavorite adds the game to the signed-in user's favourites. It runs
// behind auth.Guard.RequireAuth. A user whose list was never created at
// registration gets one now.
func (h *GamesHandler) HandleAddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.redirect(w, r, session.FlashError, "Please log in to continue.", route.Login)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, apperror.ValidationFailed("id", "game id must be a positive integer"))
		return
	}
	game := strconv.FormatInt(id, 10)

	err = h.favorites.AddGame(r.Context(), userID, game)
	if errors.Is(err, apperror.ErrNotFound) {
		err = h.favorites.Create(r.Context(), &model.Favorite{UserID: userID, Games: []string{game}})
	}
	if err != nil {
		h.logger.Error("adding favorite failed",
			slog.String("userID", userID),
			slog.String("game", game),
			slog.String("error", err.Error()),
		)
		h.redirect(w, r, session.FlashError, "Could not add the game to your favorites!", route.Game(game))
		return
	}
	h.redirect(w, r, session.FlashSuccess, "Game added to your favorites!", route.Game(game))
}
