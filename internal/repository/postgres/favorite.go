package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/repository"
)

type FavoriteDB struct {
	conn *sql.DB
}

var _ repository.FavoriteRepository = (*FavoriteDB)(nil)

func (f *FavoriteDB) Create(ctx context.Context, fav *model.Favorite) error {
	if fav.Games == nil {
		fav.Games = []string{}
	}
	fav.CreatedAt = time.Now().UTC()

	games, err := json.Marshal(fav.Games)
	if err != nil {
		return fmt.Errorf("postgres: encoding favorite games: %w", err)
	}
	_, err = f.conn.ExecContext(ctx,
		`INSERT INTO favorites (user_id, games, created_at) VALUES ($1, $2, $3)`,
		fav.UserID, string(games), fav.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("favorite", fav.UserID)
		}
		return apperror.Storage("postgres: creating favorite", err)
	}
	return nil
}

func (f *FavoriteDB) GetByUser(ctx context.Context, userID string) (*model.Favorite, error) {
	var (
		fav   model.Favorite
		games []byte
	)
	err := f.conn.QueryRowContext(ctx,
		`SELECT user_id, games, created_at FROM favorites WHERE user_id = $1`, userID,
	).Scan(&fav.UserID, &games, &fav.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("favorite", userID)
		}
		return nil, apperror.Storage("postgres: getting favorite", err)
	}
	if err := json.Unmarshal(games, &fav.Games); err != nil {
		return nil, fmt.Errorf("postgres: decoding favorite games for %s: %w", userID, err)
	}
	return &fav, nil
}

// AddGame appends game with a single statement; the jsonb containment check
// keeps the list free of duplicates.
func (f *FavoriteDB) AddGame(ctx context.Context, userID, game string) error {
	item, err := json.Marshal([]string{game})
	if err != nil {
		return fmt.Errorf("postgres: encoding favorite game: %w", err)
	}
	result, err := f.conn.ExecContext(ctx,
		`UPDATE favorites
		 SET games = CASE WHEN games @> $2::jsonb THEN games ELSE games || $2::jsonb END
		 WHERE user_id = $1`,
		userID, string(item))
	if err != nil {
		return apperror.Storage("postgres: updating favorite", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("postgres: checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("favorite", userID)
	}
	return nil
}

func (f *FavoriteDB) DeleteByUser(ctx context.Context, userID string) error {
	result, err := f.conn.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1`, userID)
	if err != nil {
		return apperror.Storage("postgres: deleting favorite", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("postgres: checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("favorite", userID)
	}
	return nil
}
