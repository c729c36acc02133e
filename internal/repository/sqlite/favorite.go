package sqlite

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

// FavoriteDB is the SQLite favourites store.
type FavoriteDB struct {
	conn *sql.DB
}

var _ repository.FavoriteRepository = (*FavoriteDB)(nil)

// Create inserts the user's favourites row. A second row for the same user
// is a conflict.
func (f *FavoriteDB) Create(ctx context.Context, fav *model.Favorite) error {
	if fav.Games == nil {
		fav.Games = []string{}
	}
	fav.CreatedAt = time.Now().UTC()

	games, err := json.Marshal(fav.Games)
	if err != nil {
		return fmt.Errorf("sqlite: encoding favorite games: %w", err)
	}

	_, err = f.conn.ExecContext(ctx,
		`INSERT INTO favorites (user_id, games, created_at) VALUES (?, ?, ?)`,
		fav.UserID, string(games), fav.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("favorite", fav.UserID)
		}
		return apperror.Storage("sqlite: creating favorite", err)
	}
	return nil
}

func (f *FavoriteDB) GetByUser(ctx context.Context, userID string) (*model.Favorite, error) {
	return getFavorite(ctx, f.conn, userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getFavorite(ctx context.Context, q queryRower, userID string) (*model.Favorite, error) {
	var (
		fav   model.Favorite
		games string
	)
	err := q.QueryRowContext(ctx,
		`SELECT user_id, games, created_at FROM favorites WHERE user_id = ?`, userID,
	).Scan(&fav.UserID, &games, &fav.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("favorite", userID)
		}
		return nil, apperror.Storage("sqlite: getting favorite", err)
	}
	if err := json.Unmarshal([]byte(games), &fav.Games); err != nil {
		return nil, fmt.Errorf("sqlite: decoding favorite games for %s: %w", userID, err)
	}
	return &fav, nil
}

// AddGame appends game to the user's list if it is not there yet.
func (f *FavoriteDB) AddGame(ctx context.Context, userID, game string) error {
	tx, err := f.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Storage("sqlite: beginning favorite update", err)
	}
	defer tx.Rollback()

	fav, err := getFavorite(ctx, tx, userID)
	if err != nil {
		return err
	}
	if fav.Has(game) {
		return nil
	}

	games, err := json.Marshal(append(fav.Games, game))
	if err != nil {
		return fmt.Errorf("sqlite: encoding favorite games: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE favorites SET games = ? WHERE user_id = ?`, string(games), userID,
	); err != nil {
		return apperror.Storage("sqlite: updating favorite", err)
	}
	if err := tx.Commit(); err != nil {
		return apperror.Storage("sqlite: committing favorite update", err)
	}
	return nil
}

func (f *FavoriteDB) DeleteByUser(ctx context.Context, userID string) error {
	result, err := f.conn.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ?`, userID)
	if err != nil {
		return apperror.Storage("sqlite: deleting favorite", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("sqlite: checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("favorite", userID)
	}
	return nil
}
