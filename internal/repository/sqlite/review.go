package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/repository"
)

// ReviewDB is the SQLite review store.
type ReviewDB struct {
	conn *sql.DB
}

var _ repository.ReviewRepository = (*ReviewDB)(nil)

func (r *ReviewDB) Create(ctx context.Context, review *model.Review) error {
	review.ID = xid.New().String()
	review.CreatedAt = time.Now().UTC()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO reviews (id, author, game, title, content, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		review.ID,
		review.Author,
		review.Game,
		review.Title,
		review.Content,
		review.Rating,
		review.CreatedAt,
	)
	if err != nil {
		return apperror.Storage("sqlite: creating review", err)
	}
	return nil
}

// ListByAuthor returns the author's reviews in creation order.
func (r *ReviewDB) ListByAuthor(ctx context.Context, author string) ([]model.Review, error) {
	return r.list(ctx, `WHERE author = ?`, author)
}

func (r *ReviewDB) ListByGame(ctx context.Context, game string) ([]model.Review, error) {
	return r.list(ctx, `WHERE game = ?`, game)
}

func (r *ReviewDB) list(ctx context.Context, where string, arg string) ([]model.Review, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, author, game, title, content, rating, created_at
		 FROM reviews `+where+`
		 ORDER BY created_at ASC, id ASC`,
		arg,
	)
	if err != nil {
		return nil, apperror.Storage("sqlite: listing reviews", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(
			&rv.ID, &rv.Author, &rv.Game, &rv.Title,
			&rv.Content, &rv.Rating, &rv.CreatedAt,
		); err != nil {
			return nil, apperror.Storage("sqlite: scanning review row", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("sqlite: iterating reviews", err)
	}
	return reviews, nil
}

func (r *ReviewDB) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return apperror.Storage(fmt.Sprintf("sqlite: deleting review %s", id), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("sqlite: checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("review", id)
	}
	return nil
}
