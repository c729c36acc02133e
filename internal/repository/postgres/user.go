package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/model"
	"github.com/sakif/game-reviews/internal/repository"
)

type UserDB struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, username, full_name, password_hash, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *model.User) error {
	return row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName,
		&u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
}

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.Username, user.FullName,
		user.PasswordHash, string(user.Role), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return apperror.Storage("postgres: creating user", err)
	}
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id), &user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Storage(fmt.Sprintf("postgres: getting user %s", id), err)
	}
	return &user, nil
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email), &user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.Storage("postgres: getting user by email", err)
	}
	return &user, nil
}

func (u *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, apperror.Storage("postgres: listing users", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var user model.User
		if err := scanUser(rows, &user); err != nil {
			return nil, apperror.Storage("postgres: scanning user row", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("postgres: iterating users", err)
	}
	return users, nil
}

// Update locks the row, compares, and writes only when a value differs.
// Postgres counts matched rows in its command tag, which is why the
// comparison happens here rather than via RowsAffected.
func (u *UserDB) Update(ctx context.Context, id string, upd repository.UserUpdate) (repository.UpdateResult, error) {
	var res repository.UpdateResult

	tx, err := u.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, apperror.Storage("postgres: beginning user update", err)
	}
	defer tx.Rollback()

	var current model.User
	err = scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id), &current)
	if errors.Is(err, sql.ErrNoRows) {
		return res, nil
	}
	if err != nil {
		return res, apperror.Storage(fmt.Sprintf("postgres: reading user %s", id), err)
	}
	res.Matched = 1

	if !upd.Differs(&current) {
		return res, nil
	}

	sets, args := updateAssignments(upd)
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return res, apperror.Conflict("user", *upd.Email)
		}
		return res, apperror.Storage(fmt.Sprintf("postgres: updating user %s", id), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return res, apperror.Storage("postgres: checking rows affected", err)
	}
	if err := tx.Commit(); err != nil {
		return res, apperror.Storage("postgres: committing user update", err)
	}
	res.Changed = n
	return res, nil
}

func updateAssignments(upd repository.UserUpdate) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.FullName != nil {
		add("full_name", *upd.FullName)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	return sets, args
}

func (u *UserDB) Delete(ctx context.Context, id string) error {
	result, err := u.conn.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperror.Storage(fmt.Sprintf("postgres: deleting user %s", id), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("postgres: checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
