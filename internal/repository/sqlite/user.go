package sqlite

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

// UserDB is the SQLite user store.
type UserDB struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, username, full_name, password_hash, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *model.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}

// Create inserts a new user, assigning ID and timestamps in place.
// A duplicate email is reported as a conflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Username,
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return apperror.Storage("sqlite: creating user", err)
	}

	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	), &user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Storage(fmt.Sprintf("sqlite: getting user %s", id), err)
	}
	return &user, nil
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	), &user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.Storage("sqlite: getting user by email", err)
	}
	return &user, nil
}

// List returns every user, oldest first.
func (u *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, apperror.Storage("sqlite: listing users", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var user model.User
		if err := scanUser(rows, &user); err != nil {
			return nil, apperror.Storage("sqlite: scanning user row", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("sqlite: iterating users", err)
	}
	return users, nil
}

// Update applies upd to the row with the given id.
//
// SQLite's changes() counts matched rows, not modified ones, so the row is
// read first inside the transaction and compared in Go. A missing row is not
// an error here: the result simply reports Matched == 0.
func (u *UserDB) Update(ctx context.Context, id string, upd repository.UserUpdate) (repository.UpdateResult, error) {
	var res repository.UpdateResult

	tx, err := u.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, apperror.Storage("sqlite: beginning user update", err)
	}
	defer tx.Rollback()

	var current model.User
	err = scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	), &current)
	if errors.Is(err, sql.ErrNoRows) {
		return res, nil
	}
	if err != nil {
		return res, apperror.Storage(fmt.Sprintf("sqlite: reading user %s", id), err)
	}
	res.Matched = 1

	if !upd.Differs(&current) {
		return res, nil
	}

	sets, args := updateAssignments(upd)
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.UpdateResult{Matched: 1}, apperror.Conflict("user", *upd.Email)
		}
		return res, apperror.Storage(fmt.Sprintf("sqlite: updating user %s", id), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return res, apperror.Storage("sqlite: checking rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return res, apperror.Storage("sqlite: committing user update", err)
	}
	res.Changed = n
	return res, nil
}

// updateAssignments turns the set fields of upd into "col = ?" pairs.
func updateAssignments(upd repository.UserUpdate) ([]string, []any) {
	var sets []string
	var args []any
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, *upd.FullName)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*upd.Role))
	}
	return sets, args
}

func (u *UserDB) Delete(ctx context.Context, id string) error {
	result, err := u.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return apperror.Storage(fmt.Sprintf("sqlite: deleting user %s", id), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("sqlite: checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
