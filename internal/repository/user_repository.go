package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hangout-reservations/internal/model"
)

// UserRepo reads the 'users' table.  Users are owned by the identity
// service; this table only mirrors the fields shown in summaries.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user.  A duplicate id yields ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	u.ID = strings.TrimSpace(u.ID)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, display_name, image_path) VALUES (?,?,?)",
		u.ID, u.DisplayName, nullString(u.ImagePath))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return unavailable("create user", err)
	}
	return nil
}

// Save inserts u or overwrites the display fields of an existing user.
func (r *UserRepo) Save(ctx context.Context, u model.User) error {
	u.ID = strings.TrimSpace(u.ID)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET display_name=?, image_path=? WHERE id=?",
		u.DisplayName, nullString(u.ImagePath), u.ID)
	if err != nil {
		return unavailable("update user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL reports 0 rows for an unchanged row, so a duplicate here means
	// the user is already up to date.
	if err := r.Create(ctx, u); err != nil && !errors.Is(err, ErrConflict) {
		return err
	}
	return nil
}

// GetByID fetches a user by id.  ErrNotFound is returned for unknown ids.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var (
		u   model.User
		img sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,display_name,image_path FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.DisplayName, &img)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, unavailable("get user", err)
	}
	u.ImagePath = img.String
	return u, nil
}
