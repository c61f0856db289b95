package repository

import (
	"context"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/model"
)

const userColumns = `id, email, password_hash, full_name, role, team_id, active,
	password_change_required, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.TeamID,
		&u.Active,
		&u.PasswordChangeRequired,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, full_name, role, team_id, password_change_required)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns+`
	`, u.Email, u.PasswordHash, u.FullName, u.Role, u.TeamID, u.PasswordChangeRequired)
	created, err := scanUser(row)
	return created, wrapErr(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND active
	`, email)
	u, err := scanUser(row)
	return u, wrapErr(err)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	u, err := scanUser(row)
	return u, wrapErr(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY email
	`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		users = append(users, u)
	}
	return users, wrapErr(rows.Err())
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, password_change_required = FALSE, updated_at = now()
		WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
