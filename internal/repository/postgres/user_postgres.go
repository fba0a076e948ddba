package postgres

import (
	"context"
	"database/sql"

	"formsapi/internal/model"
	"formsapi/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

const userColumns = `id, username, email, first_name, last_name, role, password_hash, date_joined`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.PasswordHash,
		&u.DateJoined,
	); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, username, email, first_name, last_name, role, password_hash, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Username,
		u.Email,
		u.FirstName,
		u.LastName,
		u.Role,
		u.PasswordHash,
		u.DateJoined,
	))
}

func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail matches case-insensitively.
func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *UserPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY date_joined DESC, id DESC LIMIT $1 OFFSET $2`,
		pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.User]{Items: items, Total: total}, nil
}

func (r *UserPostgres) Update(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		UPDATE users
		SET username = $2, email = $3, first_name = $4, last_name = $5, role = $6
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Username,
		u.Email,
		u.FirstName,
		u.LastName,
		u.Role,
	))
}

func (r *UserPostgres) UpdatePassword(ctx context.Context, id, hash string) error {
	return execOne(ctx, r.db, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *UserPostgres) Delete(ctx context.Context, id string) error {
	return execOne(ctx, r.db, `DELETE FROM users WHERE id = $1`, id)
}

// execOne runs a statement expected to touch one row.
func execOne(ctx context.Context, db *sql.DB, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
