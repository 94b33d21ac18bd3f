// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const userColumns = `id, name, email, password_hash, role, is_active, require_password_change,
can_delete_admins, last_login_at, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.RequirePasswordChange, &u.CanDeleteAdmins, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const createUser = `INSERT INTO users (id, name, email, password_hash, role, is_active,
require_password_change, can_delete_admins, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, 0, ?, ?)
RETURNING ` + userColumns

// CreateUser inserts a user; ErrDuplicate when the email is taken.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, createUser,
		arg.ID, arg.Name, strings.ToLower(arg.Email), arg.PasswordHash, arg.Role,
		arg.RequirePasswordChange, arg.CreatedAt, arg.UpdatedAt))
	if isUniqueViolation(err) {
		return User{}, ErrDuplicate
	}
	return u, err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

// GetUserByID returns a user or ErrNotFound.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

// GetUserByEmail looks a user up by lower-cased email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, getUserByEmail, strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, email`

// ListUsers returns all users, oldest first.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserPassword stores a new hash and sets the forced-change flag.
func (q *Queries) UpdateUserPassword(ctx context.Context, id, passwordHash string, requireChange bool, now time.Time) error {
	return q.execOne(ctx,
		`UPDATE users SET password_hash = ?, require_password_change = ?, updated_at = ? WHERE id = ?`,
		passwordHash, requireChange, now, id)
}

// UpdateUserCanDeleteAdmins sets the delete-admins permission flag.
func (q *Queries) UpdateUserCanDeleteAdmins(ctx context.Context, id string, allowed bool, now time.Time) error {
	return q.execOne(ctx,
		`UPDATE users SET can_delete_admins = ?, updated_at = ? WHERE id = ?`,
		allowed, now, id)
}

// UpdateUserLastLogin records a successful login.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	return q.execOne(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
}

// DeleteUser removes a user; ErrNotFound when absent.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	return q.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}
