package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"itembook/internal/models"
)

const userColumns = `id, name, email, password_hash, phone, address, role, created_at, updated_at`

// CreateUser inserts a user. Returns ErrDuplicateEmail when the address is taken.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :email, :password_hash, :phone, :address, :role, :created_at, :updated_at)`, u)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns a user or ErrNotFound.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail returns a user or ErrNotFound.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, models.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUserRole changes a user's role.
func (db *DB) UpdateUserRole(ctx context.Context, email string, role models.Role) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE email = ?`,
		role, time.Now().UTC(), models.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return expectOneRow(res)
}

// DeleteUserByEmail removes a user and, by cascade, their booking requests.
func (db *DB) DeleteUserByEmail(ctx context.Context, email string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, models.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
