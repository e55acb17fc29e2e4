package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	RestaurantID string
	CreatedAt    time.Time
}

type UserStore struct {
	conn *sql.DB
}

func NewUserStore(conn *sql.DB) *UserStore {
	return &UserStore{conn: conn}
}

func (s *UserStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.conn.ExecContext(ctx, insertUser,
		u.ID, u.Email, u.PasswordHash, u.Role, u.RestaurantID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.conn.QueryRowContext(ctx, getUserByEmail, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.RestaurantID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.conn.QueryRowContext(ctx, getUserByID, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.RestaurantID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.conn.ExecContext(ctx, updateUserPassword, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}
