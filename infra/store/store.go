// Package store is the Postgres persistence layer backing the worker tasks:
// expired refresh token cleanup and user lookups for registration follow-ups.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned by FindUserByID for unknown ids.
var ErrUserNotFound = errors.New("store: user not found")

// User is the subset of the users table the mail pipeline needs.
type User struct {
	ID        int32
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
}

// DisplayName renders the best available salutation for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != nil && u.LastName != nil:
		return *u.FirstName + " " + *u.LastName
	case u.FirstName != nil:
		return *u.FirstName
	default:
		return u.Email
	}
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects the pool and verifies connectivity before returning.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// FindUserByID loads the user row for registration follow-up mail.
func (s *Store) FindUserByID(ctx context.Context, id int32) (User, error) {
	const q = `SELECT id, email, first_name, last_name, phone FROM users WHERE id = $1`

	var u User
	err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("store: find user %d: %w", id, err)
	}
	return u, nil
}

// DeleteExpiredTokens purges expired refresh tokens in batches of batchSize
// until none remain, returning the total number of deleted rows. Batching
// keeps each statement short so the tokens table stays responsive for the
// login path.
func (s *Store) DeleteExpiredTokens(ctx context.Context, batchSize int) (int64, error) {
	const q = `
		DELETE FROM refresh_tokens
		WHERE token IN (
			SELECT token FROM refresh_tokens
			WHERE expires_at < now()
			LIMIT $1
		)`

	var total int64
	for {
		tag, err := s.pool.Exec(ctx, q, batchSize)
		if err != nil {
			return total, fmt.Errorf("store: delete expired tokens: %w", err)
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(batchSize) {
			return total, nil
		}
	}
}

func (s *Store) Close() {
	s.pool.Close()
}
