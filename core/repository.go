package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

var (
	// ErrUserNotFound is returned when no user has the requested username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned by Create when the username is already stored.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRecord represents a user as stored in the persistence layer.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity returns the session principal for the record.
func (u UserRecord) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}

// UserRepository defines persistence operations for users.
// Implementations must enforce username uniqueness on Create.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	Create(ctx context.Context, username, passwordHash string) (*UserRecord, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id::text, username, password_hash, created_at FROM users WHERE username=$1`
	var u UserRecord
	if err := r.db.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, username, passwordHash string) (*UserRecord, error) {
	const q = `INSERT INTO users (username, password_hash) VALUES ($1,$2) RETURNING id::text, created_at`
	u := UserRecord{Username: username, PasswordHash: passwordHash}
	if err := r.db.QueryRow(ctx, q, username, passwordHash).Scan(&u.ID, &u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	return &u, nil
}

// MemoryUserRepository keeps users in process memory. It is meant for local
// development and tests; data is lost on restart.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]UserRecord)}
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, username, passwordHash string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[username]; exists {
		return nil, ErrUsernameTaken
	}
	u := UserRecord{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[username] = u
	return &u, nil
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
