package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix    = "session:"
	memorySweepInterval = time.Minute
)

// SessionStore maps opaque tokens to identities.
type SessionStore interface {
	// Create stores identity under a fresh token and returns the token.
	Create(ctx context.Context, identity Identity) (string, error)
	// Read returns the identity for token; ok is false when the token is
	// unknown or expired.
	Read(ctx context.Context, token string) (identity Identity, ok bool, err error)
	// Destroy removes token. Destroying an unknown token is not an error.
	Destroy(ctx context.Context, token string) error
}

type sessionRecord struct {
	Identity Identity  `json:"identity"`
	IssuedAt time.Time `json:"issued_at"`
}

// RedisSessionStore keeps sessions as JSON strings with a TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func (s *RedisSessionStore) Create(ctx context.Context, identity Identity) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(sessionRecord{Identity: identity, IssuedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	// SETNX guards against the (practically impossible) token collision.
	created, err := s.client.SetNX(ctx, sessionKey(token), raw, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if !created {
		return "", errors.New("session token collision")
	}
	return token, nil
}

func (s *RedisSessionStore) Read(ctx context.Context, token string) (Identity, bool, error) {
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, false, nil
		}
		return Identity{}, false, fmt.Errorf("load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt entry cannot be trusted; treat it as absent.
		return Identity{}, false, nil
	}
	return rec.Identity, rec.Identity.UserID != "", nil
}

func (s *RedisSessionStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// MemorySessionStore keeps sessions in process memory with expiry.
type MemorySessionStore struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	ttl       time.Duration
	sessions  map[string]memorySession
	lastSweep time.Time
}

type memorySession struct {
	identity  Identity
	expiresAt time.Time
}

func NewMemorySessionStore(clock clockwork.Clock, ttl time.Duration) *MemorySessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemorySessionStore{
		clock:     clock,
		ttl:       ttl,
		sessions:  make(map[string]memorySession),
		lastSweep: clock.Now(),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, identity Identity) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= memorySweepInterval {
		s.sweepLocked(now)
		s.lastSweep = now
	}
	s.sessions[token] = memorySession{identity: identity, expiresAt: now.Add(s.ttl)}
	return token, nil
}

func (s *MemorySessionStore) Read(_ context.Context, token string) (Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Identity{}, false, nil
	}
	if !s.clock.Now().Before(sess.expiresAt) {
		delete(s.sessions, token)
		return Identity{}, false, nil
	}
	return sess.identity, true, nil
}

func (s *MemorySessionStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Len returns the number of live and not yet swept sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) sweepLocked(now time.Time) {
	for token, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, token)
		}
	}
}
