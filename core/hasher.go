package core

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordHasher computes and verifies slow salted one-way hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Verify reports whether password matches hash. A malformed hash is an error;
	// a mismatch is not.
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// ErrPasswordTooLong is returned by Hash when the hasher cannot take the
// whole password into account.
var ErrPasswordTooLong = errors.New("password too long")

// bcryptMaxPasswordBytes is the most input bcrypt reads.
const bcryptMaxPasswordBytes = 72

// NewPasswordHasher builds the hasher selected by cfg, bounded by cfg.HashConcurrency.
func NewPasswordHasher(cfg Config) (PasswordHasher, error) {
	var inner PasswordHasher
	switch cfg.PasswordHasher {
	case HasherBcrypt:
		inner = BcryptHasher{Cost: cfg.BcryptCost}
	case HasherArgon2id:
		inner = Argon2Hasher{
			Time:    cfg.Argon2Time,
			Memory:  cfg.Argon2MemoryKiB,
			Threads: cfg.Argon2Threads,
			KeyLen:  32,
			SaltLen: 16,
		}
	default:
		return nil, fmt.Errorf("unknown password hasher %q", cfg.PasswordHasher)
	}
	return NewBoundedHasher(inner, int64(cfg.HashConcurrency)), nil
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(_ context.Context, password string) (string, error) {
	if len(password) > bcryptMaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h BcryptHasher) Verify(_ context.Context, password, hash string) (bool, error) {
	if len(password) > bcryptMaxPasswordBytes {
		// Hash never stores such a password.
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// Argon2Hasher hashes with argon2id and encodes the result in PHC format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

func (h Argon2Hasher) Hash(_ context.Context, password string) (string, error) {
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, h.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (h Argon2Hasher) Verify(_ context.Context, password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrMalformedHash
	}
	if memory == 0 || iterations == 0 || threads == 0 {
		return false, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false, ErrMalformedHash
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// BoundedHasher limits how many hashes run at once. Requests that do not hash
// are unaffected; requests waiting for a slot give up when their context ends.
type BoundedHasher struct {
	inner PasswordHasher
	sem   *semaphore.Weighted
}

func NewBoundedHasher(inner PasswordHasher, limit int64) *BoundedHasher {
	if limit <= 0 {
		limit = 1
	}
	return &BoundedHasher{inner: inner, sem: semaphore.NewWeighted(limit)}
}

func (h *BoundedHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	start := time.Now()
	defer func() { hashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds()) }()
	return h.inner.Hash(ctx, password)
}

func (h *BoundedHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	start := time.Now()
	defer func() { hashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds()) }()
	return h.inner.Verify(ctx, password, hash)
}
