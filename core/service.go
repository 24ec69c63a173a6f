package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// dummyPassword is hashed once so that logins for unknown users still pay for
// a full hash comparison.
const dummyPassword = "auth-flow-timing-equalizer"

// RepositoryAuthService implements AuthService over a UserRepository and a PasswordHasher.
type RepositoryAuthService struct {
	users  UserRepository
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewRepositoryAuthService(users UserRepository, hasher PasswordHasher) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, hasher: hasher}
}

// Register validates the form, rejects taken usernames and stores a new user.
func (s *RepositoryAuthService) Register(ctx context.Context, in RegisterInput) (id Identity, err error) {
	defer func() { recordAttempt("register", err) }()

	if in.Username == "" || in.Password == "" || in.ConfirmPassword == "" {
		return Identity{}, ValidationError(MsgAllFieldsRequired)
	}
	if in.Password != in.ConfirmPassword {
		return Identity{}, ValidationError(MsgPasswordMismatch)
	}

	// The read below is only a fast path; Create is the authority on uniqueness.
	_, err = s.users.FindByUsername(ctx, in.Username)
	switch {
	case err == nil:
		return Identity{}, ConflictError(MsgUsernameExists)
	case !errors.Is(err, ErrUserNotFound):
		return Identity{}, InternalError(MsgRegistrationFailed, err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return Identity{}, ValidationError(MsgPasswordTooLong)
		}
		return Identity{}, InternalError(MsgRegistrationFailed, err)
	}

	user, err := s.users.Create(ctx, in.Username, hash)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			slog.InfoContext(ctx, "concurrent registration lost the race", "username", in.Username)
			return Identity{}, ConflictError(MsgUsernameExists)
		}
		return Identity{}, InternalError(MsgRegistrationFailed, err)
	}
	return user.Identity(), nil
}

// Authenticate checks the credentials. Unknown usernames and wrong passwords
// produce the same AuthenticationError.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (id Identity, err error) {
	defer func() { recordAttempt("login", err) }()

	if username == "" || password == "" {
		return Identity{}, ValidationError(MsgAllFieldsRequired)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.burnHash(ctx, password)
			return Identity{}, AuthenticationError()
		}
		return Identity{}, InternalError(MsgLoginFailed, err)
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, ErrMalformedHash) {
			slog.WarnContext(ctx, "stored password hash is malformed", "user_id", user.ID, "error", err)
			return Identity{}, AuthenticationError()
		}
		return Identity{}, InternalError(MsgLoginFailed, err)
	}
	if !ok {
		return Identity{}, AuthenticationError()
	}
	return user.Identity(), nil
}

func (s *RepositoryAuthService) burnHash(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		// Detached from the request so a cancelled caller cannot leave the hash unset.
		hash, err := s.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
		if err != nil {
			slog.WarnContext(ctx, "failed to prepare dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
	}
}
