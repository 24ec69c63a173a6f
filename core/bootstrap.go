package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
)

// BootstrapUser creates cfg.BootstrapUsername with a generated password when
// that account does not exist yet. It is idempotent.
func BootstrapUser(ctx context.Context, auth AuthService, cfg Config) error {
	if cfg.BootstrapUsername == "" {
		return nil
	}

	password, err := generatePassword(24)
	if err != nil {
		return err
	}

	_, err = auth.Register(ctx, RegisterInput{
		Username:        cfg.BootstrapUsername,
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Kind == KindConflict {
			return nil
		}
		return err
	}

	if cfg.BootstrapPasswordPath != "" {
		if err := os.WriteFile(cfg.BootstrapPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		slog.Info("bootstrap user created; credentials written", "username", cfg.BootstrapUsername, "path", cfg.BootstrapPasswordPath)
	} else {
		slog.Info("bootstrap user created", "username", cfg.BootstrapUsername, "password", password)
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
