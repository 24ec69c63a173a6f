package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("USER_STORE", "memory")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("SESSION_MAX_AGE", "30m")
	t.Setenv("CSRF_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.UserStore)
	assert.Equal(t, 30*time.Minute, cfg.SessionMaxAge)
	assert.False(t, cfg.CSRFEnabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, "auth_session", cfg.SessionName)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
session_name: sid
session_max_age: 2h
user_store: memory
session_store: memory
allowed_origins: "https://a.example, https://b.example"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "sid", cfg.SessionName)
	assert.Equal(t, 2*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SESSION_NAME=from_dotenv\nUSER_STORE=memory\nSESSION_STORE=memory\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SESSION_NAME")
		os.Unsetenv("USER_STORE")
		os.Unsetenv("SESSION_STORE")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.SessionName)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown user store", func(c *Config) { c.UserStore = "mongo" }, false},
		{"unknown session store", func(c *Config) { c.SessionStore = "file" }, false},
		{"unknown hasher", func(c *Config) { c.PasswordHasher = "sha1" }, false},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 1 }, false},
		{"argon2 zero memory", func(c *Config) { c.PasswordHasher = HasherArgon2id; c.Argon2MemoryKiB = 0 }, false},
		{"postgres without dsn", func(c *Config) { c.DatabaseURL = "" }, false},
		{"redis without url", func(c *Config) { c.RedisURL = "" }, false},
		{"zero max age", func(c *Config) { c.SessionMaxAge = 0 }, false},
		{"empty session name", func(c *Config) { c.SessionName = "" }, false},
		{"short key in release", func(c *Config) { c.GinMode = gin.ReleaseMode; c.SessionKey = "short" }, false},
		{"short key in debug", func(c *Config) { c.SessionKey = "short" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExposeErrors(t *testing.T) {
	cfg := Defaults()
	assert.True(t, cfg.ExposeErrors())
	cfg.GinMode = gin.ReleaseMode
	assert.False(t, cfg.ExposeErrors())
}

func TestParseCSV(t *testing.T) {
	assert.Nil(t, parseCSV(""))
	assert.Equal(t, []string{"a", "b"}, parseCSV(" a, ,b ,"))
}
