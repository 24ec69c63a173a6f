package core

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRateLimiter_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewLoginRateLimiter(clock, 6, 2) // one token every 10s

	ok, _ := l.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)

	ok, wait := l.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.InDelta(t, 10*time.Second, wait, float64(time.Millisecond))

	// Other clients are unaffected.
	ok, _ = l.Allow("5.6.7.8")
	assert.True(t, ok)

	// A refused attempt does not consume a token.
	clock.Advance(10 * time.Second)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestLoginRateLimiter_SweepsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewLoginRateLimiter(clock, 60, 1)

	l.Allow("a")
	l.Allow("b")
	assert.Len(t, l.limiters, 2)

	clock.Advance(rateLimiterExpiry + time.Second)
	l.Allow("c")
	assert.Len(t, l.limiters, 1)
}

func TestLoginRateLimiter_HTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.LoginRatePerMinute = 1
	cfg.LoginBurst = 2
	app := newTestApp(t, cfg, nil)

	form := url.Values{"username": {"mallory"}, "password": {"guess"}}
	for i := 0; i < 2; i++ {
		resp, _ := app.postForm(t, "/auth/login", form)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := app.postForm(t, "/auth/login", form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Contains(t, body, "Too many login attempts")
	assert.Contains(t, body, `value="mallory"`)

	// Other routes are not throttled.
	resp, _ = app.get(t, "/auth/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
