package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	cfg := Defaults()
	cfg.GinMode = gin.TestMode
	cfg.UserStore = BackendMemory
	cfg.SessionStore = BackendMemory
	cfg.SessionKey = "test-secret-key-32-bytes-long!!!"
	cfg.SessionMaxAge = time.Hour
	cfg.BcryptCost = bcrypt.MinCost
	cfg.HashConcurrency = 4
	cfg.CSRFEnabled = false
	cfg.LoginRatePerMinute = 0
	return cfg
}

func newTestHasher() PasswordHasher {
	return NewBoundedHasher(BcryptHasher{Cost: bcrypt.MinCost}, 4)
}

type testApp struct {
	srv      *httptest.Server
	client   *http.Client
	users    *MemoryUserRepository
	sessions SessionStore
}

// newTestApp serves NewRouter over httptest with in-memory stores. A nil
// sessions argument uses a MemorySessionStore.
func newTestApp(t *testing.T, cfg Config, sessions SessionStore) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := NewMemoryUserRepository()
	if sessions == nil {
		sessions = NewMemorySessionStore(clockwork.NewRealClock(), cfg.SessionMaxAge)
	}
	router := NewRouter(cfg, Dependencies{
		Auth:     NewRepositoryAuthService(users, newTestHasher()),
		Sessions: sessions,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{
		srv:      srv,
		client:   newNoRedirectClient(t),
		users:    users,
		sessions: sessions,
	}
}

func newNoRedirectClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.srv.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.srv.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) register(t *testing.T, username, password string) *http.Response {
	t.Helper()
	resp, _ := a.postForm(t, "/auth/register", url.Values{
		"username":        {username},
		"password":        {password},
		"confirmPassword": {password},
	})
	return resp
}

func (a *testApp) sessionCookie(t *testing.T, name string) *http.Cookie {
	t.Helper()
	u, err := url.Parse(a.srv.URL)
	require.NoError(t, err)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func locationOf(resp *http.Response) string {
	return resp.Header.Get("Location")
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

// flakySessionStore wraps a SessionStore and fails selected operations on demand.
type flakySessionStore struct {
	inner SessionStore

	mu         sync.Mutex
	failRead   bool
	failCreate bool
	failDelete bool
}

var errStoreDown = errors.New("session backend unavailable")

func (s *flakySessionStore) set(read, create, del bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRead, s.failCreate, s.failDelete = read, create, del
}

func (s *flakySessionStore) Create(ctx context.Context, identity Identity) (string, error) {
	s.mu.Lock()
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return "", errStoreDown
	}
	return s.inner.Create(ctx, identity)
}

func (s *flakySessionStore) Read(ctx context.Context, token string) (Identity, bool, error) {
	s.mu.Lock()
	fail := s.failRead
	s.mu.Unlock()
	if fail {
		return Identity{}, false, errStoreDown
	}
	return s.inner.Read(ctx, token)
}

func (s *flakySessionStore) Destroy(ctx context.Context, token string) error {
	s.mu.Lock()
	fail := s.failDelete
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.inner.Destroy(ctx, token)
}
