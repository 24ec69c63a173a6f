package core

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const sessionContextKey = "auth.session"

// cookieCodec signs cookie values and applies consistent cookie options.
type cookieCodec struct {
	cfg   Config
	codec *securecookie.SecureCookie
}

func newCookieCodec(cfg Config) *cookieCodec {
	codec := securecookie.New([]byte(cfg.SessionKey), nil)
	codec.MaxAge(int(cfg.SessionMaxAge.Seconds()))
	return &cookieCodec{cfg: cfg, codec: codec}
}

func (cc *cookieCodec) read(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return cc.decode(cookie)
}

// decode verifies and unwraps a signed cookie value.
func (cc *cookieCodec) decode(cookie *http.Cookie) (string, bool) {
	if cookie.Value == "" {
		return "", false
	}
	var value string
	if err := cc.codec.Decode(cookie.Name, cookie.Value, &value); err != nil {
		return "", false
	}
	return value, true
}

func (cc *cookieCodec) write(w http.ResponseWriter, name, value string) error {
	encoded, err := cc.codec.Encode(name, value)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(name, encoded, cc.options()))
	return nil
}

func (cc *cookieCodec) clear(w http.ResponseWriter, name string) {
	opts := cc.options()
	opts.MaxAge = -1
	http.SetCookie(w, sessions.NewCookie(name, "", opts))
}

func (cc *cookieCodec) options() *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(cc.cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cc.cfg.CookieSecure,
		SameSite: sameSiteFromString(cc.cfg.CookieSameSite),
	}
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Session is the per-request view of the caller's session. Handlers receive
// it from SessionMiddleware via SessionFrom and never touch the store directly.
type Session struct {
	store   SessionStore
	cookies *cookieCodec
	name    string
	w       http.ResponseWriter

	token    string
	identity *Identity
}

// Identity returns the authenticated identity, if any.
func (s *Session) Identity() (Identity, bool) {
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Establish binds identity to a fresh token, discarding any previous one.
func (s *Session) Establish(ctx context.Context, identity Identity) error {
	if s.token != "" {
		if err := s.store.Destroy(ctx, s.token); err != nil {
			slog.WarnContext(ctx, "failed to discard previous session", "error", err)
		}
	}

	token, err := s.store.Create(ctx, identity)
	recordSessionOp("create", err)
	if err != nil {
		return err
	}
	if err := s.cookies.write(s.w, s.name, token); err != nil {
		_ = s.store.Destroy(ctx, token)
		return err
	}
	s.token = token
	s.identity = &identity
	return nil
}

// Destroy removes the session from the store and expires the cookie. Calling
// it without a session only expires the cookie.
func (s *Session) Destroy(ctx context.Context) error {
	if s.token != "" {
		err := s.store.Destroy(ctx, s.token)
		recordSessionOp("destroy", err)
		if err != nil {
			return err
		}
	}
	s.cookies.clear(s.w, s.name)
	s.token = ""
	s.identity = nil
	return nil
}

// SessionMiddleware resolves the session cookie to an identity before the
// handler runs and attaches a *Session to the context.
func SessionMiddleware(cfg Config, store SessionStore, cookies *cookieCodec, views *Views) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := &Session{
			store:   store,
			cookies: cookies,
			name:    cfg.SessionName,
			w:       c.Writer,
		}

		if token, ok := cookies.read(c.Request, cfg.SessionName); ok {
			identity, found, err := store.Read(c.Request.Context(), token)
			recordSessionOp("read", err)
			if err != nil {
				views.Error(c, InternalError(MsgSessionFailed, err))
				c.Abort()
				return
			}
			if found {
				sess.token = token
				sess.identity = &identity
			} else {
				// Stale cookie; drop it so the browser stops sending it.
				cookies.clear(c.Writer, cfg.SessionName)
			}
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// SessionFrom returns the session attached by SessionMiddleware.
func SessionFrom(c *gin.Context) *Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}
