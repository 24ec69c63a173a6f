package core

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	csrfContextKey  = "auth.csrf_token"
	csrfFormField   = "csrf_token"
	csrfHeader      = "X-CSRF-Token"
	requestIDHeader = "X-Request-ID"
)

var errForbiddenOrigin = errors.New("origin not allowed")

// RequestIDMiddleware tags each request with an ID and logs its outcome.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(requestIDHeader, id)

		start := time.Now()
		c.Next()
		slog.Debug("request handled",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// CORSMiddleware returns a gin-contrib/cors handler for the configured
// origins, or nil when no cross-origin callers are allowed.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	origins := cfg.Origins()
	if len(origins) == 0 {
		return nil
	}
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", csrfHeader}
	corsConfig.ExposeHeaders = []string{csrfHeader}
	return cors.New(corsConfig)
}

// OriginRefererMiddleware rejects unsafe requests whose Origin (or Referer)
// is neither this host nor one of the allowed origins.
func OriginRefererMiddleware(cfg Config, views *Views) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.Origins() {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" || origin == "null" {
			if referer := c.GetHeader("Referer"); referer != "" {
				if u, err := url.Parse(referer); err == nil {
					origin = u.Scheme + "://" + u.Host
				}
			}
		}
		if origin == "" {
			// Same-origin navigation without Origin/Referer headers.
			c.Next()
			return
		}

		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, c.Request.Host) {
			c.Next()
			return
		}
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			c.Next()
			return
		}

		views.Status(c, http.StatusForbidden, "Forbidden", errForbiddenOrigin)
		c.Abort()
	}
}

// CSRFMiddleware issues a signed double-submit token cookie and, for unsafe
// methods, requires the same token in the form body or X-CSRF-Token header.
func CSRFMiddleware(cfg Config, cookies *cookieCodec, views *Views) gin.HandlerFunc {
	cookieName := cfg.SessionName + "_csrf"

	return func(c *gin.Context) {
		token, ok := cookies.read(c.Request, cookieName)
		if !ok {
			var err error
			token, err = randomHex(32)
			if err != nil {
				views.Error(c, InternalError("failed to issue csrf token", err))
				c.Abort()
				return
			}
			if err := cookies.write(c.Writer, cookieName, token); err != nil {
				views.Error(c, InternalError("failed to issue csrf token", err))
				c.Abort()
				return
			}
		}

		if !isSafeMethod(c.Request.Method) {
			received := c.GetHeader(csrfHeader)
			if received == "" {
				received = c.PostForm(csrfFormField)
			}
			if received == "" || subtle.ConstantTimeCompare([]byte(received), []byte(token)) != 1 {
				views.Status(c, http.StatusForbidden, "Forbidden", errors.New("invalid csrf token"))
				c.Abort()
				return
			}
		}

		c.Set(csrfContextKey, token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
