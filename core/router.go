package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Dependencies are the collaborators NewRouter wires into the handlers.
type Dependencies struct {
	Auth     AuthService
	Sessions SessionStore
	// Backends are pinged by /healthz; nil means nothing to check.
	Backends map[string]Pinger
	// Clock drives the login rate limiter; nil uses the real clock.
	Clock clockwork.Clock
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), RequestIDMiddleware())
	r.SetHTMLTemplate(loadTemplates())

	views := NewViews(cfg)
	cookies := newCookieCodec(cfg)

	if h := CORSMiddleware(cfg); h != nil {
		r.Use(h)
	}

	r.GET("/healthz", HealthHandler(deps.Backends))
	r.GET("/metrics", MetricsHandler())
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/auth")
	})

	// Middleware order: origin check -> CSRF -> session resolution.
	auth := r.Group("/auth")
	auth.Use(OriginRefererMiddleware(cfg, views))
	if cfg.CSRFEnabled {
		auth.Use(CSRFMiddleware(cfg, cookies, views))
	}
	auth.Use(SessionMiddleware(cfg, deps.Sessions, cookies, views))

	h := NewAuthHandler(deps.Auth, views)
	{
		auth.GET("", h.Index)
		auth.GET("/login", h.LoginForm)
		auth.GET("/register", h.RegisterForm)
		auth.POST("/register", h.Register)

		login := []gin.HandlerFunc{h.Login}
		if cfg.LoginRatePerMinute > 0 {
			limiter := NewLoginRateLimiter(deps.Clock, cfg.LoginRatePerMinute, cfg.LoginBurst)
			login = append([]gin.HandlerFunc{limiter.Middleware(views)}, login...)
		}
		auth.POST("/login", login...)

		auth.GET("/logout", h.Logout)
		auth.GET("/dashboard", h.Dashboard)
		auth.POST("/user-info", h.UserInfo)
	}

	r.NoRoute(func(c *gin.Context) {
		views.Status(c, http.StatusNotFound, MsgNotFound, nil)
	})

	return r
}
