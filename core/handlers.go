package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	loginPath     = "/auth/login"
	dashboardPath = "/auth/dashboard"
)

// AuthHandler adapts AuthService and the request Session to HTTP.
type AuthHandler struct {
	auth  AuthService
	views *Views
}

func NewAuthHandler(auth AuthService, views *Views) *AuthHandler {
	return &AuthHandler{auth: auth, views: views}
}

func (h *AuthHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to Auth")
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	h.views.Page(c, http.StatusOK, "login.tmpl", gin.H{"Username": ""})
}

func (h *AuthHandler) RegisterForm(c *gin.Context) {
	h.views.Page(c, http.StatusOK, "register.tmpl", gin.H{"Username": ""})
}

func (h *AuthHandler) Register(c *gin.Context) {
	in := RegisterInput{
		Username:        c.PostForm("username"),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirmPassword"),
	}
	ctx := c.Request.Context()

	identity, err := h.auth.Register(ctx, in)
	if err != nil {
		h.formError(c, "register.tmpl", in.Username, AsAppError(err, MsgRegistrationFailed))
		return
	}
	if err := SessionFrom(c).Establish(ctx, identity); err != nil {
		h.views.Error(c, InternalError(MsgRegistrationFailed, err))
		return
	}
	c.Redirect(http.StatusFound, dashboardPath)
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	ctx := c.Request.Context()

	identity, err := h.auth.Authenticate(ctx, username, password)
	if err != nil {
		h.formError(c, "login.tmpl", username, AsAppError(err, MsgLoginFailed))
		return
	}
	if err := SessionFrom(c).Establish(ctx, identity); err != nil {
		h.views.Error(c, InternalError(MsgLoginFailed, err))
		return
	}
	c.Redirect(http.StatusFound, dashboardPath)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := SessionFrom(c).Destroy(c.Request.Context()); err != nil {
		h.views.Error(c, InternalError(MsgLogoutFailed, err))
		return
	}
	c.Redirect(http.StatusFound, loginPath)
}

func (h *AuthHandler) Dashboard(c *gin.Context) {
	identity, ok := SessionFrom(c).Identity()
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	h.views.Page(c, http.StatusOK, "dashboard.tmpl", gin.H{"Username": identity.Username})
}

func (h *AuthHandler) UserInfo(c *gin.Context) {
	identity, ok := SessionFrom(c).Identity()
	if !ok {
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	h.views.Page(c, http.StatusOK, "user-info.tmpl", gin.H{"User": identity})
}

// formError re-renders the form for caller errors and the error page for internal ones.
func (h *AuthHandler) formError(c *gin.Context, view, username string, err *AppError) {
	if err.Kind == KindInternal {
		h.views.Error(c, err)
		return
	}
	h.views.Form(c, view, err.HTTPStatus(), err.Message, gin.H{"Username": username})
}
