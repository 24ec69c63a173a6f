package core

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// loadTemplates parses the embedded views; gin looks them up by file name.
func loadTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.tmpl"))
}

// Views renders pages and turns errors into status codes and views.
type Views struct {
	exposeErrors bool
}

func NewViews(cfg Config) *Views {
	return &Views{exposeErrors: cfg.ExposeErrors()}
}

// Page renders a template with the common page data added.
func (v *Views) Page(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if token, ok := c.Get(csrfContextKey); ok {
		data["CSRFToken"] = token
	}
	c.HTML(status, name, data)
}

// Form re-renders a form page with an error message.
func (v *Views) Form(c *gin.Context, name string, status int, message string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Error"] = message
	v.Page(c, status, name, data)
}

// Error renders the error page for err. Internal errors are logged and their
// cause is only shown when exposeErrors is set.
func (v *Views) Error(c *gin.Context, err *AppError) {
	status := err.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), err.Message,
			"request_id", c.GetString(requestIDHeader),
			"path", c.Request.URL.Path,
			"error", err.Cause,
		)
	}
	v.Status(c, status, err.Message, err.Cause)
}

// Status renders the error page with an explicit status and message.
func (v *Views) Status(c *gin.Context, status int, message string, cause error) {
	data := gin.H{"Message": message, "Status": status}
	if v.exposeErrors && cause != nil {
		data["Detail"] = cause.Error()
	}
	v.Page(c, status, "error.tmpl", data)
}
