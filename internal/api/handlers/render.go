package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"polls-service/internal/api/middleware"
	"polls-service/internal/models"
	"polls-service/internal/services"
	"polls-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Renderer renders page templates with the per-request context every page
// needs: the current user and pending flash messages.
type Renderer struct {
	redisService *services.RedisService
}

func NewRenderer(redisService *services.RedisService) *Renderer {
	return &Renderer{redisService: redisService}
}

// HTML renders the named template. Flashes already present in data are shown
// after the stored ones.
func (r *Renderer) HTML(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	userID, _ := middleware.CurrentUserID(c)
	data["UserID"] = userID
	data["User"] = c.GetString(middleware.ContextUsername)

	var flashes []models.Flash
	if userID != 0 {
		stored, err := r.redisService.PopFlashes(c.Request.Context(), userID)
		if err != nil {
			slog.Warn("Failed to read flashes", "userID", userID, "error", err)
		}
		flashes = append(flashes, stored...)
	}
	if extra, ok := data["Flashes"].([]models.Flash); ok {
		flashes = append(flashes, extra...)
	}
	data["Flashes"] = flashes

	c.HTML(status, name, data)
}

// Flash queues a message for the current user's next page.
func (r *Renderer) Flash(c *gin.Context, level, message string) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	if err := r.redisService.AddFlash(c.Request.Context(), userID, level, message); err != nil {
		slog.Warn("Failed to store flash", "userID", userID, "error", err)
	}
}

// Invalid redisplays a form with the validation problems and a 422 status.
func (r *Renderer) Invalid(c *gin.Context, name string, data gin.H, err error) {
	data["Flashes"] = []models.Flash{{Level: models.FlashWarning, Message: validationMessage(err)}}
	r.HTML(c, http.StatusUnprocessableEntity, name, data)
}

func (r *Renderer) NotFound(c *gin.Context, message string) {
	r.HTML(c, http.StatusNotFound, "404.html", gin.H{"Title": "Not found", "Message": message})
}

func (r *Renderer) ServerError(c *gin.Context, err error) {
	slog.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	_ = c.Error(err)
	r.HTML(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Server error"})
}

// RedirectToList is the silent answer to a failed ownership check.
func RedirectToList(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/polls/")
}

// pathID parses a numeric path parameter. ok is false when the value is not a
// positive integer; callers answer 404.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := utils.StringToUint(c.Param(name))
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

var fieldLabels = map[string]string{
	"Text":       "Question",
	"Choice1":    "Choice 1",
	"Choice2":    "Choice 2",
	"ChoiceText": "Choice",
	"Username":   "Username",
	"Email":      "Email",
	"Password":   "Password",
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Please correct the errors below."
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label := fieldLabels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		var msg string
		switch fe.Tag() {
		case "required", "notblank":
			msg = "This field is required."
		case "max":
			msg = fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
		case "min":
			msg = fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
		case "email":
			msg = "Enter a valid email address."
		default:
			msg = "Enter a valid value."
		}
		msgs = append(msgs, label+": "+msg)
	}
	return strings.Join(msgs, " ")
}
