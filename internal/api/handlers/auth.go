package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"polls-service/internal/api/middleware"
	"polls-service/internal/models"
	"polls-service/internal/services"
	"polls-service/internal/utils"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService *services.UserService
	render      *Renderer
	tokenTTL    time.Duration
}

func NewAuthHandler(userService *services.UserService, render *Renderer, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{userService: userService, render: render, tokenTTL: tokenTTL}
}

// Register godoc
// @Summary Register a new user
// @Description Register a new user with username, email, and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "User registration data"
// @Success 201 {object} models.UserResponse "User created successfully"
// @Failure 400 {object} models.ErrorResponse "Bad request - invalid input data"
// @Failure 409 {object} models.ErrorResponse "Username or email already taken"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid input data",
			Details: validationMessage(err),
		})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Code:    http.StatusConflict,
				Message: "User already exists",
				Details: err.Error(),
			})
			return
		}
		slog.Error("Register failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Register failed",
			Details: "An unexpected error occurred.",
		})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary User login
// @Description Authenticate user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "User login credentials"
// @Success 200 {object} models.LoginResponse "Login successful - returns JWT token and user data"
// @Failure 400 {object} models.ErrorResponse "Bad request - invalid input data"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid credentials"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid input data",
			Details: validationMessage(err),
		})
		return
	}

	loginResponse, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "Unauthorized",
				Details: err.Error(),
			})
			return
		}
		slog.Error("Login failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Login failed",
			Details: "An unexpected error occurred.",
		})
		return
	}

	c.JSON(http.StatusOK, loginResponse)
}

func (h *AuthHandler) RegisterPage(c *gin.Context) {
	h.render.HTML(c, http.StatusOK, "register.html", gin.H{"Title": "Register", "Form": models.RegisterRequest{}})
}

func (h *AuthHandler) RegisterForm(c *gin.Context) {
	var req models.RegisterRequest
	data := gin.H{"Title": "Register"}
	if err := c.ShouldBind(&req); err != nil {
		req.Password = ""
		data["Form"] = req
		h.render.Invalid(c, "register.html", data, err)
		return
	}

	if _, err := h.userService.Register(c.Request.Context(), &req); err != nil {
		req.Password = ""
		data["Form"] = req
		if errors.Is(err, services.ErrUserAlreadyExists) {
			data["Flashes"] = []models.Flash{{Level: models.FlashWarning, Message: "A user with that username or email already exists."}}
			h.render.HTML(c, http.StatusConflict, "register.html", data)
			return
		}
		h.render.ServerError(c, err)
		return
	}

	h.signIn(c, &models.LoginRequest{Email: req.Email, Password: req.Password}, "/polls/")
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	h.render.HTML(c, http.StatusOK, "login.html", gin.H{
		"Title": "Log in",
		"Next":  c.Query("next"),
		"Form":  models.LoginRequest{},
	})
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	next := c.PostForm("next")
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		req.Password = ""
		h.render.Invalid(c, "login.html", gin.H{"Title": "Log in", "Next": next, "Form": req}, err)
		return
	}
	h.signIn(c, &req, utils.SafeNext(next, "/polls/"))
}

// signIn issues the session cookie and redirects to target.
func (h *AuthHandler) signIn(c *gin.Context, req *models.LoginRequest, target string) {
	resp, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.render.HTML(c, http.StatusUnauthorized, "login.html", gin.H{
				"Title":   "Log in",
				"Next":    target,
				"Form":    models.LoginRequest{Email: req.Email},
				"Flashes": []models.Flash{{Level: models.FlashWarning, Message: "Invalid email or password."}},
			})
			return
		}
		h.render.ServerError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, resp.Token, int(h.tokenTTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusSeeOther, target)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}
