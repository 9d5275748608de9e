package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"polls-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenCookie = "access_token"
	LoginPath         = "/accounts/login"

	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextEmail    = "email"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a valid token says about its bearer.
type Identity struct {
	UserID   uint
	Username string
	Email    string
}

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// ParseToken validates an HS256 token and extracts the identity claims.
func (am *AuthMiddleware) ParseToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(am.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, ErrInvalidToken
	}

	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	return &Identity{UserID: uint(userID), Username: username, Email: email}, nil
}

// Authenticate reads a token from the Authorization header or the access
// cookie and, when valid, stores the identity on the context. It never aborts.
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString, _ = c.Cookie(AccessTokenCookie)
		}
		if tokenString != "" {
			if id, err := am.ParseToken(tokenString); err == nil {
				c.Set(ContextUserID, id.UserID)
				c.Set(ContextUsername, id.Username)
				c.Set(ContextEmail, id.Email)
			}
		}
		c.Next()
	}
}

// RequireAuth answers 401 JSON when no identity is present.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "Unauthorized",
				Details: "a valid bearer token or session cookie is required",
			})
			return
		}
		c.Next()
	}
}

// RequireLogin redirects anonymous page requests to the login form.
func (am *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); !ok {
			target := LoginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, if any.
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id > 0
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
