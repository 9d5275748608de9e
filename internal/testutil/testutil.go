// Package testutil provides fixtures shared by the package tests: an
// in-memory database, a miniredis-backed RedisService and request helpers.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"polls-service/internal/api/middleware"
	"polls-service/internal/config"
	"polls-service/internal/database"
	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"
	"polls-service/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	TestJWTSecret = "test-secret"
	TestPassword  = "password123"
)

// TestConfig returns a configuration suitable for tests. External services
// stay disabled.
func TestConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Database: config.DatabaseConfig{Type: "sqlite", URI: ":memory:"},
		JWT:      config.JWTConfig{Secret: TestJWTSecret, ExpirationTime: time.Hour},
		Polls:    config.PollsConfig{GrantAddOnRegister: true, DashboardCacheTTL: time.Minute},
		Chat:     config.ChatConfig{Endpoint: config.DefaultChatEndpoint, Timeout: 5 * time.Second},
	}
}

// SetupTestDB opens a fresh in-memory sqlite database with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewConnection(config.DatabaseConfig{Type: "sqlite", URI: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupTestRedis starts a miniredis server for the duration of the test.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, *services.RedisService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, services.NewRedisService(database.NewRedisClientFrom(client))
}

// CreateTestUser inserts a user whose password is TestPassword.
func CreateTestUser(t *testing.T, db *gorm.DB, username string, perms ...string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	if err := postgres.NewUserRepository(db).Create(context.Background(), user, perms...); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestPoll inserts an active poll owned by owner with the given choices.
func CreateTestPoll(t *testing.T, db *gorm.DB, owner *models.User, text string, choices ...string) *models.Poll {
	t.Helper()

	poll := &models.Poll{
		Text:    text,
		PubDate: time.Now(),
		Active:  true,
		OwnerID: owner.ID,
	}
	if err := postgres.NewPollRepository(db).CreateWithChoices(context.Background(), poll, choices...); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return poll
}

// EndTestPoll marks the poll inactive.
func EndTestPoll(t *testing.T, db *gorm.DB, poll *models.Poll) {
	t.Helper()

	if err := db.Model(&models.Poll{}).Where("id = ?", poll.ID).Update("active", false).Error; err != nil {
		t.Fatalf("Failed to end test poll: %v", err)
	}
	poll.Active = false
}

// CastTestVote records a vote directly in the database.
func CastTestVote(t *testing.T, db *gorm.DB, user *models.User, poll *models.Poll, choice models.Choice) {
	t.Helper()

	vote := &models.Vote{UserID: user.ID, PollID: poll.ID, ChoiceID: choice.ID}
	if err := postgres.NewVoteRepository(db).Cast(context.Background(), vote); err != nil {
		t.Fatalf("Failed to cast test vote: %v", err)
	}
}

// CountVotes returns the number of votes stored for pollID.
func CountVotes(t *testing.T, db *gorm.DB, pollID uint) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&models.Vote{}).Where("poll_id = ?", pollID).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// AuthCookie returns a session cookie for user signed with TestJWTSecret.
func AuthCookie(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()

	token, err := services.GenerateToken(TestJWTSecret, time.Hour, user)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return &http.Cookie{Name: middleware.AccessTokenCookie, Value: token}
}

// MakeFormRequest builds a form-encoded request. A nil form sends no body.
func MakeFormRequest(method, path string, form url.Values, cookie *http.Cookie) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

// PollPath formats a poll URL such as PollPath(3, "edit") == "/polls/3/edit".
func PollPath(pollID uint, parts ...string) string {
	p := fmt.Sprintf("/polls/%d", pollID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}
