package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Custom errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")
)

type UserService struct {
	repo               *postgres.UserRepository
	jwtSecret          string
	tokenTTL           time.Duration
	grantAddOnRegister bool
}

func NewUserService(repo *postgres.UserRepository, jwtSecret string, tokenTTL time.Duration, grantAddOnRegister bool) *UserService {
	return &UserService{
		repo:               repo,
		jwtSecret:          jwtSecret,
		tokenTTL:           tokenTTL,
		grantAddOnRegister: grantAddOnRegister,
	}
}

// GenerateToken signs an HS256 token carrying the user's id, email and username.
func GenerateToken(secret string, ttl time.Duration, user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserResponse, error) {
	if req.Email == "" || req.Password == "" || req.Username == "" {
		return nil, ErrInvalidRequest
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	}

	var perms []string
	if s.grantAddOnRegister {
		perms = append(perms, models.PermAddPoll)
	}

	if err := s.repo.Create(ctx, &user, perms...); err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) || errors.Is(err, postgres.ErrUsernameTaken) {
			slog.Info("Registration rejected", "email", req.Email, "username", req.Username, "reason", err)
			return nil, fmt.Errorf("%w: %v", ErrUserAlreadyExists, err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("User registered", "user_id", user.ID, "email", user.Email)

	resp := models.NewUserResponse(&user)
	return &resp, nil
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtSecret, s.tokenTTL, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Token: token,
		User:  models.NewUserResponse(user),
	}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	resp := models.NewUserResponse(user)
	return &resp, nil
}

func (s *UserService) HasPermission(ctx context.Context, userID uint, codename string) (bool, error) {
	return s.repo.HasPermission(ctx, userID, codename)
}

func (s *UserService) GrantPermission(ctx context.Context, userID uint, codename string) error {
	return s.repo.GrantPermission(ctx, userID, codename)
}
