package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"polls-service/internal/database"
	"polls-service/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEmailTaken    = errors.New("email already exists")
	ErrUsernameTaken = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user and grants perms in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, perms ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email existence: %w", err)
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check username existence: %w", err)
		}
		if count > 0 {
			return ErrUsernameTaken
		}

		if err := tx.Create(user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		for _, codename := range perms {
			if err := grant(tx, user.ID, codename); err != nil {
				return err
			}
		}

		slog.Debug("user created", "user_id", user.ID, "email", user.Email)
		return nil
	})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GrantPermission is idempotent.
func (r *UserRepository) GrantPermission(ctx context.Context, userID uint, codename string) error {
	return grant(r.db.WithContext(ctx), userID, codename)
}

func (r *UserRepository) HasPermission(ctx context.Context, userID uint, codename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserPermission{}).
		Where("user_id = ? AND codename = ?", userID, codename).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return count > 0, nil
}

func grant(tx *gorm.DB, userID uint, codename string) error {
	perm := models.UserPermission{UserID: userID, Codename: codename}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&perm).Error; err != nil {
		return fmt.Errorf("failed to grant %s: %w", codename, err)
	}
	return nil
}
