package postgres

import (
	"context"
	"errors"
	"fmt"

	"polls-service/internal/models"

	"gorm.io/gorm"
)

var ErrChoiceNotFound = errors.New("choice not found")

type ChoiceRepository struct {
	db *gorm.DB
}

func NewChoiceRepository(db *gorm.DB) *ChoiceRepository {
	return &ChoiceRepository{db: db}
}

func (r *ChoiceRepository) Create(ctx context.Context, choice *models.Choice) error {
	if err := r.db.WithContext(ctx).Create(choice).Error; err != nil {
		return fmt.Errorf("failed to create choice: %w", err)
	}
	return nil
}

// GetByID loads the choice together with its parent poll.
func (r *ChoiceRepository) GetByID(ctx context.Context, id uint) (*models.Choice, error) {
	var choice models.Choice
	if err := r.db.WithContext(ctx).Preload("Poll").First(&choice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChoiceNotFound
		}
		return nil, err
	}
	return &choice, nil
}

// GetForPoll returns the choice only when it belongs to pollID.
func (r *ChoiceRepository) GetForPoll(ctx context.Context, pollID, choiceID uint) (*models.Choice, error) {
	var choice models.Choice
	err := r.db.WithContext(ctx).Where("id = ? AND poll_id = ?", choiceID, pollID).First(&choice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChoiceNotFound
		}
		return nil, err
	}
	return &choice, nil
}

func (r *ChoiceRepository) UpdateText(ctx context.Context, id uint, text string) error {
	return r.db.WithContext(ctx).Model(&models.Choice{}).Where("id = ?", id).Update("choice_text", text).Error
}

// Delete removes the choice and the votes cast for it.
func (r *ChoiceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("choice_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}
		res := tx.Unscoped().Delete(&models.Choice{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete choice: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrChoiceNotFound
		}
		return nil
	})
}
