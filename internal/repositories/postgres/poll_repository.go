package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"polls-service/internal/models"

	"gorm.io/gorm"
)

var ErrPollNotFound = errors.New("poll not found")

type PollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) *PollRepository {
	return &PollRepository{db: db}
}

// CreateWithChoices inserts the poll and then its choices in one transaction.
func (r *PollRepository) CreateWithChoices(ctx context.Context, poll *models.Poll, choiceTexts ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(poll).Error; err != nil {
			return fmt.Errorf("failed to create poll: %w", err)
		}
		poll.Choices = make([]models.Choice, 0, len(choiceTexts))
		for _, text := range choiceTexts {
			choice := models.Choice{PollID: poll.ID, ChoiceText: text}
			if err := tx.Create(&choice).Error; err != nil {
				return fmt.Errorf("failed to create choice: %w", err)
			}
			poll.Choices = append(poll.Choices, choice)
		}
		return nil
	})
}

// GetByID loads a poll with its choices ordered by id.
func (r *PollRepository) GetByID(ctx context.Context, id uint) (*models.Poll, error) {
	var poll models.Poll
	err := r.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.id ASC")
		}).
		First(&poll, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return &poll, nil
}

func (r *PollRepository) UpdateText(ctx context.Context, id uint, text string) error {
	return r.db.WithContext(ctx).Model(&models.Poll{}).Where("id = ?", id).Update("text", text).Error
}

// Deactivate sets active to false. Nothing sets it back.
func (r *PollRepository) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Poll{}).Where("id = ?", id).Update("active", false).Error
}

// Delete removes the poll together with its votes and choices.
func (r *PollRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("poll_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}
		if err := tx.Unscoped().Where("poll_id = ?", id).Delete(&models.Choice{}).Error; err != nil {
			return fmt.Errorf("failed to delete choices: %w", err)
		}
		res := tx.Unscoped().Delete(&models.Poll{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete poll: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrPollNotFound
		}
		return nil
	})
}

// List returns one page of polls with vote counts. Sort flags are applied in
// name, date, vote order and each replaces the previous ordering.
func (r *PollRepository) List(ctx context.Context, q models.PollListQuery) (models.Page[models.PollListItem], error) {
	page := models.Page[models.PollListItem]{PerPage: q.PerPage}

	base := r.db.WithContext(ctx).Model(&models.Poll{})
	if q.Search != "" {
		base = base.Where(`LOWER(polls.text) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(q.Search))+"%")
	}
	if q.OwnerID != 0 {
		base = base.Where("polls.owner_id = ?", q.OwnerID)
	}

	if err := base.Session(&gorm.Session{}).Count(&page.TotalCount).Error; err != nil {
		return page, fmt.Errorf("failed to count polls: %w", err)
	}
	page.Number, page.NumPages = models.ClampPage(q.Page, q.PerPage, page.TotalCount)

	order := "polls.id ASC"
	if q.SortByName {
		order = "polls.text ASC, polls.id ASC"
	}
	if q.SortByDate {
		order = "polls.pub_date ASC, polls.id ASC"
	}
	if q.SortByVote {
		order = "vote_count ASC, polls.id ASC"
	}

	err := base.Session(&gorm.Session{}).
		Select("polls.id, polls.text, polls.pub_date, polls.active, polls.owner_id, COUNT(votes.id) AS vote_count").
		Joins("LEFT JOIN votes ON votes.poll_id = polls.id AND votes.deleted_at IS NULL").
		Group("polls.id, polls.text, polls.pub_date, polls.active, polls.owner_id").
		Order(order).
		Limit(q.PerPage).
		Offset((page.Number - 1) * q.PerPage).
		Scan(&page.Items).Error
	if err != nil {
		return page, fmt.Errorf("failed to list polls: %w", err)
	}
	if page.Items == nil {
		page.Items = []models.PollListItem{}
	}
	return page, nil
}

// Dashboard returns every poll with its count of distinct voters.
func (r *PollRepository) Dashboard(ctx context.Context) ([]models.DashboardEntry, error) {
	var entries []models.DashboardEntry
	err := r.db.WithContext(ctx).Model(&models.Poll{}).
		Select("polls.id AS poll_id, polls.text AS question, polls.pub_date, COUNT(DISTINCT votes.user_id) AS unique_voters").
		Joins("LEFT JOIN votes ON votes.poll_id = polls.id AND votes.deleted_at IS NULL").
		Group("polls.id, polls.text, polls.pub_date").
		Order("polls.id ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return entries, nil
}

// Tally counts votes per choice for a poll, ordered by choice id.
func (r *PollRepository) Tally(ctx context.Context, pollID uint) ([]models.ChoiceResult, error) {
	var tallies []models.ChoiceResult
	err := r.db.WithContext(ctx).Model(&models.Choice{}).
		Select("choices.id AS choice_id, choices.choice_text AS text, COUNT(votes.id) AS votes").
		Joins("LEFT JOIN votes ON votes.choice_id = choices.id AND votes.deleted_at IS NULL").
		Where("choices.poll_id = ?", pollID).
		Group("choices.id, choices.choice_text").
		Order("choices.id ASC").
		Scan(&tallies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to tally poll %d: %w", pollID, err)
	}
	return tallies, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
