package postgres

import (
	"context"
	"errors"

	"polls-service/internal/database"
	"polls-service/internal/models"

	"gorm.io/gorm"
)

var ErrDuplicateVote = errors.New("user has already voted on this poll")

type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) HasVoted(ctx context.Context, userID, pollID uint) (bool, error) {
	return hasVoted(r.db.WithContext(ctx), userID, pollID)
}

// Cast records the vote in a transaction. The in-transaction check gives the
// common case a clean answer; the unique index on (user_id, poll_id) settles
// concurrent casts.
func (r *VoteRepository) Cast(ctx context.Context, vote *models.Vote) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voted, err := hasVoted(tx, vote.UserID, vote.PollID)
		if err != nil {
			return err
		}
		if voted {
			return ErrDuplicateVote
		}
		return tx.Create(vote).Error
	})
	if err != nil && database.IsUniqueViolation(err) {
		return ErrDuplicateVote
	}
	return err
}

func (r *VoteRepository) CountForPoll(ctx context.Context, pollID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vote{}).Where("poll_id = ?", pollID).Count(&count).Error
	return count, err
}

func hasVoted(db *gorm.DB, userID, pollID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Vote{}).Where("user_id = ? AND poll_id = ?", userID, pollID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
