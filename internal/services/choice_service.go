package services

import (
	"context"
	"errors"
	"fmt"

	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"
)

var ErrChoiceNotFound = errors.New("choice not found")

type ChoiceService struct {
	choices *postgres.ChoiceRepository
	polls   *PollService
}

func NewChoiceService(choices *postgres.ChoiceRepository, polls *PollService) *ChoiceService {
	return &ChoiceService{choices: choices, polls: polls}
}

// Add appends a choice to a poll owned by userID.
func (s *ChoiceService) Add(ctx context.Context, pollID, userID uint, form *models.ChoiceAddForm) (*models.Choice, error) {
	if _, err := s.polls.GetOwned(ctx, pollID, userID); err != nil {
		return nil, err
	}
	choice := &models.Choice{PollID: pollID, ChoiceText: form.ChoiceText}
	if err := s.choices.Create(ctx, choice); err != nil {
		return nil, err
	}
	return choice, nil
}

// GetOwned loads a choice whose parent poll is owned by userID.
func (s *ChoiceService) GetOwned(ctx context.Context, choiceID, userID uint) (*models.Choice, error) {
	choice, err := s.choices.GetByID(ctx, choiceID)
	if err != nil {
		if errors.Is(err, postgres.ErrChoiceNotFound) {
			return nil, ErrChoiceNotFound
		}
		return nil, fmt.Errorf("failed to load choice %d: %w", choiceID, err)
	}
	if choice.Poll == nil || !choice.Poll.IsOwnedBy(userID) {
		return nil, ErrNotOwner
	}
	return choice, nil
}

func (s *ChoiceService) Update(ctx context.Context, choiceID, userID uint, form *models.ChoiceAddForm) (*models.Choice, error) {
	choice, err := s.GetOwned(ctx, choiceID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.choices.UpdateText(ctx, choiceID, form.ChoiceText); err != nil {
		return nil, fmt.Errorf("failed to update choice %d: %w", choiceID, err)
	}
	choice.ChoiceText = form.ChoiceText
	return choice, nil
}

// Delete removes the choice and returns its parent poll id.
func (s *ChoiceService) Delete(ctx context.Context, choiceID, userID uint) (uint, error) {
	choice, err := s.GetOwned(ctx, choiceID, userID)
	if err != nil {
		return 0, err
	}
	if err := s.choices.Delete(ctx, choiceID); err != nil {
		if errors.Is(err, postgres.ErrChoiceNotFound) {
			return 0, ErrChoiceNotFound
		}
		return 0, err
	}
	s.polls.InvalidateDashboard(ctx)
	return choice.PollID, nil
}
