package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"

	"github.com/google/uuid"
)

var (
	ErrPollInactive  = errors.New("poll has ended")
	ErrAlreadyVoted  = errors.New("already voted")
	ErrNoChoice      = errors.New("no choice selected")
	ErrInvalidChoice = errors.New("invalid choice")
)

type VoteService struct {
	polls     *PollService
	choices   *postgres.ChoiceRepository
	votes     *postgres.VoteRepository
	redis     *RedisService
	publisher VotePublisher
}

func NewVoteService(polls *PollService, choices *postgres.ChoiceRepository, votes *postgres.VoteRepository, redis *RedisService, publisher VotePublisher) *VoteService {
	if publisher == nil {
		publisher = NoopVotePublisher{}
	}
	return &VoteService{
		polls:     polls,
		choices:   choices,
		votes:     votes,
		redis:     redis,
		publisher: publisher,
	}
}

// Cast records userID's ballot for rawChoice on pollID. The checks run in a
// fixed order: ended poll, existing vote, missing choice, foreign choice.
func (s *VoteService) Cast(ctx context.Context, userID, pollID uint, rawChoice string) (*models.PollResults, error) {
	poll, err := s.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.Active {
		return nil, ErrPollInactive
	}

	voted, err := s.votes.HasVoted(ctx, userID, pollID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}

	rawChoice = strings.TrimSpace(rawChoice)
	if rawChoice == "" {
		return nil, ErrNoChoice
	}
	choiceID, err := strconv.ParseUint(rawChoice, 10, 64)
	if err != nil {
		return nil, ErrInvalidChoice
	}
	if _, err := s.choices.GetForPoll(ctx, pollID, uint(choiceID)); err != nil {
		if errors.Is(err, postgres.ErrChoiceNotFound) {
			return nil, ErrInvalidChoice
		}
		return nil, err
	}

	vote := &models.Vote{UserID: userID, PollID: pollID, ChoiceID: uint(choiceID)}
	if err := s.votes.Cast(ctx, vote); err != nil {
		if errors.Is(err, postgres.ErrDuplicateVote) {
			return nil, ErrAlreadyVoted
		}
		return nil, err
	}

	slog.Info("Vote cast", "poll_id", pollID, "choice_id", choiceID, "user_id", userID)

	results, err := s.polls.Results(ctx, pollID)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, vote, results)
	return results, nil
}

// announce fans the new tallies out. Failures are logged and never undo the vote.
func (s *VoteService) announce(ctx context.Context, vote *models.Vote, results *models.PollResults) {
	s.polls.InvalidateDashboard(ctx)

	if err := s.redis.PublishPollResults(ctx, vote.PollID, models.NewResultsMessage(results)); err != nil {
		slog.Warn("Failed to publish live results", "poll_id", vote.PollID, "error", err)
	}

	event := models.VoteMessage{
		EventID:  uuid.NewString(),
		UserID:   vote.UserID,
		PollID:   vote.PollID,
		ChoiceID: vote.ChoiceID,
		CastAt:   time.Now().UTC(),
	}
	if err := s.publisher.PublishVote(ctx, event); err != nil {
		slog.Error("Failed to publish vote event", "event_id", event.EventID, "poll_id", vote.PollID, "error", err)
	}
}
