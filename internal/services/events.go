package services

import (
	"context"
	"log/slog"

	"polls-service/internal/models"
)

// VotePublisher emits VoteCast events.
type VotePublisher interface {
	PublishVote(ctx context.Context, msg models.VoteMessage) error
	Close() error
}

// ResultsArchiver stores a snapshot of final results and returns its location.
type ResultsArchiver interface {
	ArchiveResults(ctx context.Context, results *models.PollResults) (string, error)
}

// NoopVotePublisher is used when no brokers are configured.
type NoopVotePublisher struct{}

func (NoopVotePublisher) PublishVote(_ context.Context, msg models.VoteMessage) error {
	slog.Debug("Vote event dropped, no brokers configured", "event_id", msg.EventID)
	return nil
}

func (NoopVotePublisher) Close() error { return nil }

// NoopArchiver is used when object storage is not configured.
type NoopArchiver struct{}

func (NoopArchiver) ArchiveResults(context.Context, *models.PollResults) (string, error) {
	return "", nil
}
