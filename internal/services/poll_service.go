package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"
)

const (
	PollsPerPage   = 6
	MyPollsPerPage = 7
)

var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrNotOwner         = errors.New("not the poll owner")
	ErrPermissionDenied = errors.New("permission denied")
)

type PollService struct {
	polls    *postgres.PollRepository
	users    *postgres.UserRepository
	redis    *RedisService
	archiver ResultsArchiver
	cacheTTL time.Duration
}

func NewPollService(polls *postgres.PollRepository, users *postgres.UserRepository, redis *RedisService, archiver ResultsArchiver, cacheTTL time.Duration) *PollService {
	if archiver == nil {
		archiver = NoopArchiver{}
	}
	return &PollService{
		polls:    polls,
		users:    users,
		redis:    redis,
		archiver: archiver,
		cacheTTL: cacheTTL,
	}
}

func (s *PollService) List(ctx context.Context, q models.PollListQuery) (models.Page[models.PollListItem], error) {
	if q.PerPage <= 0 {
		q.PerPage = PollsPerPage
	}
	return s.polls.List(ctx, q)
}

func (s *PollService) ListOwned(ctx context.Context, ownerID uint, page int) (models.Page[models.PollListItem], error) {
	return s.polls.List(ctx, models.PollListQuery{
		OwnerID: ownerID,
		Page:    page,
		PerPage: MyPollsPerPage,
	})
}

// Dashboard serves from the cache when possible. Cache failures fall through
// to the database.
func (s *PollService) Dashboard(ctx context.Context) ([]models.DashboardEntry, error) {
	var entries []models.DashboardEntry
	found, err := s.redis.Get(ctx, DashboardCacheKey, &entries)
	if err != nil {
		slog.Warn("Dashboard cache read failed", "error", err)
	}
	if found && err == nil {
		return entries, nil
	}

	entries, err = s.polls.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, DashboardCacheKey, entries, s.cacheTTL); err != nil {
		slog.Warn("Dashboard cache write failed", "error", err)
	}
	return entries, nil
}

func (s *PollService) InvalidateDashboard(ctx context.Context) {
	if err := s.redis.Delete(ctx, DashboardCacheKey); err != nil {
		slog.Warn("Dashboard cache invalidation failed", "error", err)
	}
}

// CanAdd reports whether userID holds the polls.add_poll grant.
func (s *PollService) CanAdd(ctx context.Context, userID uint) (bool, error) {
	return s.users.HasPermission(ctx, userID, models.PermAddPoll)
}

// Create stores the poll and its two initial choices.
func (s *PollService) Create(ctx context.Context, ownerID uint, form *models.PollAddForm) (*models.Poll, error) {
	ok, err := s.CanAdd(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	poll := &models.Poll{
		Text:    form.Text,
		PubDate: time.Now(),
		Active:  true,
		OwnerID: ownerID,
	}
	if err := s.polls.CreateWithChoices(ctx, poll, form.Choice1, form.Choice2); err != nil {
		return nil, err
	}

	slog.Info("Poll created", "poll_id", poll.ID, "owner_id", ownerID)
	s.InvalidateDashboard(ctx)
	return poll, nil
}

func (s *PollService) Get(ctx context.Context, id uint) (*models.Poll, error) {
	poll, err := s.polls.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrPollNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to load poll %d: %w", id, err)
	}
	return poll, nil
}

// GetOwned loads the poll and fails with ErrNotOwner unless userID owns it.
func (s *PollService) GetOwned(ctx context.Context, id, userID uint) (*models.Poll, error) {
	poll, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !poll.IsOwnedBy(userID) {
		return nil, ErrNotOwner
	}
	return poll, nil
}

func (s *PollService) Update(ctx context.Context, id, userID uint, form *models.EditPollForm) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.polls.UpdateText(ctx, id, form.Text); err != nil {
		return fmt.Errorf("failed to update poll %d: %w", id, err)
	}
	s.InvalidateDashboard(ctx)
	return nil
}

func (s *PollService) Delete(ctx context.Context, id, userID uint) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.polls.Delete(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrPollNotFound) {
			return ErrPollNotFound
		}
		return err
	}
	slog.Info("Poll deleted", "poll_id", id, "owner_id", userID)
	s.InvalidateDashboard(ctx)
	return nil
}

// End deactivates the poll and returns its final results. The snapshot is
// archived when storage is configured; archive errors are only logged.
func (s *PollService) End(ctx context.Context, id, userID uint) (*models.PollResults, error) {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return nil, err
	}
	if err := s.polls.Deactivate(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to end poll %d: %w", id, err)
	}
	s.InvalidateDashboard(ctx)

	results, err := s.Results(ctx, id)
	if err != nil {
		return nil, err
	}

	if url, err := s.archiver.ArchiveResults(ctx, results); err != nil {
		slog.Error("Failed to archive poll results", "poll_id", id, "error", err)
	} else if url != "" {
		slog.Info("Poll results archived", "poll_id", id, "url", url)
	}

	slog.Info("Poll ended", "poll_id", id, "total_votes", results.Total)
	return results, nil
}

func (s *PollService) Results(ctx context.Context, id uint) (*models.PollResults, error) {
	poll, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tallies, err := s.polls.Tally(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewPollResults(*poll, tallies), nil
}
