package services_test

import (
	"context"
	"sync"
	"testing"

	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"
	"polls-service/internal/services"
	"polls-service/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.VoteMessage
	err    error
}

func (p *recordingPublisher) PublishVote(_ context.Context, msg models.VoteMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []models.VoteMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.VoteMessage(nil), p.events...)
}

type recordingArchiver struct {
	archived []*models.PollResults
	err      error
}

func (a *recordingArchiver) ArchiveResults(_ context.Context, results *models.PollResults) (string, error) {
	a.archived = append(a.archived, results)
	if a.err != nil {
		return "", a.err
	}
	return "s3://archive/results.json", nil
}

type fixture struct {
	db        *gorm.DB
	mr        *miniredis.Miniredis
	redis     *services.RedisService
	polls     *services.PollService
	choices   *services.ChoiceService
	votes     *services.VoteService
	publisher *recordingPublisher
	archiver  *recordingArchiver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mr, redisService := testutil.SetupTestRedis(t)
	cfg := testutil.TestConfig()

	f := &fixture{
		db:        db,
		mr:        mr,
		redis:     redisService,
		publisher: &recordingPublisher{},
		archiver:  &recordingArchiver{},
	}

	pollRepo := postgres.NewPollRepository(db)
	choiceRepo := postgres.NewChoiceRepository(db)
	f.polls = services.NewPollService(pollRepo, postgres.NewUserRepository(db), redisService, f.archiver, cfg.Polls.DashboardCacheTTL)
	f.choices = services.NewChoiceService(choiceRepo, f.polls)
	f.votes = services.NewVoteService(f.polls, choiceRepo, postgres.NewVoteRepository(db), redisService, f.publisher)
	return f
}
