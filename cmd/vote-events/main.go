package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"polls-service/internal/adapters/kafka"
	"polls-service/internal/config"
)

// vote-events tails the vote topic and logs every VoteCast event.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if !cfg.Kafka.Enabled() {
		log.Fatal("KAFKA_BROKERS is not set")
	}

	reader := kafka.NewVoteReader(cfg.Kafka.Brokers, cfg.Kafka.VoteTopic, cfg.Kafka.GroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Consuming vote events", "topic", cfg.Kafka.VoteTopic, "group", cfg.Kafka.GroupID)

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Info("Vote event consumer stopped")
				return
			}
			slog.Error("Failed to read vote event", "error", err)
			os.Exit(1)
		}

		vote, err := kafka.DecodeVote(m)
		if err != nil {
			slog.Warn("Skipping malformed vote event", "error", err)
			continue
		}

		slog.Info("VoteCast",
			"event_id", vote.EventID,
			"poll_id", vote.PollID,
			"choice_id", vote.ChoiceID,
			"user_id", vote.UserID,
			"cast_at", vote.CastAt,
			"partition", m.Partition,
			"offset", m.Offset,
		)
	}
}
