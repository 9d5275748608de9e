package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"polls-service/internal/config"
	"polls-service/internal/database"
	"polls-service/internal/models"
	"polls-service/internal/repositories/postgres"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting database seeding...")

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	slog.Info("Database connection established")

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	pollRepo := postgres.NewPollRepository(db)
	voteRepo := postgres.NewVoteRepository(db)

	// Seed initial users
	slog.Info("Creating initial users...")

	seedUsers := []struct {
		username string
		email    string
		password string
	}{
		{"admin", "admin@polls.local", "123456"},
		{"alice", "alice@polls.local", "123456"},
		{"bob", "bob@polls.local", "123456"},
		{"charlie", "charlie@polls.local", "123456"},
	}

	users := make([]*models.User, 0, len(seedUsers))
	for _, userData := range seedUsers {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(userData.password), bcrypt.DefaultCost)
		user := &models.User{
			Username: userData.username,
			Email:    userData.email,
			Password: string(hashedPassword),
		}

		if err := userRepo.Create(ctx, user, models.PermAddPoll); err != nil {
			slog.Warn("User might already exist", "username", userData.username, "error", err)
			existing, findErr := userRepo.FindByEmail(ctx, userData.email)
			if findErr != nil {
				log.Fatal("Failed to load existing user:", findErr)
			}
			user = existing
		} else {
			slog.Info("Created user", "username", userData.username, "id", user.ID)
		}
		users = append(users, user)
	}

	// Create sample polls
	slog.Info("Creating sample polls...")

	samplePolls := []struct {
		text    string
		choices []string
	}{
		{"Which language do you reach for first?", []string{"Go", "Python", "Rust"}},
		{"Tabs or spaces?", []string{"Tabs", "Spaces"}},
		{"Best time for standup?", []string{"9:00", "10:00", "After lunch"}},
		{"Favourite database?", []string{"PostgreSQL", "SQLite", "Redis"}},
	}

	for i, p := range samplePolls {
		owner := users[i%len(users)]
		poll := &models.Poll{
			Text:    p.text,
			PubDate: time.Now().Add(-time.Duration(len(samplePolls)-i) * 24 * time.Hour),
			Active:  true,
			OwnerID: owner.ID,
		}
		if err := pollRepo.CreateWithChoices(ctx, poll, p.choices...); err != nil {
			slog.Warn("Failed to create poll", "text", p.text, "error", err)
			continue
		}
		slog.Info("Created poll", "id", poll.ID, "owner", owner.Username)

		// A few ballots so the results pages are not empty.
		for j, voter := range users {
			choice := poll.Choices[(i+j)%len(poll.Choices)]
			vote := &models.Vote{UserID: voter.ID, PollID: poll.ID, ChoiceID: choice.ID}
			if err := voteRepo.Cast(ctx, vote); err != nil {
				slog.Warn("Failed to cast seed vote", "poll_id", poll.ID, "user_id", voter.ID, "error", err)
			}
		}
	}

	slog.Info("Database seeding completed successfully!")
	slog.Info("Login with any seeded email and password 123456")
}
