package models

import (
	"time"

	"gorm.io/gorm"
)

// Vote represents a user's vote for a choice. The composite unique index
// keeps one vote per user per poll.
type Vote struct {
	gorm.Model
	UserID   uint `gorm:"column:user_id;not null;uniqueIndex:idx_votes_user_poll" json:"user_id"`
	PollID   uint `gorm:"column:poll_id;not null;uniqueIndex:idx_votes_user_poll;index" json:"poll_id"`
	ChoiceID uint `gorm:"column:choice_id;not null;index" json:"choice_id"`
}

// VoteMessage is the event published after a vote is recorded.
type VoteMessage struct {
	EventID  string    `json:"event_id"`
	UserID   uint      `json:"user_id"`
	PollID   uint      `json:"poll_id"`
	ChoiceID uint      `json:"choice_id"`
	CastAt   time.Time `json:"cast_at"`
}
