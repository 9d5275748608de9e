package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Poll is a question owned by a user. Active flips to false once, when the
// owner ends the poll.
type Poll struct {
	gorm.Model
	Text    string    `gorm:"size:255;not null" json:"text"`
	PubDate time.Time `gorm:"not null;index" json:"pub_date"`
	Active  bool      `gorm:"not null;default:true" json:"active"`
	OwnerID uint      `gorm:"not null;index" json:"owner_id"`

	Owner   User     `gorm:"foreignKey:OwnerID" json:"-"`
	Choices []Choice `json:"choices,omitempty"`
	Votes   []Vote   `json:"-"`
}

// IsOwnedBy reports whether userID owns the poll.
func (p *Poll) IsOwnedBy(userID uint) bool {
	return p.OwnerID == userID
}

/** -------------------- DTOs -------------------- */

// PollListItem is a poll row annotated with its vote count.
type PollListItem struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	PubDate   time.Time `json:"pub_date"`
	Active    bool      `json:"active"`
	OwnerID   uint      `json:"owner_id"`
	VoteCount int64     `json:"vote_count"`
}

// PollListQuery carries the list filters. The sort flags are presence-only;
// when several are set the last one in name, date, vote order wins.
type PollListQuery struct {
	SortByName bool
	SortByDate bool
	SortByVote bool
	Search     string
	OwnerID    uint
	Page       int
	PerPage    int
}

// DashboardEntry is one dashboard row.
type DashboardEntry struct {
	PollID       uint      `json:"poll_id"`
	Question     string    `json:"question"`
	UniqueVoters int64     `json:"unique_voters"`
	PubDate      time.Time `json:"pub_date"`
}

// ChoiceResult is the tally of a single choice.
type ChoiceResult struct {
	ChoiceID   uint    `json:"choice_id"`
	Text       string  `json:"text"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollResults is the full tally of a poll.
type PollResults struct {
	Poll    Poll           `json:"poll"`
	Total   int64          `json:"total"`
	Results []ChoiceResult `json:"results"`
}

// NewPollResults fills in totals and percentages (one decimal).
func NewPollResults(poll Poll, tallies []ChoiceResult) *PollResults {
	var total int64
	for _, t := range tallies {
		total += t.Votes
	}
	for i := range tallies {
		if total > 0 {
			tallies[i].Percentage = math.Round(float64(tallies[i].Votes)*1000/float64(total)) / 10
		}
	}
	return &PollResults{Poll: poll, Total: total, Results: tallies}
}

// Forms

// PollAddForm creates a poll with its two initial choices.
type PollAddForm struct {
	Text    string `form:"text" binding:"required,notblank,max=255"`
	Choice1 string `form:"choice1" binding:"required,notblank,max=255"`
	Choice2 string `form:"choice2" binding:"required,notblank,max=255"`
}

// EditPollForm edits the poll text.
type EditPollForm struct {
	Text string `form:"text" binding:"required,notblank,max=255"`
}

// ResultsMessageType tags live result frames.
const ResultsMessageType = "poll.results"

// ResultsMessage is pushed to websocket viewers of a poll.
type ResultsMessage struct {
	Type    string         `json:"type"`
	PollID  uint           `json:"poll_id"`
	Total   int64          `json:"total"`
	Results []ChoiceResult `json:"results"`
}

func NewResultsMessage(r *PollResults) ResultsMessage {
	return ResultsMessage{
		Type:    ResultsMessageType,
		PollID:  r.Poll.ID,
		Total:   r.Total,
		Results: r.Results,
	}
}
