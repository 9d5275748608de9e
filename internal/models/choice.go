package models

import "gorm.io/gorm"

// Choice is one selectable answer of a poll.
type Choice struct {
	gorm.Model
	PollID     uint   `gorm:"not null;index" json:"poll_id"`
	ChoiceText string `gorm:"size:255;not null" json:"choice_text"`

	Poll *Poll `json:"-"`
}

// ChoiceAddForm adds or edits a choice.
type ChoiceAddForm struct {
	ChoiceText string `form:"choice_text" binding:"required,notblank,max=255"`
}
