package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		name         string
		requested    int
		perPage      int
		total        int64
		wantNumber   int
		wantNumPages int
	}{
		{"empty listing", 1, 6, 0, 1, 1},
		{"first page", 1, 6, 13, 1, 3},
		{"below range", -4, 6, 13, 1, 3},
		{"past the end", 9, 6, 13, 3, 3},
		{"exact multiple", 2, 7, 14, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, numPages := ClampPage(tt.requested, tt.perPage, tt.total)
			assert.Equal(t, tt.wantNumber, number)
			assert.Equal(t, tt.wantNumPages, numPages)
		})
	}
}

func TestNewPollResults(t *testing.T) {
	res := NewPollResults(Poll{Text: "Best editor?"}, []ChoiceResult{
		{ChoiceID: 1, Text: "vim", Votes: 2},
		{ChoiceID: 2, Text: "emacs", Votes: 1},
		{ChoiceID: 3, Text: "nano", Votes: 0},
	})

	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, 66.7, res.Results[0].Percentage)
	assert.Equal(t, 33.3, res.Results[1].Percentage)
	assert.Equal(t, 0.0, res.Results[2].Percentage)
}

func TestNewPollResultsWithoutVotes(t *testing.T) {
	res := NewPollResults(Poll{}, []ChoiceResult{{ChoiceID: 1, Text: "a"}})
	assert.Equal(t, int64(0), res.Total)
	assert.Equal(t, 0.0, res.Results[0].Percentage)
}

func TestPollIsOwnedBy(t *testing.T) {
	p := Poll{OwnerID: 7}
	assert.True(t, p.IsOwnedBy(7))
	assert.False(t, p.IsOwnedBy(8))
}
