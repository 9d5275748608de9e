package services_test

import (
	"context"
	"testing"

	"polls-service/internal/models"
	"polls-service/internal/services"
	"polls-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoiceServiceOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateTestUser(t, f.db, "owner")
	intruder := testutil.CreateTestUser(t, f.db, "intruder")
	poll := testutil.CreateTestPoll(t, f.db, owner, "Pets?", "Cat", "Dog")

	_, err := f.choices.Add(ctx, poll.ID, intruder.ID, &models.ChoiceAddForm{ChoiceText: "Snake"})
	assert.ErrorIs(t, err, services.ErrNotOwner)

	choice, err := f.choices.Add(ctx, poll.ID, owner.ID, &models.ChoiceAddForm{ChoiceText: "Fish"})
	require.NoError(t, err)

	_, err = f.choices.Update(ctx, choice.ID, intruder.ID, &models.ChoiceAddForm{ChoiceText: "Shark"})
	assert.ErrorIs(t, err, services.ErrNotOwner)

	updated, err := f.choices.Update(ctx, choice.ID, owner.ID, &models.ChoiceAddForm{ChoiceText: "Goldfish"})
	require.NoError(t, err)
	assert.Equal(t, "Goldfish", updated.ChoiceText)

	_, err = f.choices.Delete(ctx, choice.ID, intruder.ID)
	assert.ErrorIs(t, err, services.ErrNotOwner)

	pollID, err := f.choices.Delete(ctx, choice.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, poll.ID, pollID)

	_, err = f.choices.GetOwned(ctx, choice.ID, owner.ID)
	assert.ErrorIs(t, err, services.ErrChoiceNotFound)

	_, err = f.choices.Add(ctx, 999, owner.ID, &models.ChoiceAddForm{ChoiceText: "Ghost"})
	assert.ErrorIs(t, err, services.ErrPollNotFound)
}
