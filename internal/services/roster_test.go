package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/roster"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

func mousefolk(name string) roster.Character {
	return roster.Character{
		Name:    name,
		Species: "Mousefolk",
		Stats:   map[string]int{"Brave": 2, "Clever": 3},
	}
}

func createBloomburrow(t *testing.T, svc *CampaignService) string {
	t.Helper()
	res, err := svc.Create(context.Background(), campaign.Example(), "bloomburrow")
	require.NoError(t, err)
	return res.CampaignID
}

func TestCampaignService_Roster(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	id := createBloomburrow(t, svc)

	chars, err := svc.Characters(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chars)

	pip, err := svc.AddCharacter(ctx, id, mousefolk("Pip"))
	require.NoError(t, err)
	assert.Equal(t, "char_001", pip.ID)
	assert.Equal(t, roster.DefaultMaxHearts, pip.Hearts)
	assert.NotNil(t, store.Raw(id, storage.RosterFile))

	hearts := 2
	updated, err := svc.UpdateCharacter(ctx, id, pip.ID, roster.Update{Hearts: &hearts, Gear: []string{"thimble helm"}})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Hearts)

	got, err := svc.Character(ctx, id, pip.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"thimble helm"}, got.Gear)

	require.NoError(t, svc.RemoveCharacter(ctx, id, pip.ID))
	_, err = svc.Character(ctx, id, pip.ID)
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.ErrorIs(t, svc.RemoveCharacter(ctx, id, pip.ID), engine.ErrNotFound)
}

func TestCampaignService_RosterValidatesAgainstCampaignSystem(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	bloom := createBloomburrow(t, svc)
	plain := createExample(t, svc)

	_, err := svc.AddCharacter(ctx, plain, mousefolk("Pip"))
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
	assert.ErrorIs(t, err, roster.ErrInvalidCharacter)

	ch, err := svc.AddCharacter(ctx, bloom, mousefolk("Pip"))
	require.NoError(t, err)

	tooBrave := 4
	_, err = svc.UpdateCharacter(ctx, bloom, ch.ID, roster.Update{Stats: map[string]int{"Brave": tooBrave}})
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)

	got, err := svc.Character(ctx, bloom, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stats["Brave"], "rejected update is not saved")

	_, err = svc.AddCharacter(ctx, "nope", mousefolk("Pip"))
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestCampaignService_RosterSaveFailure(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	id := createBloomburrow(t, svc)

	store.SetSaveError(errors.New("disk full"))
	_, err := svc.AddCharacter(ctx, id, mousefolk("Pip"))
	require.Error(t, err)
	store.SetSaveError(nil)

	chars, err := svc.Characters(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chars)
}

func TestCampaignService_RollDice(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	id := createBloomburrow(t, svc)
	pip, err := svc.AddCharacter(ctx, id, mousefolk("Pip"))
	require.NoError(t, err)

	success := system.OutcomeSuccess
	partial := system.OutcomePartial
	failure := system.OutcomeFailure

	tests := []struct {
		name      string
		roll      DiceRoll
		total     int
		statBonus int
		outcome   *system.Outcome
	}{
		{name: "bare roll", roll: DiceRoll{Die: "d20", Result: 9}, total: 9, outcome: &failure},
		{name: "flat modifier", roll: DiceRoll{Die: "d20", Result: 9, Modifier: 1}, total: 10, outcome: &partial},
		{name: "stat from roster", roll: DiceRoll{Die: "D20", Result: 12, CharacterID: pip.ID, Stat: "clever"}, total: 15, statBonus: 3, outcome: &success},
		{name: "character without stat", roll: DiceRoll{Die: "d20", Result: 12, CharacterID: pip.ID}, total: 12, outcome: &partial},
		{name: "other die is not graded", roll: DiceRoll{Die: "d6", Result: 6, CharacterID: pip.ID, Stat: "Brave"}, total: 8, statBonus: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.RollDice(ctx, id, tt.roll)
			require.NoError(t, err)
			assert.Equal(t, tt.total, res.Total)
			assert.Equal(t, tt.statBonus, res.StatBonus)
			assert.Equal(t, tt.outcome, res.Outcome)
		})
	}
}

func TestCampaignService_RollDiceErrors(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	id := createBloomburrow(t, svc)
	pip, err := svc.AddCharacter(ctx, id, mousefolk("Pip"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		id       string
		roll     DiceRoll
		expected error
	}{
		{name: "unknown die", id: id, roll: DiceRoll{Die: "twenty", Result: 5}, expected: engine.ErrInvalidRequest},
		{name: "result off the die", id: id, roll: DiceRoll{Die: "d20", Result: 21}, expected: engine.ErrInvalidRequest},
		{name: "zero result", id: id, roll: DiceRoll{Die: "d6", Result: 0}, expected: engine.ErrInvalidRequest},
		{name: "stat without character", id: id, roll: DiceRoll{Die: "d20", Result: 5, Stat: "Brave"}, expected: engine.ErrInvalidRequest},
		{name: "unknown character", id: id, roll: DiceRoll{Die: "d20", Result: 5, CharacterID: "char_999"}, expected: engine.ErrNotFound},
		{name: "stat outside the system", id: id, roll: DiceRoll{Die: "d20", Result: 5, CharacterID: pip.ID, Stat: "Strength"}, expected: engine.ErrInvalidRequest},
		{name: "missing campaign", id: "nope", roll: DiceRoll{Die: "d20", Result: 5}, expected: ErrCampaignNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RollDice(ctx, tt.id, tt.roll)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCampaignService_RollDiceIsJournaled(t *testing.T) {
	svc, _ := setupServiceWithJournal(t)
	ctx := context.Background()
	id := createBloomburrow(t, svc)
	pip, err := svc.AddCharacter(ctx, id, mousefolk("Pip"))
	require.NoError(t, err)

	_, err = svc.RollDice(ctx, id, DiceRoll{Die: "d20", Result: 13, CharacterID: pip.ID, Stat: "Clever", Purpose: "Sneak past"})
	require.NoError(t, err)

	events, err := svc.Journal(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, journal.KindDiceRolled, events[0].Kind)
	assert.Equal(t, "Sneak past: Pip Clever d20 = 16 (success)", events[0].Detail)
}

func TestRollDetail(t *testing.T) {
	partial := system.OutcomePartial
	tests := []struct {
		name     string
		purpose  string
		res      RollResult
		expected string
	}{
		{name: "bare", res: RollResult{Die: "d6", Total: 4}, expected: "d6 = 4"},
		{name: "character only", res: RollResult{Die: "d20", Total: 11, Character: "Pip", Outcome: &partial}, expected: "Pip d20 = 11 (partial)"},
		{name: "purpose", purpose: " Climb ", res: RollResult{Die: "d6", Total: 2}, expected: "Climb: d6 = 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rollDetail(tt.purpose, &tt.res))
		})
	}
}
