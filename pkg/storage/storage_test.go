package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/roster"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStorage_ContentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	loaded, err := store.LoadContent(ctx, "rotwood")
	require.NoError(t, err)
	assert.Nil(t, loaded, "absent content should load as nil")

	require.NoError(t, store.SaveContent(ctx, "rotwood", campaign.Example()))

	loaded, err = store.LoadContent(ctx, "rotwood")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, campaign.Example(), loaded)
}

func TestMockStorage_StateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	loaded, err := store.LoadState(ctx, "rotwood")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	s := state.NewFromContent(campaign.Example())
	s.BeatsHit = []string{"first_signs"}
	s.EpisodesCompleted = 2
	require.NoError(t, store.SaveState(ctx, "rotwood", s))

	loaded, err = store.LoadState(ctx, "rotwood")
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestMockStorage_LegacyContentMigratedAndResaved(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	data, err := campaign.EncodeJSON(campaign.Example())
	require.NoError(t, err)
	legacy := strings.Replace(string(data), `"name": "The Rotwood Blight",`, `"name": "The Rotwood Blight", "filler_seeds": ["a", "b"],`, 1)
	store.PutRaw("rotwood", ContentFile, []byte(legacy))

	loaded, err := store.LoadContent(ctx, "rotwood")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "The Rotwood Blight", loaded.Name)
	assert.NotContains(t, string(store.Raw("rotwood", ContentFile)), "filler_seeds")
}

func TestMockStorage_InvalidStoredContent(t *testing.T) {
	store := NewMockStorage()
	store.PutRaw("broken", ContentFile, []byte(`{"name": "x"}`))

	_, err := store.LoadContent(context.Background(), "broken")
	var verr *campaign.ValidationError
	assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
}

func TestMockStorage_LegacyState(t *testing.T) {
	store := NewMockStorage()
	store.PutRaw("rotwood", StateFile, []byte(`{"runs_completed": 3, "anchor_runs_completed": ["first_signs"], "current_run_id": "x"}`))

	s, err := store.LoadState(context.Background(), "rotwood")
	require.NoError(t, err)
	assert.Equal(t, 3, s.EpisodesCompleted)
	assert.Equal(t, []string{"first_signs"}, s.BeatsHit)
	assert.NotContains(t, string(store.Raw("rotwood", StateFile)), "runs_completed")
}

func TestMockStorage_InvalidState(t *testing.T) {
	store := NewMockStorage()
	store.PutRaw("rotwood", StateFile, []byte(`[1, 2, 3]`))

	_, err := store.LoadState(context.Background(), "rotwood")
	assert.ErrorIs(t, err, state.ErrInvalidState)
}

func TestMockStorage_SystemRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	loaded, err := store.LoadSystem(ctx, "rotwood")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	tmpl, err := system.Get("bloomburrow")
	require.NoError(t, err)
	require.NoError(t, store.SaveSystem(ctx, "rotwood", tmpl))

	loaded, err = store.LoadSystem(ctx, "rotwood")
	require.NoError(t, err)
	assert.Equal(t, tmpl, loaded)

	store.PutRaw("broken", SystemFile, []byte(`{"id": "x", "game_name": "X", "mechanics": {"dice": "coin"}}`))
	_, err = store.LoadSystem(ctx, "broken")
	assert.Error(t, err)
}

func TestMockStorage_RosterRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	loaded, err := store.LoadRoster(ctx, "rotwood")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	r := roster.New()
	ch := roster.Character{Name: "Pip", Species: "Mousefolk", Stats: map[string]int{"Brave": 2}}
	ch.ApplyDefaults()
	r.Add(ch)
	require.NoError(t, store.SaveRoster(ctx, "rotwood", r))

	loaded, err = store.LoadRoster(ctx, "rotwood")
	require.NoError(t, err)
	assert.Equal(t, r, loaded)

	store.PutRaw("empty", RosterFile, []byte(`{}`))
	loaded, err = store.LoadRoster(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, loaded.Characters)
}

func TestMockStorage_Draft(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	loaded, err := store.LoadDraft(ctx, "rotwood")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	draft := []byte(`{"name": "Half Done", "npcs": [{"name": "Bramblewick"}]}`)
	require.NoError(t, store.SaveDraft(ctx, "rotwood", draft))
	loaded, err = store.LoadDraft(ctx, "rotwood")
	require.NoError(t, err)
	assert.JSONEq(t, string(draft), string(loaded))

	legacy := []byte(`{"name": "Old", "anchor_runs": [{"id": "a", "goal": "Start"}]}`)
	require.NoError(t, store.SaveDraft(ctx, "legacy", legacy))
	loaded, err = store.LoadDraft(ctx, "legacy")
	require.NoError(t, err)
	assert.Contains(t, string(loaded), `"beats"`)
	assert.Equal(t, legacy, store.Raw("legacy", DraftFile), "drafts are migrated on read only")

	for _, bad := range []string{`[1, 2]`, `null`, `not json`} {
		err := store.SaveDraft(ctx, "rotwood", []byte(bad))
		assert.ErrorIs(t, err, ErrInvalidDocument, bad)
	}
}

func TestMockStorage_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	require.NoError(t, store.SaveContent(ctx, "b", campaign.Example()))
	require.NoError(t, store.SaveContent(ctx, "a", campaign.Example()))
	require.NoError(t, store.SaveState(ctx, "a", state.New()))

	ids, err := store.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, store.DeleteCampaign(ctx, "a"))
	ids, err = store.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	s, err := store.LoadState(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestMockStorage_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewMockStorage()

	store.SetPingError(errors.New("down"))
	assert.Error(t, store.Ping(ctx))
	store.SetPingError(nil)
	assert.NoError(t, store.Ping(ctx))

	store.SetSaveError(errors.New("disk full"))
	assert.Error(t, store.SaveState(ctx, "a", state.New()))
	assert.Error(t, store.SaveContent(ctx, "a", nil))
}
