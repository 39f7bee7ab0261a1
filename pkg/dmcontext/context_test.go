package dmcontext

import (
	"encoding/json"
	"testing"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_FreshCampaign(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)

	snap := Build(c, s, nil)

	assert.Equal(t, DefaultEpisode, snap.Episode)
	assert.Equal(t, "The Rotwood Blight", snap.CampaignContext.Name)
	assert.Len(t, snap.CampaignContext.Locations, 3)
	assert.Equal(t, []BeatSummary{{
		ID:          "first_signs",
		Description: "A farmer's child is sick. The healer needs bramble-root, but gatherers have gone missing.",
	}}, snap.AvailableBeats)
	assert.Equal(t, []string{}, snap.PartyKnows)
	assert.Equal(t, []string{}, snap.LocationsVisited)
	assert.Equal(t, "The Blight", snap.ThreatName)
	assert.Equal(t, "Brambles creatures appear near town", snap.ThreatDescription)

	// Three NPC secrets then four beat revelations.
	require.Len(t, snap.PartyDoesNotKnow, 7)
	assert.Equal(t, "Bramblewick's secret: Knows the blight started at an old shrine", snap.PartyDoesNotKnow[0])
	assert.Equal(t, "Beat reveal (first_signs): The Brambles themselves are sick, this isn't normal", snap.PartyDoesNotKnow[3])

	view := snap.NPCStates["Captain Thornfeather"]
	assert.Equal(t, "Birdfolk", view.Species)
	assert.False(t, view.Met)
	assert.Equal(t, state.DispositionUnknown, view.Disposition)
}

func TestBuild_SecretLearned(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)
	s.FactsKnown = []string{"Knows the blight started at an old shrine"}

	snap := Build(c, s, nil)

	assert.Contains(t, snap.PartyKnows, "Knows the blight started at an old shrine")
	for _, line := range snap.PartyDoesNotKnow {
		assert.NotContains(t, line, "Bramblewick's secret")
	}
	assert.Contains(t, snap.PartyDoesNotKnow, "Captain Thornfeather's secret: Lost a patrol to the blight, covering it up")
}

func TestBuild_HitBeatRevelationNotWithheld(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)
	s.BeatsHit = []string{"first_signs"}

	snap := Build(c, s, nil)

	for _, line := range snap.PartyDoesNotKnow {
		assert.NotContains(t, line, "first_signs")
	}
	assert.Equal(t, "find_the_scholar", snap.AvailableBeats[0].ID)
}

func TestBuild_MissingNPCStateDefaults(t *testing.T) {
	c := campaign.Example()
	s := state.New()

	snap := Build(c, s, nil)

	require.Len(t, snap.NPCStates, 3)
	for name, view := range snap.NPCStates {
		assert.False(t, view.Met, name)
		assert.Equal(t, state.DispositionUnknown, view.Disposition, name)
	}
}

func TestBuild_RuntimeNPCState(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)
	s.NPCs["old_mossback"] = state.NPCState{Met: true, Disposition: state.DispositionSuspicious}

	snap := Build(c, s, nil)

	assert.True(t, snap.NPCStates["Old Mossback"].Met)
	assert.Equal(t, state.DispositionSuspicious, snap.NPCStates["Old Mossback"].Disposition)
}

func TestThreatDescription(t *testing.T) {
	c := campaign.Example()

	tests := []struct {
		stage    int
		expected string
	}{
		{0, "Brambles creatures appear near town"},
		{4, "The Rotwood claims Valley"},
		{5, MaxThreatDescription},
		{99, MaxThreatDescription},
	}

	for _, tt := range tests {
		s := state.New()
		s.ThreatStage = tt.stage
		if got := ThreatDescription(c, s); got != tt.expected {
			t.Errorf("stage %d: expected %q, got %q", tt.stage, tt.expected, got)
		}
	}
}

func TestBuild_EpisodePassThrough(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)
	ep := state.Episode{Description: "Into the Brambles", BeatID: "first_signs"}

	snap := Build(c, s, ep)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	episode := decoded["episode"].(map[string]any)
	assert.Equal(t, "Into the Brambles", episode["description"])
	assert.Equal(t, "first_signs", episode["beat_id"])
}

func TestBuild_Deterministic(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)
	s.FactsKnown = []string{"zeta", "alpha", "mu"}
	s.BeatsHit = []string{"first_signs"}
	s.EpisodesCompleted = 2
	s.NPCs["bramblewick"] = state.NPCState{Met: true, Disposition: state.DispositionFriendly, SecretsRevealed: []string{}}

	first, err := json.Marshal(Build(c, s, nil))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		next, err := json.Marshal(Build(c, s, nil))
		require.NoError(t, err)
		if string(first) != string(next) {
			t.Fatalf("Snapshot differs between calls:\n%s\n%s", first, next)
		}
	}
}

func TestBuild_DoesNotLeakAuthoringFields(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)

	data, err := json.Marshal(Build(c, s, nil))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	beats := decoded["available_beats"].([]any)
	require.Len(t, beats, 1)
	beat := beats[0].(map[string]any)
	assert.NotContains(t, beat, "hints")
	assert.NotContains(t, beat, "revelation")
	assert.NotContains(t, beat, "prerequisites")
}

func TestBuild_DoesNotMutateState(t *testing.T) {
	c := campaign.Example()
	s := state.NewFromContent(c)
	s.EpisodesCompleted = 5
	before := s.Clone()

	Build(c, s, nil)

	assert.Equal(t, before, s)
}
