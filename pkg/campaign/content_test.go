package campaign

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestExample_IsValid(t *testing.T) {
	c := Example()
	if err := c.Validate(); err != nil {
		t.Fatalf("Expected bundled example to validate, got %v", err)
	}
	if c.Name != "The Rotwood Blight" {
		t.Errorf("Expected name 'The Rotwood Blight', got %q", c.Name)
	}
	if len(c.Beats) != 4 {
		t.Errorf("Expected 4 beats, got %d", len(c.Beats))
	}
	patrol, ok := c.Beat("the_lost_patrol")
	if !ok {
		t.Fatal("Expected the_lost_patrol beat")
	}
	if patrol.UnlockedBy != EpisodeGate(2) {
		t.Errorf("Expected episode:2 gate, got %+v", patrol.UnlockedBy)
	}
}

func TestNPCKey(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Bramblewick", "bramblewick"},
		{"Captain Thornfeather", "captain_thornfeather"},
		{"  Old Mossback ", "old_mossback"},
		{"OLD MOSSBACK", "old_mossback"},
		{"old_mossback", "old_mossback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NPCKey(tt.name); got != tt.expected {
				t.Errorf("NPCKey(%q) = %q, expected %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestParseGate(t *testing.T) {
	tests := []struct {
		input     string
		expected  Gate
		expectErr bool
	}{
		{"", Gate{}, false},
		{"episode:3", EpisodeGate(3), false},
		{"episode:0", EpisodeGate(0), false},
		{" episode: 4 ", EpisodeGate(4), false},
		{"beat:first_signs", Gate{Kind: GateOther, Raw: "beat:first_signs"}, false},
		{"episode:soon", Gate{Kind: GateInvalid, Raw: "episode:soon"}, true},
		{"episode:-1", Gate{Kind: GateInvalid, Raw: "episode:-1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			g, err := ParseGate(tt.input)
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if g != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, g)
			}
		})
	}
}

func TestGate_Open(t *testing.T) {
	assert.True(t, Gate{}.Open(0))
	assert.False(t, EpisodeGate(2).Open(1))
	assert.True(t, EpisodeGate(2).Open(2))
	assert.True(t, Gate{Kind: GateOther, Raw: "whenever"}.Open(0))
	assert.False(t, Gate{Kind: GateInvalid, Raw: "episode:x"}.Open(100))
}

func TestGate_JSON(t *testing.T) {
	b := Beat{ID: "late", UnlockedBy: EpisodeGate(3)}
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unlocked_by":"episode:3"`)

	var decoded Beat
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EpisodeGate(3), decoded.UnlockedBy)

	data, err = json.Marshal(Beat{ID: "open"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unlocked_by":null`)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","unlocked_by":null}`), &decoded))
	assert.True(t, decoded.UnlockedBy.IsZero())
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Content)
		problem string
	}{
		{
			name:    "unknown prerequisite",
			mutate:  func(c *Content) { c.Beats[1].Prerequisites = []string{"nope"} },
			problem: `references unknown prerequisite "nope"`,
		},
		{
			name:    "self prerequisite",
			mutate:  func(c *Content) { c.Beats[1].Prerequisites = []string{"find_the_scholar"} },
			problem: "cannot be its own prerequisite",
		},
		{
			name: "no start beat",
			mutate: func(c *Content) {
				c.Beats[0].Prerequisites = []string{"heart_of_the_rot"}
				c.Beats[2].UnlockedBy = EpisodeGate(99)
			},
			problem: "available from start",
		},
		{
			name:    "invalid gate",
			mutate:  func(c *Content) { c.Beats[2].UnlockedBy = Gate{Kind: GateInvalid, Raw: "episode:two"} },
			problem: "invalid unlocked_by",
		},
		{
			name:    "bad beat id",
			mutate:  func(c *Content) { c.Beats[0].ID = "Test Beat!" },
			problem: "id must be lowercase",
		},
		{
			name:    "short description",
			mutate:  func(c *Content) { c.Beats[0].Description = "Short" },
			problem: "description must be at least 10 characters",
		},
		{
			name:    "duplicate beat",
			mutate:  func(c *Content) { c.Beats[3].ID = "first_signs" },
			problem: `duplicate beat id "first_signs"`,
		},
		{
			name:    "too few stages",
			mutate:  func(c *Content) { c.Threat.Stages = c.Threat.Stages[:2] },
			problem: "threat.stages must have 3-6 entries",
		},
		{
			name:    "too few npcs",
			mutate:  func(c *Content) { c.NPCs = c.NPCs[:1] },
			problem: "npcs must have 2-10 entries",
		},
		{
			name:    "too few beats",
			mutate:  func(c *Content) { c.Beats = c.Beats[:2] },
			problem: "beats must have 3-10 entries",
		},
		{
			name:    "zero closes_after_episodes",
			mutate:  func(c *Content) { c.Beats[2].ClosesAfterEpisodes = intPtr(0) },
			problem: "closes_after_episodes must be at least 1",
		},
		{
			name:    "location without tags",
			mutate:  func(c *Content) { c.Locations[0].Contains = nil },
			problem: "contains must have at least one tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Example()
			tt.mutate(c)
			err := c.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			found := false
			for _, p := range verr.Problems {
				if strings.Contains(p, tt.problem) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected a problem containing %q, got %v", tt.problem, verr.Problems)
			}
		})
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	data, err := EncodeJSON(Example())
	require.NoError(t, err)

	c, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, Example(), c)

	withExtra := strings.Replace(string(data), `"name": "The Rotwood Blight"`, `"name": "The Rotwood Blight", "filler_seeds": []`, 1)
	_, err = DecodeJSON([]byte(withExtra))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "filler_seeds")
}

func TestYAMLRoundTrip(t *testing.T) {
	original := Example()
	data, err := EncodeYAML(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), "episode:2")

	decoded, err := DecodeYAML(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestWarnings(t *testing.T) {
	c := Example()
	c.Beats[2].ClosesAfterEpisodes = intPtr(2)

	warnings := Warnings(c, Vocabulary{
		Species:      []string{"Ratfolk", "Birdfolk"},
		LocationTags: []string{"boss", "danger", "secret", "exposition", "ally", "treasure"},
	})

	joined := strings.Join(warnings, "\n")
	assert.Contains(t, joined, `"Old Mossback" has species "Frogfolk"`)
	assert.Contains(t, joined, `beat "the_lost_patrol" closes after 2 episodes`)
	assert.NotContains(t, joined, "finale")

	c.Beats[3].IsFinale = false
	c.Beats[1].Prerequisites = []string{"heart_of_the_rot"}
	warnings = Warnings(c, Vocabulary{})
	joined = strings.Join(warnings, "\n")
	assert.Contains(t, joined, "no beat is marked as the finale")
	assert.Contains(t, joined, `beat "find_the_scholar" can never become available`)
	assert.Contains(t, joined, `beat "heart_of_the_rot" can never become available`)
}
