package campaign

import (
	"strings"

	"golang.org/x/text/cases"
)

// Beat is an authored story node. Its unlock and expiry rules decide when the
// narrator may steer the party toward it.
type Beat struct {
	ID                  string   `json:"id" yaml:"id"`
	Description         string   `json:"description" yaml:"description"`                               // What happens
	Hints               []string `json:"hints,omitempty" yaml:"hints,omitempty"`                       // Elements the narrator should weave in
	Revelation          string   `json:"revelation" yaml:"revelation"`                                 // Fact unlocked on completion, may be empty
	Prerequisites       []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`       // Beat ids that must already be hit
	UnlockedBy          Gate     `json:"unlocked_by" yaml:"unlocked_by,omitempty"`                     // e.g. "episode:3"
	ClosesAfterEpisodes *int     `json:"closes_after_episodes" yaml:"closes_after_episodes,omitempty"` // Permanently unavailable once reached
	IsFinale            bool     `json:"is_finale" yaml:"is_finale"`                                   // Completion can end the campaign
}

// Threat is the campaign's escalation track.
type Threat struct {
	Name                             string   `json:"name" yaml:"name"`
	Stages                           []string `json:"stages" yaml:"stages"`
	AdvancesEachEpisodeUnlessBeatHit bool     `json:"advances_each_episode_unless_beat_hit" yaml:"advances_each_episode_unless_beat_hit"`
}

// MaxStage is the last valid index into Stages.
func (t Threat) MaxStage() int {
	if len(t.Stages) == 0 {
		return 0
	}
	return len(t.Stages) - 1
}

// NPC is an authored non-player character.
type NPC struct {
	Name    string `json:"name" yaml:"name"`
	Species string `json:"species" yaml:"species"`
	Role    string `json:"role" yaml:"role"`     // One phrase describing their role
	Wants   string `json:"wants" yaml:"wants"`   // What they're trying to achieve
	Secret  string `json:"secret" yaml:"secret"` // Withheld from players until revealed
}

// Key returns the runtime state key for this NPC.
func (n NPC) Key() string {
	return NPCKey(n.Name)
}

// Location is an authored place the party can visit.
type Location struct {
	Name     string   `json:"name" yaml:"name"`
	Vibe     string   `json:"vibe" yaml:"vibe"`
	Contains []string `json:"contains" yaml:"contains"` // Encounter tags, e.g. "ally", "danger"
}

// Content is the complete authored campaign. It is immutable once validated;
// replacing it is a full overwrite.
type Content struct {
	Name      string     `json:"name" yaml:"name"`
	Premise   string     `json:"premise" yaml:"premise"`
	Tone      string     `json:"tone" yaml:"tone"`
	Threat    Threat     `json:"threat" yaml:"threat"`
	NPCs      []NPC      `json:"npcs" yaml:"npcs"`
	Locations []Location `json:"locations" yaml:"locations"`
	Beats     []Beat     `json:"beats" yaml:"beats"`
}

// Beat looks up a beat by id.
func (c *Content) Beat(id string) (Beat, bool) {
	for _, b := range c.Beats {
		if b.ID == id {
			return b, true
		}
	}
	return Beat{}, false
}

// NPC looks up an NPC by display name or state key.
func (c *Content) NPC(name string) (NPC, bool) {
	key := NPCKey(name)
	for _, n := range c.NPCs {
		if n.Key() == key {
			return n, true
		}
	}
	return NPC{}, false
}

// Location looks up a location by name, ignoring case.
func (c *Content) Location(name string) (Location, bool) {
	for _, l := range c.Locations {
		if strings.EqualFold(l.Name, strings.TrimSpace(name)) {
			return l, true
		}
	}
	return Location{}, false
}

// IsStart reports whether a beat can be played before anything else happens.
func (b Beat) IsStart() bool {
	return len(b.Prerequisites) == 0 && b.UnlockedBy.Open(0)
}

// NPCKey normalizes an NPC name to the state map key: case-folded, with
// spaces replaced by underscores.
func NPCKey(name string) string {
	return strings.ReplaceAll(cases.Fold().String(strings.TrimSpace(name)), " ", "_")
}
