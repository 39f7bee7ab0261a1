package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
)

// ErrInvalidState is returned when persisted state cannot be recovered by
// defaulting.
var ErrInvalidState = errors.New("invalid campaign state")

// Episode describes the episode currently being played. It is supplied by
// the caller and passed through to the DM context untouched.
type Episode struct {
	Description string     `json:"description"`
	BeatID      string     `json:"beat_id,omitempty"`  // Beat the episode is aimed at, if any
	Tone        string     `json:"tone,omitempty"`     // Optional tone override
	Location    string     `json:"location,omitempty"` // Where the episode opens
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// CampaignState is the mutable play progress for one campaign.
type CampaignState struct {
	ThreatStage       int                 `json:"threat_stage"`
	EpisodesCompleted int                 `json:"episodes_completed"`
	BeatsHit          []string            `json:"beats_hit"`
	BeatsExpired      []string            `json:"beats_expired"`
	CurrentEpisode    *Episode            `json:"current_episode"`
	FactsKnown        []string            `json:"facts_known"`
	NPCs              map[string]NPCState `json:"npcs"`
	LocationsVisited  []string            `json:"locations_visited"`
	Flags             map[string]bool     `json:"flags"`
	EpisodeBeats      []string            `json:"episode_beats"` // Beats hit since the last episode close
}

// New returns an empty state.
func New() *CampaignState {
	return &CampaignState{
		BeatsHit:         []string{},
		BeatsExpired:     []string{},
		FactsKnown:       []string{},
		NPCs:             make(map[string]NPCState),
		LocationsVisited: []string{},
		Flags:            make(map[string]bool),
		EpisodeBeats:     []string{},
	}
}

// NewFromContent returns an empty state with every content NPC initialized.
func NewFromContent(c *campaign.Content) *CampaignState {
	s := New()
	s.InitializeFromContent(c)
	return s
}

// InitializeFromContent replaces the NPC map with defaults for every NPC in
// the content.
func (s *CampaignState) InitializeFromContent(c *campaign.Content) {
	s.NPCs = make(map[string]NPCState, len(c.NPCs))
	for _, n := range c.NPCs {
		s.NPCs[n.Key()] = NewNPCState()
	}
}

// JoinContent adds default state for content NPCs the state doesn't track
// yet. Existing entries are left alone. Returns the number added.
func (s *CampaignState) JoinContent(c *campaign.Content) int {
	if s.NPCs == nil {
		s.NPCs = make(map[string]NPCState)
	}
	added := 0
	for _, n := range c.NPCs {
		if _, ok := s.NPCs[n.Key()]; !ok {
			s.NPCs[n.Key()] = NewNPCState()
			added++
		}
	}
	return added
}

// ClampThreat pulls ThreatStage back onto the content's threat track,
// which can be shorter than the track the stage was reached on. Returns
// whether the stage changed.
func (s *CampaignState) ClampThreat(c *campaign.Content) bool {
	clamped := max(0, min(s.ThreatStage, c.Threat.MaxStage()))
	if clamped == s.ThreatStage {
		return false
	}
	s.ThreatStage = clamped
	return true
}

func (s *CampaignState) HasHit(beatID string) bool {
	return slices.Contains(s.BeatsHit, beatID)
}

func (s *CampaignState) HasExpired(beatID string) bool {
	return slices.Contains(s.BeatsExpired, beatID)
}

func (s *CampaignState) KnowsFact(fact string) bool {
	return slices.Contains(s.FactsKnown, fact)
}

// AddFacts merges facts into FactsKnown, keeping first-seen order and
// skipping blanks and duplicates. Facts are stored exactly as given so they
// keep matching the authored secrets and revelations they came from.
// Returns the number of new facts.
func (s *CampaignState) AddFacts(facts ...string) int {
	added := 0
	for _, f := range facts {
		if strings.TrimSpace(f) == "" || s.KnowsFact(f) {
			continue
		}
		s.FactsKnown = append(s.FactsKnown, f)
		added++
	}
	return added
}

// MarkHit records a beat as resolved. A hit beat is never considered expired.
func (s *CampaignState) MarkHit(beatID string) {
	if !s.HasHit(beatID) {
		s.BeatsHit = append(s.BeatsHit, beatID)
	}
	if !slices.Contains(s.EpisodeBeats, beatID) {
		s.EpisodeBeats = append(s.EpisodeBeats, beatID)
	}
	s.BeatsExpired = slices.DeleteFunc(s.BeatsExpired, func(id string) bool { return id == beatID })
}

// MarkExpired records a beat as permanently closed. Hit beats are ignored.
func (s *CampaignState) MarkExpired(beatID string) bool {
	if s.HasHit(beatID) || s.HasExpired(beatID) {
		return false
	}
	s.BeatsExpired = append(s.BeatsExpired, beatID)
	return true
}

// Visit records a location as visited. Returns false if it already was.
func (s *CampaignState) Visit(location string) bool {
	if slices.Contains(s.LocationsVisited, location) {
		return false
	}
	s.LocationsVisited = append(s.LocationsVisited, location)
	return true
}

// Clone returns a deep copy.
func (s *CampaignState) Clone() *CampaignState {
	out := &CampaignState{
		ThreatStage:       s.ThreatStage,
		EpisodesCompleted: s.EpisodesCompleted,
		BeatsHit:          slices.Clone(s.BeatsHit),
		BeatsExpired:      slices.Clone(s.BeatsExpired),
		FactsKnown:        slices.Clone(s.FactsKnown),
		NPCs:              make(map[string]NPCState, len(s.NPCs)),
		LocationsVisited:  slices.Clone(s.LocationsVisited),
		Flags:             maps.Clone(s.Flags),
		EpisodeBeats:      slices.Clone(s.EpisodeBeats),
	}
	for k, v := range s.NPCs {
		v.SecretsRevealed = slices.Clone(v.SecretsRevealed)
		out.NPCs[k] = v
	}
	if s.CurrentEpisode != nil {
		ep := *s.CurrentEpisode
		out.CurrentEpisode = &ep
	}
	if out.Flags == nil {
		out.Flags = make(map[string]bool)
	}
	return out
}

// Normalize repairs recoverable defects in loaded state: missing
// collections, negative counters, unknown dispositions, duplicate entries
// and beats recorded as both hit and expired. It returns a description of
// each repair made.
func (s *CampaignState) Normalize() []string {
	var repairs []string

	if s.ThreatStage < 0 {
		repairs = append(repairs, fmt.Sprintf("threat_stage %d reset to 0", s.ThreatStage))
		s.ThreatStage = 0
	}
	if s.EpisodesCompleted < 0 {
		repairs = append(repairs, fmt.Sprintf("episodes_completed %d reset to 0", s.EpisodesCompleted))
		s.EpisodesCompleted = 0
	}

	dedupe := func(field string, list []string) []string {
		if list == nil {
			return []string{}
		}
		out := make([]string, 0, len(list))
		for _, v := range list {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
		if len(out) != len(list) {
			repairs = append(repairs, fmt.Sprintf("removed %d duplicate %s entries", len(list)-len(out), field))
		}
		return out
	}
	s.BeatsHit = dedupe("beats_hit", s.BeatsHit)
	s.BeatsExpired = dedupe("beats_expired", s.BeatsExpired)
	s.FactsKnown = dedupe("facts_known", s.FactsKnown)
	s.LocationsVisited = dedupe("locations_visited", s.LocationsVisited)
	s.EpisodeBeats = dedupe("episode_beats", s.EpisodeBeats)

	before := len(s.BeatsExpired)
	s.BeatsExpired = slices.DeleteFunc(s.BeatsExpired, s.HasHit)
	if n := before - len(s.BeatsExpired); n > 0 {
		repairs = append(repairs, fmt.Sprintf("removed %d hit beats from beats_expired", n))
	}

	if s.NPCs == nil {
		s.NPCs = make(map[string]NPCState)
	}
	for _, key := range slices.Sorted(maps.Keys(s.NPCs)) {
		npc := s.NPCs[key]
		if !npc.Disposition.Valid() {
			repairs = append(repairs, fmt.Sprintf("npc %s disposition %q reset to unknown", key, npc.Disposition))
			npc.Disposition = DispositionUnknown
		}
		if npc.SecretsRevealed == nil {
			npc.SecretsRevealed = []string{}
		}
		s.NPCs[key] = npc
	}
	if s.Flags == nil {
		s.Flags = make(map[string]bool)
	}

	return repairs
}

// Decode parses persisted state and normalizes it. Documents that are not
// a JSON object wrap ErrInvalidState.
func Decode(data []byte) (*CampaignState, []string, error) {
	var s CampaignState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	repairs := s.Normalize()
	return &s, repairs, nil
}

// Encode renders state in its persisted form.
func Encode(s *CampaignState) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal campaign state: %w", err)
	}
	return data, nil
}
