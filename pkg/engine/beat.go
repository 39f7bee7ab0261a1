package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

var (
	// ErrNotFound means an operation named a beat, NPC or location that the
	// content does not define.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved means the beat was already hit.
	ErrAlreadyResolved = errors.New("beat already resolved")

	// ErrInvalidRequest means an update carried a value outside its domain.
	ErrInvalidRequest = errors.New("invalid request")
)

// HitRequest reports the outcome of a played beat.
type HitRequest struct {
	BeatID       string   `json:"beat_id"`
	FactsLearned []string `json:"facts_learned,omitempty"`
	NPCsMet      []string `json:"npcs_met,omitempty"` // Free-text names; unknown names are ignored
}

// Completion breaks down the terminal conditions of a campaign.
type Completion struct {
	FinaleHit   bool `json:"finale_hit"`
	AllBeatsHit bool `json:"all_beats_hit"`
	ThreatMaxed bool `json:"threat_maxed"`
}

// Complete is true if any terminal condition holds.
func (c Completion) Complete() bool {
	return c.FinaleHit || c.AllBeatsHit || c.ThreatMaxed
}

// Outcome is the result of a successful HitBeat.
type Outcome struct {
	BeatsHit          []string   `json:"beats_hit"`
	EpisodesCompleted int        `json:"episodes_completed"`
	ThreatStage       int        `json:"threat_stage"`
	CampaignComplete  bool       `json:"campaign_complete"`
	Completion        Completion `json:"completion"`
	NewFacts          []string   `json:"new_facts"` // Facts added to facts_known by this hit
	NPCsMet           []string   `json:"npcs_met"`  // State keys whose met flag was set
}

// CampaignCompletion evaluates the terminal conditions. Finale and
// all-beats completion are permanent because beats_hit only grows; threat
// completion holds only while the stage stays at maximum.
func CampaignCompletion(c *campaign.Content, s *state.CampaignState) Completion {
	var out Completion
	allHit := len(c.Beats) > 0
	for _, b := range c.Beats {
		hit := s.HasHit(b.ID)
		if b.IsFinale && hit {
			out.FinaleHit = true
		}
		if !hit {
			allHit = false
		}
	}
	out.AllBeatsHit = allHit
	out.ThreatMaxed = ThreatMaxed(c, s)
	return out
}

// CampaignComplete is the three-way OR of CampaignCompletion.
func CampaignComplete(c *campaign.Content, s *state.CampaignState) bool {
	return CampaignCompletion(c, s).Complete()
}

// HitBeat records a beat as resolved, merges what the party learned and
// marks NPCs as met. All checks run before any mutation, so a failed call
// leaves s untouched. Persisting s is the caller's job.
func HitBeat(c *campaign.Content, s *state.CampaignState, req HitRequest) (*Outcome, error) {
	beat, ok := c.Beat(req.BeatID)
	if !ok {
		return nil, fmt.Errorf("beat %q: %w", req.BeatID, ErrNotFound)
	}
	if s.HasHit(beat.ID) {
		return nil, fmt.Errorf("beat %q: %w", beat.ID, ErrAlreadyResolved)
	}

	s.MarkHit(beat.ID)

	before := len(s.FactsKnown)
	if beat.Revelation != "" {
		s.AddFacts(beat.Revelation)
	}
	s.AddFacts(req.FactsLearned...)
	newFacts := slices.Clone(s.FactsKnown[before:])

	met := markNPCsMet(s, req.NPCsMet)

	completion := CampaignCompletion(c, s)
	return &Outcome{
		BeatsHit:          slices.Clone(s.BeatsHit),
		EpisodesCompleted: s.EpisodesCompleted,
		ThreatStage:       s.ThreatStage,
		CampaignComplete:  completion.Complete(),
		Completion:        completion,
		NewFacts:          newFacts,
		NPCsMet:           met,
	}, nil
}

func markNPCsMet(s *state.CampaignState, names []string) []string {
	met := []string{}
	for _, name := range names {
		key := campaign.NPCKey(name)
		npc, ok := s.NPCs[key]
		if !ok {
			continue
		}
		npc.Met = true
		s.NPCs[key] = npc
		if !slices.Contains(met, key) {
			met = append(met, key)
		}
	}
	return met
}
