package engine

import (
	"fmt"
	"slices"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

// NPCUpdate changes one NPC's runtime state. Nil fields are left alone.
type NPCUpdate struct {
	Met          *bool              `json:"met,omitempty"`
	Disposition  *state.Disposition `json:"disposition,omitempty"`
	RevealSecret bool               `json:"reveal_secret,omitempty"` // Disclose the NPC's secret to the party
}

// UpdateNPC applies an update to the NPC named by name (display name or
// state key). Revealing the secret also adds it to facts_known.
func UpdateNPC(c *campaign.Content, s *state.CampaignState, name string, u NPCUpdate) (state.NPCState, error) {
	npc, ok := c.NPC(name)
	if !ok {
		return state.NPCState{}, fmt.Errorf("npc %q: %w", name, ErrNotFound)
	}
	if u.Disposition != nil && !u.Disposition.Valid() {
		return state.NPCState{}, fmt.Errorf("npc %q: disposition %q: %w", name, *u.Disposition, ErrInvalidRequest)
	}

	key := npc.Key()
	ns, ok := s.NPCs[key]
	if !ok {
		ns = state.NewNPCState()
	}
	if u.Met != nil {
		ns.Met = *u.Met
	}
	if u.Disposition != nil {
		ns.Disposition = *u.Disposition
	}
	if u.RevealSecret {
		if !slices.Contains(ns.SecretsRevealed, npc.Secret) {
			ns.SecretsRevealed = append(ns.SecretsRevealed, npc.Secret)
		}
		s.AddFacts(npc.Secret)
	}
	if s.NPCs == nil {
		s.NPCs = make(map[string]state.NPCState)
	}
	s.NPCs[key] = ns
	return ns, nil
}

// VisitLocation records an authored location as visited, using its
// authored name.
func VisitLocation(c *campaign.Content, s *state.CampaignState, name string) (bool, error) {
	loc, ok := c.Location(name)
	if !ok {
		return false, fmt.Errorf("location %q: %w", name, ErrNotFound)
	}
	return s.Visit(loc.Name), nil
}

// LearnFacts merges facts the party picked up outside of a beat.
func LearnFacts(s *state.CampaignState, facts []string) int {
	return s.AddFacts(facts...)
}
