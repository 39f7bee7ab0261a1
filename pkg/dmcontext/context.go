// Package dmcontext projects campaign content and state into the snapshot
// handed to the narrating agent. The projection is read-only and
// deterministic: the same inputs always marshal to the same bytes.
package dmcontext

import (
	"fmt"
	"slices"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

// MaxThreatDescription replaces the stage description once threat_stage is
// past the end of the track.
const MaxThreatDescription = "Maximum threat reached"

// DefaultEpisode is used when the caller has no episode details.
var DefaultEpisode = map[string]string{"description": "Freeform episode"}

// Snapshot is the narrator-facing view of a campaign.
type Snapshot struct {
	Episode           any                `json:"episode"`
	CampaignContext   CampaignContext    `json:"campaign_context"`
	AvailableBeats    []BeatSummary      `json:"available_beats"`
	PartyKnows        []string           `json:"party_knows"`
	PartyDoesNotKnow  []string           `json:"party_does_not_know"` // Must not be disclosed yet
	NPCStates         map[string]NPCView `json:"npc_states"`          // Keyed by display name
	ThreatStage       int                `json:"threat_stage"`
	ThreatName        string             `json:"threat_name"`
	ThreatDescription string             `json:"threat_description"`
	EpisodesCompleted int                `json:"episodes_completed"`
	LocationsVisited  []string           `json:"locations_visited"`
}

type CampaignContext struct {
	Name      string         `json:"name"`
	Premise   string         `json:"premise"`
	Tone      string         `json:"tone"`
	Locations []LocationView `json:"locations"`
}

type LocationView struct {
	Name     string   `json:"name"`
	Vibe     string   `json:"vibe"`
	Contains []string `json:"contains"`
}

// BeatSummary is a beat stripped of hints, revelation and prerequisites so
// an unplayed beat can't be spoiled.
type BeatSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IsFinale    bool   `json:"is_finale"`
}

// NPCView merges authored NPC attributes with runtime state.
type NPCView struct {
	Species     string            `json:"species"`
	Role        string            `json:"role"`
	Wants       string            `json:"wants"`
	Secret      string            `json:"secret"`
	Met         bool              `json:"met"`
	Disposition state.Disposition `json:"disposition"`
}

// Build projects c and s into a Snapshot. episode is passed through
// untouched; nil is replaced by DefaultEpisode.
func Build(c *campaign.Content, s *state.CampaignState, episode any) *Snapshot {
	if episode == nil {
		episode = DefaultEpisode
	}

	snap := &Snapshot{
		Episode: episode,
		CampaignContext: CampaignContext{
			Name:      c.Name,
			Premise:   c.Premise,
			Tone:      c.Tone,
			Locations: make([]LocationView, 0, len(c.Locations)),
		},
		AvailableBeats:    []BeatSummary{},
		PartyKnows:        nonNil(slices.Clone(s.FactsKnown)),
		PartyDoesNotKnow:  Withheld(c, s),
		NPCStates:         make(map[string]NPCView, len(c.NPCs)),
		ThreatStage:       s.ThreatStage,
		ThreatName:        c.Threat.Name,
		ThreatDescription: ThreatDescription(c, s),
		EpisodesCompleted: s.EpisodesCompleted,
		LocationsVisited:  nonNil(slices.Clone(s.LocationsVisited)),
	}

	for _, loc := range c.Locations {
		snap.CampaignContext.Locations = append(snap.CampaignContext.Locations, LocationView{
			Name:     loc.Name,
			Vibe:     loc.Vibe,
			Contains: nonNil(slices.Clone(loc.Contains)),
		})
	}

	for _, b := range engine.AvailableBeats(c, s) {
		snap.AvailableBeats = append(snap.AvailableBeats, BeatSummary{
			ID:          b.ID,
			Description: b.Description,
			IsFinale:    b.IsFinale,
		})
	}

	for _, npc := range c.NPCs {
		runtime, ok := s.NPCs[npc.Key()]
		if !ok {
			runtime = state.NewNPCState()
		}
		snap.NPCStates[npc.Name] = NPCView{
			Species:     npc.Species,
			Role:        npc.Role,
			Wants:       npc.Wants,
			Secret:      npc.Secret,
			Met:         runtime.Met,
			Disposition: runtime.Disposition,
		}
	}

	return snap
}

// Withheld lists every NPC secret and unplayed beat revelation the party
// doesn't know yet, NPCs first, each in authored order.
func Withheld(c *campaign.Content, s *state.CampaignState) []string {
	out := []string{}
	for _, npc := range c.NPCs {
		if !s.KnowsFact(npc.Secret) {
			out = append(out, fmt.Sprintf("%s's secret: %s", npc.Name, npc.Secret))
		}
	}
	for _, b := range c.Beats {
		if s.HasHit(b.ID) || b.Revelation == "" || s.KnowsFact(b.Revelation) {
			continue
		}
		out = append(out, fmt.Sprintf("Beat reveal (%s): %s", b.ID, b.Revelation))
	}
	return out
}

// ThreatDescription returns the text of the current threat stage.
func ThreatDescription(c *campaign.Content, s *state.CampaignState) string {
	if s.ThreatStage >= 0 && s.ThreatStage < len(c.Threat.Stages) {
		return c.Threat.Stages[s.ThreatStage]
	}
	return MaxThreatDescription
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
