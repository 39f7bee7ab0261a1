package engine

import (
	"slices"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

// EpisodeReport summarizes what happened when an episode was closed.
type EpisodeReport struct {
	EpisodesCompleted int        `json:"episodes_completed"`
	BeatsHit          []string   `json:"beats_hit"` // Beats hit during the closed episode
	ThreatAdvanced    bool       `json:"threat_advanced"`
	ThreatStage       int        `json:"threat_stage"`
	NewlyExpired      []string   `json:"newly_expired"`
	CampaignComplete  bool       `json:"campaign_complete"`
	Completion        Completion `json:"completion"`
}

// StartEpisode sets the episode currently being played.
func StartEpisode(s *state.CampaignState, ep state.Episode) {
	s.CurrentEpisode = &ep
}

// CloseEpisode ends the current episode: it bumps the episode counter,
// advances the threat unless a beat was hit during the episode, and records
// un-hit beats whose window has now closed into beats_expired.
func CloseEpisode(c *campaign.Content, s *state.CampaignState) EpisodeReport {
	hitThisEpisode := slices.Clone(s.EpisodeBeats)
	if hitThisEpisode == nil {
		hitThisEpisode = []string{}
	}

	s.EpisodesCompleted++
	advanced := AdvanceThreat(c, s, len(hitThisEpisode) > 0)
	expired := RecordExpired(c, s)

	s.CurrentEpisode = nil
	s.EpisodeBeats = []string{}

	completion := CampaignCompletion(c, s)
	return EpisodeReport{
		EpisodesCompleted: s.EpisodesCompleted,
		BeatsHit:          hitThisEpisode,
		ThreatAdvanced:    advanced,
		ThreatStage:       s.ThreatStage,
		NewlyExpired:      expired,
		CampaignComplete:  completion.Complete(),
		Completion:        completion,
	}
}

// RecordExpired moves every un-hit beat whose window has closed into
// beats_expired, in authored order. Returns the ids newly recorded.
func RecordExpired(c *campaign.Content, s *state.CampaignState) []string {
	expired := []string{}
	for _, b := range c.Beats {
		if s.HasHit(b.ID) || !IsExpired(b, s) {
			continue
		}
		if s.MarkExpired(b.ID) {
			expired = append(expired, b.ID)
		}
	}
	return expired
}
