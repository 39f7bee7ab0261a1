// Package engine decides which story beats are playable and applies the
// state transitions of a campaign: beat hits, episode closes and threat
// escalation. Every function works on already-loaded content and state.
package engine

import (
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

// AvailableBeats returns the beats that can currently be played, in
// authored order. It does not modify state.
func AvailableBeats(c *campaign.Content, s *state.CampaignState) []campaign.Beat {
	available := make([]campaign.Beat, 0, len(c.Beats))
	for _, b := range c.Beats {
		if beatAvailable(b, s) {
			available = append(available, b)
		}
	}
	return available
}

// beatAvailable checks every unlock rule for a single beat.
func beatAvailable(b campaign.Beat, s *state.CampaignState) bool {
	// Already resolved either way
	if s.HasHit(b.ID) || s.HasExpired(b.ID) {
		return false
	}

	// All prerequisites must be hit
	for _, p := range b.Prerequisites {
		if !s.HasHit(p) {
			return false
		}
	}

	// Episode gate
	if !b.UnlockedBy.Open(s.EpisodesCompleted) {
		return false
	}

	// Expired but not yet recorded
	if IsExpired(b, s) {
		return false
	}

	return true
}

// IsExpired reports whether a beat's window has closed. Expiry is absolute:
// it ignores prerequisites and whether the beat was ever unlocked.
func IsExpired(b campaign.Beat, s *state.CampaignState) bool {
	if b.ClosesAfterEpisodes == nil {
		return false
	}
	return s.EpisodesCompleted >= *b.ClosesAfterEpisodes
}
