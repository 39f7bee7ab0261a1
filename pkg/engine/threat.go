package engine

import (
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

// AdvanceThreat moves the threat up one stage at the end of a period in
// which no beat was hit. It returns whether the stage changed. This is the
// only writer of ThreatStage apart from a reset.
func AdvanceThreat(c *campaign.Content, s *state.CampaignState, beatHitThisPeriod bool) bool {
	if !c.Threat.AdvancesEachEpisodeUnlessBeatHit {
		return false
	}
	if beatHitThisPeriod {
		return false
	}
	if s.ThreatStage >= c.Threat.MaxStage() {
		return false
	}
	s.ThreatStage++
	return true
}

// ThreatMaxed reports whether the threat sits on its last stage.
func ThreatMaxed(c *campaign.Content, s *state.CampaignState) bool {
	return len(c.Threat.Stages) > 0 && s.ThreatStage >= c.Threat.MaxStage()
}
