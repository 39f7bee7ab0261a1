package campaign

import (
	"fmt"
	"slices"
	"strings"
)

// Vocabulary is the set of authoring terms a game system recognizes.
type Vocabulary struct {
	Species      []string
	LocationTags []string
}

// Warnings returns non-fatal authoring notes. Content is expected to have
// passed Validate already.
func Warnings(c *Content, vocab Vocabulary) []string {
	var warnings []string

	if len(vocab.Species) > 0 {
		for _, n := range c.NPCs {
			if !containsFold(vocab.Species, n.Species) {
				warnings = append(warnings, fmt.Sprintf("NPC %q has species %q, which the game system does not define", n.Name, n.Species))
			}
		}
	}

	if len(vocab.LocationTags) > 0 {
		for _, l := range c.Locations {
			for _, tag := range l.Contains {
				if !containsFold(vocab.LocationTags, tag) {
					warnings = append(warnings, fmt.Sprintf("location %q uses unknown tag %q", l.Name, tag))
				}
			}
		}
	}

	hasFinale := false
	for _, b := range c.Beats {
		if b.IsFinale {
			hasFinale = true
		}
		if b.ClosesAfterEpisodes != nil && b.UnlockedBy.Kind == GateEpisode && b.UnlockedBy.Episodes >= *b.ClosesAfterEpisodes {
			warnings = append(warnings, fmt.Sprintf("beat %q closes after %d episodes but does not unlock until episode %d", b.ID, *b.ClosesAfterEpisodes, b.UnlockedBy.Episodes))
		}
	}
	if !hasFinale {
		warnings = append(warnings, "no beat is marked as the finale")
	}

	for _, id := range unreachableBeats(c) {
		warnings = append(warnings, fmt.Sprintf("beat %q can never become available (prerequisite cycle)", id))
	}

	return warnings
}

// unreachableBeats returns beats whose prerequisite chain can never be
// satisfied, in authored order.
func unreachableBeats(c *Content) []string {
	reachable := make(map[string]bool, len(c.Beats))
	for changed := true; changed; {
		changed = false
		for _, b := range c.Beats {
			if reachable[b.ID] {
				continue
			}
			ok := true
			for _, p := range b.Prerequisites {
				if !reachable[p] {
					ok = false
					break
				}
			}
			if ok {
				reachable[b.ID] = true
				changed = true
			}
		}
	}

	var out []string
	for _, b := range c.Beats {
		if !reachable[b.ID] {
			out = append(out, b.ID)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(item string) bool {
		return strings.EqualFold(item, strings.TrimSpace(s))
	})
}
