package campaign

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError lists every problem found while validating content.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid campaign content: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid campaign content (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

var beatIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const (
	maxBeatIDLen = 30
	maxHints     = 5
)

type validator struct {
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) length(field, value string, min, max int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n < min && min == 1:
		v.addf("%s is required", field)
	case n < min:
		v.addf("%s must be at least %d characters", field, min)
	case n > max:
		v.addf("%s must be at most %d characters", field, max)
	}
}

func (v *validator) count(field string, n, min, max int) {
	if n < min || n > max {
		v.addf("%s must have %d-%d entries, got %d", field, min, max, n)
	}
}

// Validate checks field bounds and the referential integrity of the beat
// graph. It returns a *ValidationError describing every problem found.
func (c *Content) Validate() error {
	v := &validator{}

	v.length("name", c.Name, 1, 50)
	v.length("premise", c.Premise, 20, 500)
	v.length("tone", c.Tone, 3, 100)

	v.length("threat.name", c.Threat.Name, 1, 50)
	v.count("threat.stages", len(c.Threat.Stages), 3, 6)
	for i, stage := range c.Threat.Stages {
		v.length(fmt.Sprintf("threat.stages[%d]", i), stage, 5, 150)
	}

	v.count("npcs", len(c.NPCs), 2, 10)
	npcKeys := make(map[string]bool, len(c.NPCs))
	for i, n := range c.NPCs {
		field := fmt.Sprintf("npcs[%d]", i)
		v.length(field+".name", n.Name, 1, 50)
		v.length(field+".species", n.Species, 1, 50)
		v.length(field+".role", n.Role, 1, 100)
		v.length(field+".wants", n.Wants, 1, 200)
		v.length(field+".secret", n.Secret, 1, 300)
		if key := n.Key(); key != "" {
			if npcKeys[key] {
				v.addf("duplicate NPC %q", n.Name)
			}
			npcKeys[key] = true
		}
	}

	v.count("locations", len(c.Locations), 2, 10)
	for i, l := range c.Locations {
		field := fmt.Sprintf("locations[%d]", i)
		v.length(field+".name", l.Name, 1, 50)
		v.length(field+".vibe", l.Vibe, 1, 200)
		if len(l.Contains) == 0 {
			v.addf("%s.contains must have at least one tag", field)
		}
	}

	v.count("beats", len(c.Beats), 3, 10)
	c.validateBeats(v)

	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

func (c *Content) validateBeats(v *validator) {
	ids := make(map[string]bool, len(c.Beats))
	for _, b := range c.Beats {
		if ids[b.ID] {
			v.addf("duplicate beat id %q", b.ID)
		}
		ids[b.ID] = true
	}

	hasStart := false
	for i, b := range c.Beats {
		field := fmt.Sprintf("beats[%d]", i)
		if b.ID != "" {
			field = fmt.Sprintf("beat %q", b.ID)
		}

		switch {
		case b.ID == "":
			v.addf("%s.id is required", field)
		case len(b.ID) > maxBeatIDLen:
			v.addf("%s: id must be at most %d characters", field, maxBeatIDLen)
		case !beatIDRegex.MatchString(b.ID):
			v.addf("%s: id must be lowercase letters, digits and underscores, starting with a letter", field)
		}

		v.length(field+" description", b.Description, 10, 500)
		if utf8.RuneCountInString(b.Revelation) > 300 {
			v.addf("%s revelation must be at most 300 characters", field)
		}
		if len(b.Hints) > maxHints {
			v.addf("%s: at most %d hints allowed, got %d", field, maxHints, len(b.Hints))
		}

		for _, p := range b.Prerequisites {
			switch {
			case p == b.ID:
				v.addf("%s cannot be its own prerequisite", field)
			case !ids[p]:
				v.addf("%s references unknown prerequisite %q", field, p)
			}
		}

		if b.UnlockedBy.Kind == GateInvalid {
			v.addf("%s has invalid unlocked_by %q (expected episode:<N>)", field, b.UnlockedBy.Raw)
		}
		if b.ClosesAfterEpisodes != nil && *b.ClosesAfterEpisodes < 1 {
			v.addf("%s closes_after_episodes must be at least 1", field)
		}

		if b.IsStart() {
			hasStart = true
		}
	}

	if len(c.Beats) > 0 && !hasStart {
		v.addf("at least one beat must be available from start (no prerequisites and no episode gate)")
	}
}
