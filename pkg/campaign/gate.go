package campaign

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GateKind identifies how a beat's unlock gate is evaluated.
type GateKind int

const (
	GateNone    GateKind = iota // No gate
	GateEpisode                 // Open once N episodes are completed
	GateOther                   // Unrecognized form, imposes no restriction
	GateInvalid                 // Malformed episode gate, rejected by Validate
)

const episodePrefix = "episode:"

// Gate is the parsed form of a beat's unlocked_by field. The string form
// ("episode:3") only exists on the wire.
type Gate struct {
	Kind     GateKind
	Episodes int    // Required episodes_completed when Kind is GateEpisode
	Raw      string // Original text for GateOther and GateInvalid
}

// EpisodeGate returns a gate that opens after n completed episodes.
func EpisodeGate(n int) Gate {
	return Gate{Kind: GateEpisode, Episodes: n}
}

// ParseGate parses the serialized gate form. Empty input is no gate.
func ParseGate(s string) (Gate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Gate{}, nil
	}
	rest, ok := strings.CutPrefix(s, episodePrefix)
	if !ok {
		return Gate{Kind: GateOther, Raw: s}, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 0 {
		return Gate{Kind: GateInvalid, Raw: s}, fmt.Errorf("invalid episode gate %q", s)
	}
	return EpisodeGate(n), nil
}

// Open reports whether the gate allows the beat at the given episode count.
func (g Gate) Open(episodesCompleted int) bool {
	switch g.Kind {
	case GateEpisode:
		return episodesCompleted >= g.Episodes
	case GateInvalid:
		return false
	default:
		return true
	}
}

// IsZero reports whether no gate is set.
func (g Gate) IsZero() bool {
	return g.Kind == GateNone
}

func (g Gate) String() string {
	switch g.Kind {
	case GateNone:
		return ""
	case GateEpisode:
		return episodePrefix + strconv.Itoa(g.Episodes)
	default:
		return g.Raw
	}
}

func (g Gate) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(g.String())
}

// UnmarshalJSON accepts a string or null. Malformed episode gates decode to
// GateInvalid so validation can report them alongside other problems.
func (g *Gate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*g = Gate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unlocked_by must be a string: %w", err)
	}
	*g, _ = ParseGate(s)
	return nil
}

func (g Gate) MarshalYAML() (interface{}, error) {
	if g.IsZero() {
		return nil, nil
	}
	return g.String(), nil
}

func (g *Gate) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*g = Gate{}
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("unlocked_by must be a string: %w", err)
	}
	*g, _ = ParseGate(s)
	return nil
}
