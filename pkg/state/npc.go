package state

import "slices"

// Disposition is an NPC's attitude toward the party.
type Disposition string

const (
	DispositionUnknown    Disposition = "unknown"
	DispositionFriendly   Disposition = "friendly"
	DispositionNeutral    Disposition = "neutral"
	DispositionSuspicious Disposition = "suspicious"
	DispositionHostile    Disposition = "hostile"
)

var dispositions = []Disposition{
	DispositionUnknown,
	DispositionFriendly,
	DispositionNeutral,
	DispositionSuspicious,
	DispositionHostile,
}

// Valid reports whether d is one of the known dispositions.
func (d Disposition) Valid() bool {
	return slices.Contains(dispositions, d)
}

// ParseDisposition returns the disposition named by s.
func ParseDisposition(s string) (Disposition, bool) {
	d := Disposition(s)
	return d, d.Valid()
}

// NPCState is the runtime relationship state for one NPC.
type NPCState struct {
	Met             bool        `json:"met"`
	Disposition     Disposition `json:"disposition"`      // unknown, friendly, neutral, suspicious, hostile
	SecretsRevealed []string    `json:"secrets_revealed"` // Secret strings already disclosed
}

// NewNPCState returns the default state for an NPC the party hasn't met.
func NewNPCState() NPCState {
	return NPCState{
		Disposition:     DispositionUnknown,
		SecretsRevealed: []string{},
	}
}
