package system

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var dicePattern = regexp.MustCompile(`^d\d+$`)

// Outcome is the result band of a check.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Mechanics holds the dice and thresholds of a system.
type Mechanics struct {
	Dice             string `json:"dice" yaml:"dice"`                           // e.g. "d20"
	SuccessThreshold int    `json:"success_threshold" yaml:"success_threshold"` // Total needed for full success
	PartialThreshold int    `json:"partial_threshold" yaml:"partial_threshold"` // Total needed for success at a cost
}

func (m Mechanics) Validate() error {
	if !dicePattern.MatchString(m.Dice) {
		return fmt.Errorf("invalid dice %q", m.Dice)
	}
	if m.PartialThreshold < 1 || m.SuccessThreshold < 1 {
		return fmt.Errorf("thresholds must be at least 1")
	}
	if m.PartialThreshold > m.SuccessThreshold {
		return fmt.Errorf("partial threshold %d is above success threshold %d", m.PartialThreshold, m.SuccessThreshold)
	}
	return nil
}

// Classify maps a roll total onto an outcome band.
func (m Mechanics) Classify(total int) Outcome {
	switch {
	case total >= m.SuccessThreshold:
		return OutcomeSuccess
	case total >= m.PartialThreshold:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}

// DieSides parses a die name such as "d20" into its number of sides.
func DieSides(die string) (int, bool) {
	if !dicePattern.MatchString(die) {
		return 0, false
	}
	sides, err := strconv.Atoi(strings.TrimPrefix(die, "d"))
	if err != nil || sides < 2 {
		return 0, false
	}
	return sides, true
}

// Check grades a roll total, but only for the system's check die. Other
// dice are not thresholded.
func (m Mechanics) Check(die string, total int) (Outcome, bool) {
	if !strings.EqualFold(die, m.Dice) {
		return "", false
	}
	return m.Classify(total), true
}
