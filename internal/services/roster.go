package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/campaign-engine/internal/logger"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/roster"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// DiceRoll is a roll made at the table. The core never rolls; it adds the
// modifiers and grades the total.
type DiceRoll struct {
	Die         string `json:"die"`    // e.g. "d20"
	Result      int    `json:"result"` // Face shown on the die
	Modifier    int    `json:"modifier,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	CharacterID string `json:"character_id,omitempty"` // Adds the character's stat when Stat is set
	Stat        string `json:"stat,omitempty"`
}

// RollResult is a graded roll. Outcome is nil for dice other than the
// system's check die.
type RollResult struct {
	Die       string          `json:"die"`
	Result    int             `json:"result"`
	Modifier  int             `json:"modifier"`
	StatBonus int             `json:"stat_bonus"`
	Total     int             `json:"total"`
	Outcome   *system.Outcome `json:"outcome"`
	Character string          `json:"character,omitempty"`
	Stat      string          `json:"stat,omitempty"`
}

// Characters lists a campaign's party.
func (s *CampaignService) Characters(ctx context.Context, id string) ([]roster.Character, error) {
	r, err := s.roster(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Characters, nil
}

// Character returns one party member.
func (s *CampaignService) Character(ctx context.Context, id, charID string) (*roster.Character, error) {
	r, err := s.roster(ctx, id)
	if err != nil {
		return nil, err
	}
	ch, ok := r.Get(charID)
	if !ok {
		return nil, fmt.Errorf("character %q: %w", charID, engine.ErrNotFound)
	}
	return &ch, nil
}

// AddCharacter validates a new character against the campaign's system and
// adds it to the party.
func (s *CampaignService) AddCharacter(ctx context.Context, id string, ch roster.Character) (*roster.Character, error) {
	ch.ApplyDefaults()
	var added roster.Character
	err := s.mutateRoster(ctx, id, func(r *roster.Roster, tmpl *system.Template) error {
		if err := ch.Validate(tmpl); err != nil {
			return err
		}
		added = r.Add(ch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCampaign(s.logger, id).Info("Character added", "character_id", added.ID, "name", added.Name)
	return &added, nil
}

// UpdateCharacter applies a partial update to a party member.
func (s *CampaignService) UpdateCharacter(ctx context.Context, id, charID string, u roster.Update) (*roster.Character, error) {
	var updated roster.Character
	err := s.mutateRoster(ctx, id, func(r *roster.Roster, tmpl *system.Template) error {
		ch, ok := r.Get(charID)
		if !ok {
			return fmt.Errorf("character %q: %w", charID, engine.ErrNotFound)
		}
		updated = ch.Apply(u)
		if err := updated.Validate(tmpl); err != nil {
			return err
		}
		r.Replace(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithCampaign(s.logger, id).Debug("Character updated", "character_id", charID, "hearts", updated.Hearts, "threads", updated.Threads)
	return &updated, nil
}

// RemoveCharacter takes a character out of the party.
func (s *CampaignService) RemoveCharacter(ctx context.Context, id, charID string) error {
	err := s.mutateRoster(ctx, id, func(r *roster.Roster, _ *system.Template) error {
		if !r.Remove(charID) {
			return fmt.Errorf("character %q: %w", charID, engine.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.WithCampaign(s.logger, id).Info("Character removed", "character_id", charID)
	return nil
}

// RollDice grades a roll under the campaign's system. When a character and
// stat are named, the stat is read from the character's stat block and
// added to the total.
func (s *CampaignService) RollDice(ctx context.Context, id string, roll DiceRoll) (*RollResult, error) {
	roll.Die = strings.ToLower(strings.TrimSpace(roll.Die))
	sides, ok := system.DieSides(roll.Die)
	if !ok {
		return nil, fmt.Errorf("die %q: %w", roll.Die, engine.ErrInvalidRequest)
	}
	if roll.Result < 1 || roll.Result > sides {
		return nil, fmt.Errorf("result %d is not a face of a %s: %w", roll.Result, roll.Die, engine.ErrInvalidRequest)
	}
	if roll.Stat != "" && roll.CharacterID == "" {
		return nil, fmt.Errorf("stat %q needs a character_id: %w", roll.Stat, engine.ErrInvalidRequest)
	}

	r, err := s.roster(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.system(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("campaign %q has no game system and no default is configured", id)
	}

	res := &RollResult{Die: roll.Die, Result: roll.Result, Modifier: roll.Modifier}
	if roll.CharacterID != "" {
		ch, ok := r.Get(roll.CharacterID)
		if !ok {
			return nil, fmt.Errorf("character %q: %w", roll.CharacterID, engine.ErrNotFound)
		}
		res.Character = ch.Name
		if roll.Stat != "" {
			stat, ok := tmpl.StatName(roll.Stat)
			if !ok {
				return nil, fmt.Errorf("stat %q is not part of %s: %w", roll.Stat, tmpl.GameName, engine.ErrInvalidRequest)
			}
			bonus, err := ch.StatModifier(stat)
			if err != nil {
				return nil, err
			}
			res.Stat = stat
			res.StatBonus = bonus
		}
	}
	res.Total = res.Result + res.Modifier + res.StatBonus
	if outcome, ok := tmpl.Mechanics.Check(res.Die, res.Total); ok {
		res.Outcome = &outcome
	}

	logger.WithCampaign(s.logger, id).Debug("Dice rolled", "die", res.Die, "total", res.Total, "character", res.Character)
	s.record(ctx, id, journal.Event{Kind: journal.KindDiceRolled, Detail: rollDetail(roll.Purpose, res)})
	return res, nil
}

// rollDetail renders a roll for the journal, e.g.
// "Sneak past: Pip Clever d20 = 16 (success)".
func rollDetail(purpose string, res *RollResult) string {
	detail := fmt.Sprintf("%s = %d", res.Die, res.Total)
	if who := strings.TrimSpace(res.Character + " " + res.Stat); who != "" {
		detail = who + " " + detail
	}
	if res.Outcome != nil {
		detail += " (" + string(*res.Outcome) + ")"
	}
	if purpose = strings.TrimSpace(purpose); purpose != "" {
		detail = purpose + ": " + detail
	}
	return detail
}

// roster loads a campaign's party. A campaign without one has an empty
// party.
func (s *CampaignService) roster(ctx context.Context, id string) (*roster.Roster, error) {
	if _, err := s.Content(ctx, id); err != nil {
		return nil, err
	}
	r, err := s.storage.LoadRoster(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = roster.New()
	}
	return r, nil
}

// mutateRoster runs fn on a copy of the party under the campaign's lock
// and saves the result.
func (s *CampaignService) mutateRoster(ctx context.Context, id string, fn func(*roster.Roster, *system.Template) error) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	r, err := s.roster(ctx, id)
	if err != nil {
		return err
	}
	tmpl, err := s.system(ctx, id)
	if err != nil {
		return err
	}
	work := r.Clone()
	if err := fn(work, tmpl); err != nil {
		if errors.Is(err, roster.ErrInvalidCharacter) {
			return fmt.Errorf("%w: %w", engine.ErrInvalidRequest, err)
		}
		return err
	}
	return s.storage.SaveRoster(ctx, id, work)
}
