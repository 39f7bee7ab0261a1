// Package roster holds a campaign's party: the player characters, their
// stats, hearts and threads. Each character's stat block is backed by a
// d20.Actor so checks can read stat modifiers from it.
package roster

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/d20"

	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// Character defaults applied on creation.
const (
	DefaultLevel      = 1
	DefaultMaxHearts  = 5
	DefaultMaxThreads = 3

	// baseAC is the armor class every stat block is built with. The
	// templates have no armor, but the actor requires one.
	baseAC = 10

	idPrefix = "char_"
)

// ErrInvalidCharacter is returned when a character breaks its template's
// rules.
var ErrInvalidCharacter = errors.New("invalid character")

// Character is one party member.
type Character struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Species     string         `json:"species"`
	Level       int            `json:"level"`
	XP          int            `json:"xp"`
	Stats       map[string]int `json:"stats"` // Keyed by the template's stat names
	MaxHearts   int            `json:"max_hearts"`
	Hearts      int            `json:"hearts"`
	MaxThreads  int            `json:"max_threads"`
	Threads     int            `json:"threads"`
	Gear        []string       `json:"gear"`
	WeavesKnown []string       `json:"weaves_known"`
	Notes       string         `json:"notes,omitempty"`
}

// Roster is the persisted party of a campaign.
type Roster struct {
	Characters []Character `json:"characters"`
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{Characters: []Character{}}
}

// Get returns the character with the given id.
func (r *Roster) Get(id string) (Character, bool) {
	i := r.index(id)
	if i < 0 {
		return Character{}, false
	}
	return r.Characters[i], true
}

// Add assigns the character the next free id and appends it.
func (r *Roster) Add(ch Character) Character {
	ch.ID = r.nextID()
	r.Characters = append(r.Characters, ch)
	return ch
}

// Replace swaps in ch for the character with the same id.
func (r *Roster) Replace(ch Character) bool {
	i := r.index(ch.ID)
	if i < 0 {
		return false
	}
	r.Characters[i] = ch
	return true
}

// Remove deletes a character. Returns false if it wasn't on the roster.
func (r *Roster) Remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.Characters = slices.Delete(r.Characters, i, i+1)
	return true
}

func (r *Roster) index(id string) int {
	return slices.IndexFunc(r.Characters, func(c Character) bool { return c.ID == id })
}

// nextID numbers characters char_001, char_002, ... and never reuses the
// number of a removed character still below the highest in use.
func (r *Roster) nextID() string {
	highest := 0
	for _, c := range r.Characters {
		n, err := strconv.Atoi(strings.TrimPrefix(c.ID, idPrefix))
		if err == nil && strings.HasPrefix(c.ID, idPrefix) && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", idPrefix, highest+1)
}

// Clone returns a deep copy.
func (r *Roster) Clone() *Roster {
	out := &Roster{Characters: make([]Character, len(r.Characters))}
	for i, c := range r.Characters {
		out.Characters[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy.
func (c Character) Clone() Character {
	c.Stats = maps.Clone(c.Stats)
	c.Gear = slices.Clone(c.Gear)
	c.WeavesKnown = slices.Clone(c.WeavesKnown)
	return c
}

// Update changes part of a character. Nil fields are left alone and stats
// are merged into the existing ones.
type Update struct {
	Name        *string        `json:"name,omitempty"`
	Species     *string        `json:"species,omitempty"`
	Level       *int           `json:"level,omitempty"`
	XP          *int           `json:"xp,omitempty"`
	Stats       map[string]int `json:"stats,omitempty"`
	MaxHearts   *int           `json:"max_hearts,omitempty"`
	Hearts      *int           `json:"hearts,omitempty"`
	MaxThreads  *int           `json:"max_threads,omitempty"`
	Threads     *int           `json:"threads,omitempty"`
	Gear        []string       `json:"gear,omitempty"`
	WeavesKnown []string       `json:"weaves_known,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
}

// Apply returns a copy of c with u applied.
func (c Character) Apply(u Update) Character {
	out := c.Clone()
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Species != nil {
		out.Species = *u.Species
	}
	if u.Notes != nil {
		out.Notes = *u.Notes
	}
	set(&out.Level, u.Level)
	set(&out.XP, u.XP)
	set(&out.MaxHearts, u.MaxHearts)
	set(&out.Hearts, u.Hearts)
	set(&out.MaxThreads, u.MaxThreads)
	set(&out.Threads, u.Threads)
	if out.Stats == nil {
		out.Stats = map[string]int{}
	}
	for name, value := range u.Stats {
		maps.DeleteFunc(out.Stats, func(k string, _ int) bool { return strings.EqualFold(k, name) })
		out.Stats[name] = value
	}
	if u.Gear != nil {
		out.Gear = slices.Clone(u.Gear)
	}
	if u.WeavesKnown != nil {
		out.WeavesKnown = slices.Clone(u.WeavesKnown)
	}
	return out
}

// ApplyDefaults fills what a new character left unset. New characters
// start at full hearts and threads.
func (c *Character) ApplyDefaults() {
	if c.Level == 0 {
		c.Level = DefaultLevel
	}
	if c.MaxHearts == 0 {
		c.MaxHearts = DefaultMaxHearts
	}
	if c.Hearts == 0 {
		c.Hearts = c.MaxHearts
	}
	if c.MaxThreads == 0 {
		c.MaxThreads = DefaultMaxThreads
	}
	if c.Threads == 0 {
		c.Threads = c.MaxThreads
	}
	if c.Stats == nil {
		c.Stats = map[string]int{}
	}
	if c.Gear == nil {
		c.Gear = []string{}
	}
	if c.WeavesKnown == nil {
		c.WeavesKnown = []string{}
	}
}

// Validate checks the character against a template: playable species,
// known stat names within the per-stat bounds, and hearts and threads
// within their maximums. Stat names are rewritten to the template's
// spelling.
func (c *Character) Validate(t *system.Template) error {
	var problems []string

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		problems = append(problems, "name is required")
	}
	if c.Level < 1 {
		problems = append(problems, fmt.Sprintf("level %d must be at least 1", c.Level))
	}
	if c.XP < 0 {
		problems = append(problems, "xp cannot be negative")
	}
	if c.MaxHearts < 1 {
		problems = append(problems, fmt.Sprintf("max_hearts %d must be at least 1", c.MaxHearts))
	}
	if c.Hearts < 0 || c.Hearts > c.MaxHearts {
		problems = append(problems, fmt.Sprintf("hearts %d must be between 0 and %d", c.Hearts, c.MaxHearts))
	}
	if c.MaxThreads < 0 {
		problems = append(problems, "max_threads cannot be negative")
	}
	if c.Threads < 0 || c.Threads > c.MaxThreads {
		problems = append(problems, fmt.Sprintf("threads %d must be between 0 and %d", c.Threads, c.MaxThreads))
	}

	if t != nil {
		if len(t.Species) > 0 && !t.HasSpecies(c.Species) {
			problems = append(problems, fmt.Sprintf("species %q is not playable in %s", c.Species, t.GameName))
		}
		stats := make(map[string]int, len(c.Stats))
		for _, name := range slices.Sorted(maps.Keys(c.Stats)) {
			value := c.Stats[name]
			canonical, ok := t.StatName(name)
			if !ok {
				problems = append(problems, fmt.Sprintf("unknown stat %q", name))
				continue
			}
			if value < t.Stats.MinPerStat || (t.Stats.MaxPerStat > 0 && value > t.Stats.MaxPerStat) {
				problems = append(problems, fmt.Sprintf("stat %s %d must be between %d and %d", canonical, value, t.Stats.MinPerStat, t.Stats.MaxPerStat))
			}
			stats[canonical] = value
		}
		c.Stats = stats
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCharacter, strings.Join(problems, "; "))
	}
	return nil
}

// Actor builds the character's stat block. Stats become actor attributes
// under lower-cased names and max hearts become hit points.
func (c Character) Actor() (*d20.Actor, error) {
	attrs := make(map[string]int, len(c.Stats))
	for name, value := range c.Stats {
		attrs[strings.ToLower(name)] = value
	}

	actor, err := d20.NewActor(c.ID).
		WithHP(c.MaxHearts).
		WithAC(baseAC).
		WithAttributes(attrs).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build stat block for %s: %w", c.ID, err)
	}

	if c.Hearts != c.MaxHearts && c.Hearts > 0 {
		if err := actor.SetHP(c.Hearts); err != nil {
			return nil, fmt.Errorf("failed to set hearts for %s: %w", c.ID, err)
		}
	}
	return actor, nil
}

// StatModifier returns the character's value for a stat, read from its
// stat block. Stats the character doesn't have count as zero.
func (c Character) StatModifier(stat string) (int, error) {
	actor, err := c.Actor()
	if err != nil {
		return 0, err
	}
	value, ok := actor.Attribute(strings.ToLower(strings.TrimSpace(stat)))
	if !ok {
		return 0, nil
	}
	return value, nil
}
