// Package system holds the immutable game-system templates a campaign is
// played under: playable species, stats, dice thresholds, location tags and
// the DM's voice. Templates are embedded and parsed once.
package system

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultID is the template used when none is configured.
const DefaultID = "default"

//go:embed templates/*.yaml
var templateFS embed.FS

type Species struct {
	Name      string `json:"name" yaml:"name"`
	TraitName string `json:"trait_name" yaml:"trait_name"`
	TraitDesc string `json:"trait_desc" yaml:"trait_desc"`
}

type Stats struct {
	Names        []string `json:"names" yaml:"names"`
	StartingPool int      `json:"starting_pool" yaml:"starting_pool"` // Points distributed at character creation
	MinPerStat   int      `json:"min_per_stat" yaml:"min_per_stat"`
	MaxPerStat   int      `json:"max_per_stat" yaml:"max_per_stat"`
}

// LocationTag is an encounter tag authors may put in a location's contains list.
type LocationTag struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label,omitempty"`
}

// Template is a game-system definition.
type Template struct {
	ID            string        `json:"id" yaml:"id"`
	GameName      string        `json:"game_name" yaml:"game_name"`
	Description   string        `json:"description" yaml:"description"`
	PlayerContext string        `json:"player_context" yaml:"player_context"` // Who the players are, for the DM prompt
	Species       []Species     `json:"species" yaml:"species"`
	Stats         Stats         `json:"stats" yaml:"stats"`
	Mechanics     Mechanics     `json:"mechanics" yaml:"mechanics"`
	LocationTags  []LocationTag `json:"location_tags" yaml:"location_tags"`
	Lore          string        `json:"lore" yaml:"lore"`
	DMTone        string        `json:"dm_tone" yaml:"dm_tone"`
}

// Summary is the listing view of a template.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Vocabulary returns the species and location tags the template defines,
// for authoring warnings.
func (t *Template) Vocabulary() campaign.Vocabulary {
	v := campaign.Vocabulary{
		Species:      make([]string, 0, len(t.Species)),
		LocationTags: make([]string, 0, len(t.LocationTags)),
	}
	for _, s := range t.Species {
		v.Species = append(v.Species, s.Name)
	}
	for _, tag := range t.LocationTags {
		v.LocationTags = append(v.LocationTags, tag.Value)
	}
	return v
}

// HasSpecies reports whether name is a playable species, ignoring case.
func (t *Template) HasSpecies(name string) bool {
	name = strings.TrimSpace(name)
	return slices.ContainsFunc(t.Species, func(s Species) bool { return strings.EqualFold(s.Name, name) })
}

// StatName returns the template's spelling of a stat name, ignoring case.
func (t *Template) StatName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	i := slices.IndexFunc(t.Stats.Names, func(s string) bool { return strings.EqualFold(s, name) })
	if i < 0 {
		return "", false
	}
	return t.Stats.Names[i], true
}

// Validate checks a template's own consistency.
func (t *Template) Validate() error {
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(t.GameName) == "" {
		errs = append(errs, errors.New("game_name is required"))
	}
	if err := t.Mechanics.Validate(); err != nil {
		errs = append(errs, err)
	}
	if t.Stats.MaxPerStat > 0 && t.Stats.MinPerStat > t.Stats.MaxPerStat {
		errs = append(errs, fmt.Errorf("min_per_stat %d is above max_per_stat %d", t.Stats.MinPerStat, t.Stats.MaxPerStat))
	}
	seen := make(map[string]bool, len(t.Stats.Names))
	for _, name := range t.Stats.Names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			errs = append(errs, errors.New("stat names cannot be blank"))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate stat %q", name))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (t *Template) Clone() *Template {
	out := *t
	out.Species = slices.Clone(t.Species)
	out.Stats.Names = slices.Clone(t.Stats.Names)
	out.LocationTags = slices.Clone(t.LocationTags)
	return &out
}

var (
	loadOnce  sync.Once
	templates map[string]*Template
	loadErr   error
)

func load() (map[string]*Template, error) {
	loadOnce.Do(func() {
		templates, loadErr = parseAll()
	})
	return templates, loadErr
}

func parseAll() (map[string]*Template, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	title := cases.Title(language.English)
	out := make(map[string]*Template, len(entries))
	for _, e := range entries {
		data, err := templateFS.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", e.Name(), err)
		}

		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", e.Name(), err)
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		for i, tag := range t.LocationTags {
			if tag.Label == "" {
				t.LocationTags[i].Label = title.String(tag.Value)
			}
		}
		out[t.ID] = &t
	}
	return out, nil
}

// Get returns a copy of the template with the given id.
func Get(id string) (*Template, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	t, ok := all[id]
	if !ok {
		return nil, fmt.Errorf("template %q not found", id)
	}
	return t.Clone(), nil
}

// Exists reports whether a template id is known.
func Exists(id string) bool {
	all, err := load()
	if err != nil {
		return false
	}
	_, ok := all[id]
	return ok
}

// List returns summaries of every template, sorted by id.
func List() ([]Summary, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for _, t := range all {
		out = append(out, Summary{ID: t.ID, Name: t.GameName, Description: t.Description})
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
