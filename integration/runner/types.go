package runner

import (
	"time"
)

// Step actions. Each maps to one campaign endpoint, except ActionCheck which
// only evaluates expectations.
const (
	ActionCheck         = "check"
	ActionHitBeat       = "hit_beat"
	ActionStartEpisode  = "start_episode"
	ActionCloseEpisode  = "close_episode"
	ActionUpdateNPC     = "update_npc"
	ActionVisitLocation = "visit_location"
	ActionLearnFacts    = "learn_facts"
	ActionReset         = "reset"
)

// TestSuite defines a scripted playthrough of one campaign.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name    string     `yaml:"name"`
	Content string     `yaml:"content,omitempty"` // Campaign file; the bundled example when empty
	Steps   []TestStep `yaml:"steps,omitempty"`
	Cases   []string   `yaml:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one action against the campaign and its expected outcome.
type TestStep struct {
	Name   string `yaml:"name,omitempty"`
	Action string `yaml:"action"`

	BeatID       string   `yaml:"beat_id,omitempty"`       // hit_beat, start_episode
	FactsLearned []string `yaml:"facts_learned,omitempty"` // hit_beat, learn_facts
	NPCsMet      []string `yaml:"npcs_met,omitempty"`      // hit_beat
	Episode      string   `yaml:"episode,omitempty"`       // start_episode description
	NPC          string   `yaml:"npc,omitempty"`           // update_npc
	Met          *bool    `yaml:"met,omitempty"`
	Disposition  string   `yaml:"disposition,omitempty"`
	RevealSecret bool     `yaml:"reveal_secret,omitempty"`
	Location     string   `yaml:"location,omitempty"` // visit_location, start_episode

	Expectations Expectations `yaml:"expect"`
}

// Expectations defines what to check after a step executes. Unset fields
// are not checked; an empty list is checked as empty.
type Expectations struct {
	Status *int `yaml:"status,omitempty"` // Defaults to 200

	// Read back from GET /state and /available-beats
	AvailableBeats    []string                  `yaml:"available_beats,omitempty"` // Exact, in authored order
	BeatsHit          []string                  `yaml:"beats_hit,omitempty"`       // Order independent
	BeatsExpired      []string                  `yaml:"beats_expired,omitempty"`   // Order independent
	EpisodesCompleted *int                      `yaml:"episodes_completed,omitempty"`
	ThreatStage       *int                      `yaml:"threat_stage,omitempty"`
	FactsInclude      []string                  `yaml:"facts_include,omitempty"`
	LocationsVisited  []string                  `yaml:"locations_visited,omitempty"`
	NPCs              map[string]NPCExpectation `yaml:"npcs,omitempty"` // Keyed by NPC name
	EpisodeActive     *bool                     `yaml:"episode_active,omitempty"`

	// Read from the step's own response
	CampaignComplete *bool `yaml:"campaign_complete,omitempty"`
}

type NPCExpectation struct {
	Met         *bool  `yaml:"met,omitempty"`
	Disposition string `yaml:"disposition,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	Status   int
	IsReset  bool // True for reset steps (should not count toward pass/fail metrics)
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job        TestJob
	Results    []TestResult
	Error      error
	Duration   time.Duration
	CampaignID string // Campaign created for this run
}
