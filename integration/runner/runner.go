package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/campaign-engine/internal/handlers"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes playthrough cases against a running campaign-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	ContentOverride   string // If set, replaces the content file of every case
	KeepCampaigns     bool   // Skip deleting campaigns after each run
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           10 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML (or JSON) file. A relative
// content path is resolved against the case file's directory.
func LoadTestSuite(filename string) (TestSuite, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if suite.Content != "" && !filepath.IsAbs(suite.Content) {
		suite.Content = filepath.Join(filepath.Dir(filename), suite.Content)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite creates a campaign, plays every step against it and deletes it.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	content, contentType, err := r.loadContent(suite)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, result.Error
	}

	campaignID, err := CreateCampaign(ctx, r.Client, r.BaseURL, content, contentType)
	if err != nil {
		result.Error = fmt.Errorf("failed to create campaign: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.CampaignID = campaignID

	if !r.KeepCampaigns {
		defer func() {
			if err := DeleteCampaign(context.WithoutCancel(ctx), r.Client, r.BaseURL, campaignID); err != nil {
				r.Logger("    Warning: failed to delete campaign %s: %v", campaignID, err)
			}
		}()
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, campaignID, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// loadContent returns the campaign document to seed the run with.
func (r *Runner) loadContent(suite TestSuite) ([]byte, string, error) {
	path := suite.Content
	if r.ContentOverride != "" {
		path = r.ContentOverride
	}
	if path == "" {
		return campaign.ExampleYAML(), "application/yaml", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read campaign content %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return data, "application/yaml", nil
	default:
		return data, "application/json", nil
	}
}

// runStep executes a single step with its own deadline and checks expectations.
func (r *Runner) runStep(ctx context.Context, campaignID string, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
		IsReset:  step.Action == ActionReset,
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	status, body, err := r.perform(ctx, campaignID, step)
	result.Status = status
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	expected := http.StatusOK
	if step.Expectations.Status != nil {
		expected = *step.Expectations.Status
	}
	if status != expected {
		result.Error = fmt.Errorf("expected status %d, got %d: %s", expected, status, strings.TrimSpace(string(body)))
		result.Duration = time.Since(start)
		return result
	}

	if err := r.checkExpectations(ctx, campaignID, step.Expectations, body); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// perform sends the request for a step's action.
func (r *Runner) perform(ctx context.Context, campaignID string, step TestStep) (int, []byte, error) {
	base := r.BaseURL + "/v1/campaigns/" + campaignID

	switch step.Action {
	case ActionCheck:
		return http.StatusOK, nil, nil

	case ActionHitBeat:
		return postJSON(ctx, r.Client, http.MethodPost, base+"/hit-beat", engine.HitRequest{
			BeatID:       step.BeatID,
			FactsLearned: step.FactsLearned,
			NPCsMet:      step.NPCsMet,
		})

	case ActionStartEpisode:
		return postJSON(ctx, r.Client, http.MethodPost, base+"/episodes/start", state.Episode{
			Description: step.Episode,
			BeatID:      step.BeatID,
			Location:    step.Location,
		})

	case ActionCloseEpisode:
		return postJSON(ctx, r.Client, http.MethodPost, base+"/episodes/close", nil)

	case ActionUpdateNPC:
		update := engine.NPCUpdate{Met: step.Met, RevealSecret: step.RevealSecret}
		if step.Disposition != "" {
			d := state.Disposition(step.Disposition)
			update.Disposition = &d
		}
		return postJSON(ctx, r.Client, http.MethodPatch, base+"/npcs/"+url.PathEscape(step.NPC), update)

	case ActionVisitLocation:
		return postJSON(ctx, r.Client, http.MethodPost, base+"/locations/visit", handlers.VisitRequest{Name: step.Location})

	case ActionLearnFacts:
		return postJSON(ctx, r.Client, http.MethodPost, base+"/facts", handlers.FactsRequest{Facts: step.FactsLearned})

	case ActionReset:
		return postJSON(ctx, r.Client, http.MethodPost, base+"/reset", nil)
	}

	return 0, nil, fmt.Errorf("unknown step action %q", step.Action)
}

// checkExpectations compares the campaign after a step with what the step
// expects. State and availability are only fetched when something needs them.
func (r *Runner) checkExpectations(ctx context.Context, campaignID string, exp Expectations, body []byte) error {
	if exp.CampaignComplete != nil {
		var resp struct {
			CampaignComplete *bool `json:"campaign_complete"`
		}
		if err := json.Unmarshal(body, &resp); err != nil || resp.CampaignComplete == nil {
			return fmt.Errorf("response carries no campaign_complete field")
		}
		if *resp.CampaignComplete != *exp.CampaignComplete {
			return fmt.Errorf("expected campaign_complete to be %t, got %t", *exp.CampaignComplete, *resp.CampaignComplete)
		}
	}

	if exp.AvailableBeats != nil {
		ab, err := GetAvailableBeats(ctx, r.Client, r.BaseURL, campaignID)
		if err != nil {
			return fmt.Errorf("failed to get available beats: %w", err)
		}
		ids := make([]string, 0, len(ab.Beats))
		for _, b := range ab.Beats {
			ids = append(ids, b.ID)
		}
		if !slices.Equal(ids, exp.AvailableBeats) {
			return fmt.Errorf("expected available beats %v, got %v", exp.AvailableBeats, ids)
		}
	}

	if !exp.needsState() {
		return nil
	}
	st, err := GetState(ctx, r.Client, r.BaseURL, campaignID)
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	if exp.BeatsHit != nil {
		if err := sameSet("beats_hit", exp.BeatsHit, st.BeatsHit); err != nil {
			return err
		}
	}
	if exp.BeatsExpired != nil {
		if err := sameSet("beats_expired", exp.BeatsExpired, st.BeatsExpired); err != nil {
			return err
		}
	}
	if exp.LocationsVisited != nil {
		if err := sameSet("locations_visited", exp.LocationsVisited, st.LocationsVisited); err != nil {
			return err
		}
	}

	if exp.EpisodesCompleted != nil && st.EpisodesCompleted != *exp.EpisodesCompleted {
		return fmt.Errorf("expected episodes_completed to be %d, got %d", *exp.EpisodesCompleted, st.EpisodesCompleted)
	}
	if exp.ThreatStage != nil && st.ThreatStage != *exp.ThreatStage {
		return fmt.Errorf("expected threat_stage to be %d, got %d", *exp.ThreatStage, st.ThreatStage)
	}
	if exp.EpisodeActive != nil && (st.CurrentEpisode != nil) != *exp.EpisodeActive {
		return fmt.Errorf("expected episode_active to be %t, got %t", *exp.EpisodeActive, st.CurrentEpisode != nil)
	}

	for _, fact := range exp.FactsInclude {
		if !slices.Contains(st.FactsKnown, fact) {
			return fmt.Errorf("expected facts_known to contain '%s'. Actual: %v", fact, st.FactsKnown)
		}
	}

	for name, want := range exp.NPCs {
		npc, ok := st.NPCs[campaign.NPCKey(name)]
		if !ok {
			return fmt.Errorf("expected NPC %s to exist, but it doesn't", name)
		}
		if want.Met != nil && npc.Met != *want.Met {
			return fmt.Errorf("expected NPC %s met to be %t, got %t", name, *want.Met, npc.Met)
		}
		if want.Disposition != "" && string(npc.Disposition) != want.Disposition {
			return fmt.Errorf("expected NPC %s to be %s, got %s", name, want.Disposition, npc.Disposition)
		}
	}

	return nil
}

func (e Expectations) needsState() bool {
	return e.BeatsHit != nil || e.BeatsExpired != nil || e.LocationsVisited != nil ||
		e.EpisodesCompleted != nil || e.ThreatStage != nil || e.EpisodeActive != nil ||
		len(e.FactsInclude) > 0 || len(e.NPCs) > 0
}

// sameSet compares two lists ignoring order.
func sameSet(field string, want, got []string) error {
	for _, w := range want {
		if !slices.Contains(got, w) {
			return fmt.Errorf("expected %s to contain '%s', but it's missing. Actual: %v", field, w, got)
		}
	}
	for _, g := range got {
		if !slices.Contains(want, g) {
			return fmt.Errorf("%s contains unexpected '%s'. Expected: %v, Actual: %v", field, g, want, got)
		}
	}
	return nil
}
