// Package migrate rewrites persisted campaign documents from the legacy
// run-based shape into the current beat/episode shape. Migrations are pure
// functions over raw JSON and run once, at load time, before decoding.
package migrate

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Fields accepted by the current content schema, per object.
var (
	contentFields  = []string{"name", "premise", "tone", "threat", "npcs", "locations", "beats"}
	threatFields   = []string{"name", "stages", "advances_each_episode_unless_beat_hit"}
	npcFields      = []string{"name", "species", "role", "wants", "secret"}
	locationFields = []string{"name", "vibe", "contains"}
	beatFields     = []string{"id", "description", "hints", "revelation", "prerequisites", "unlocked_by", "closes_after_episodes", "is_finale"}
)

// Legacy state fields with no current equivalent.
var droppedStateFields = []string{"filler_seeds_used", "current_run_id", "current_run_type"}

// Content migrates a campaign content document. It returns the rewritten
// document and a description of each applied step. When no step applies
// the input is returned unchanged.
func Content(data []byte) ([]byte, []string, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse campaign document: %w", err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("failed to parse campaign document: not an object")
	}

	var steps []string

	if runs, ok := doc["anchor_runs"].([]any); ok {
		if _, hasBeats := doc["beats"]; !hasBeats {
			doc["beats"] = beatsFromRuns(runs)
			steps = append(steps, fmt.Sprintf("converted %d anchor runs to beats", len(runs)))
		}
	}

	if threat, ok := doc["threat"].(map[string]any); ok {
		if advanceOn, ok := threat["advance_on"]; ok {
			if _, set := threat["advances_each_episode_unless_beat_hit"]; !set {
				threat["advances_each_episode_unless_beat_hit"] = advanceOn != "manual"
				steps = append(steps, fmt.Sprintf("converted threat advance_on %q", fmt.Sprint(advanceOn)))
			}
		}
		steps = append(steps, prune("threat", threat, threatFields)...)
	}

	steps = append(steps, pruneEach("npcs", doc["npcs"], npcFields)...)
	steps = append(steps, pruneEach("locations", doc["locations"], locationFields)...)
	steps = append(steps, pruneEach("beats", doc["beats"], beatFields)...)
	steps = append(steps, prune("campaign", doc, contentFields)...)

	if len(steps) == 0 {
		return data, nil, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal migrated campaign: %w", err)
	}
	return out, steps, nil
}

// State migrates a campaign state document.
func State(data []byte) ([]byte, []string, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse state document: %w", err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("failed to parse state document: not an object")
	}

	var steps []string
	rename := func(from, to string) {
		v, ok := doc[from]
		if !ok {
			return
		}
		delete(doc, from)
		doc[to] = v
		steps = append(steps, fmt.Sprintf("renamed %s to %s", from, to))
	}
	rename("runs_completed", "episodes_completed")
	rename("anchor_runs_completed", "beats_hit")

	for _, f := range droppedStateFields {
		if _, ok := doc[f]; ok {
			delete(doc, f)
			steps = append(steps, "dropped "+f)
		}
	}

	if len(steps) == 0 {
		return data, nil, nil
	}
	if _, ok := doc["beats_expired"]; !ok {
		doc["beats_expired"] = []any{}
	}
	if _, ok := doc["current_episode"]; !ok {
		doc["current_episode"] = nil
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal migrated state: %w", err)
	}
	return out, steps, nil
}

// Draft migrates a draft content document. Old drafts wrapped the content
// as {"content": {...}, "system": {...}}; the wrapper is removed before the
// content migration runs.
func Draft(data []byte) ([]byte, []string, error) {
	var wrapper struct {
		Content map[string]any `json:"content"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("failed to parse draft document: %w", err)
	}

	var steps []string
	if _, named := wrapper.Content["name"]; named {
		unwrapped, err := json.Marshal(wrapper.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal unwrapped draft: %w", err)
		}
		data = unwrapped
		steps = append(steps, "unwrapped draft content")
	}

	out, contentSteps, err := Content(data)
	if err != nil {
		return nil, nil, err
	}
	return out, append(steps, contentSteps...), nil
}

// beatsFromRuns maps legacy anchor runs onto beats. The last run becomes
// the finale.
func beatsFromRuns(runs []any) []any {
	beats := make([]any, 0, len(runs))
	for i, r := range runs {
		run, _ := r.(map[string]any)
		if run == nil {
			run = map[string]any{}
		}

		prerequisites := []any{}
		var unlockedBy any
		trigger, _ := run["trigger"].(map[string]any)
		triggerType, _ := trigger["type"].(string)
		value := trigger["value"]
		switch triggerType {
		case "after_run":
			if s, ok := value.(string); ok && s != "" {
				prerequisites = append(prerequisites, s)
			}
		case "after_runs_count":
			if value != nil {
				unlockedBy = fmt.Sprintf("episode:%v", value)
			}
		}
		// "start" and "threat_stage" triggers have no gate equivalent.

		id, _ := run["id"].(string)
		if id == "" {
			id = fmt.Sprintf("beat_%d", i+1)
		}
		description := firstString(run, "goal", "hook")
		if description == "" {
			description = "Unknown"
		}
		revelation, ok := run["reveal"].(string)
		if !ok {
			revelation = "Unknown revelation"
		}
		hints, ok := run["must_include"].([]any)
		if !ok {
			hints = []any{}
		}

		beats = append(beats, map[string]any{
			"id":                    id,
			"description":           description,
			"hints":                 hints,
			"revelation":            revelation,
			"prerequisites":         prerequisites,
			"unlocked_by":           unlockedBy,
			"closes_after_episodes": nil,
			"is_finale":             i == len(runs)-1,
		})
	}
	return beats
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// prune deletes every key of obj not in allowed and reports what it removed.
func prune(where string, obj map[string]any, allowed []string) []string {
	var removed []string
	for k := range obj {
		if !slices.Contains(allowed, k) {
			removed = append(removed, k)
		}
	}
	slices.Sort(removed)
	steps := make([]string, 0, len(removed))
	for _, k := range removed {
		delete(obj, k)
		steps = append(steps, fmt.Sprintf("dropped %s field %s", where, k))
	}
	return steps
}

// pruneEach prunes every object in a list, reporting each dropped field
// name once.
func pruneEach(where string, list any, allowed []string) []string {
	items, ok := list.([]any)
	if !ok {
		return nil
	}
	var steps []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, step := range prune(where, obj, allowed) {
			if !slices.Contains(steps, step) {
				steps = append(steps, step)
			}
		}
	}
	return steps
}
