package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/campaign-engine/internal/logger"
	"github.com/jwebster45206/campaign-engine/internal/metrics"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/dmcontext"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// ErrCampaignNotFound is returned when a campaign has no authored content.
var ErrCampaignNotFound = errors.New("campaign not found")

// Journal records progression events. Implementations must be safe for
// concurrent use.
type Journal interface {
	Append(ctx context.Context, campaignID string, events ...journal.Event) error
	Recent(ctx context.Context, campaignID string, limit int) ([]journal.Event, error)
	Clear(ctx context.Context, campaignID string) error
}

// CreateResult is returned when content is stored.
type CreateResult struct {
	CampaignID string   `json:"campaign_id"`
	Warnings   []string `json:"warnings"`
}

// AvailableBeats is the availability view of a campaign.
type AvailableBeats struct {
	HasContent        bool                    `json:"has_content"`
	Beats             []dmcontext.BeatSummary `json:"beats"`
	EpisodesCompleted int                     `json:"episodes_completed"`
	ThreatStage       int                     `json:"threat_stage"`
}

// CampaignSummary is the listing view of a campaign.
type CampaignSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Premise           string `json:"premise"`
	EpisodesCompleted int    `json:"episodes_completed"`
	ThreatStage       int    `json:"threat_stage"`
	CampaignComplete  bool   `json:"campaign_complete"`
	IsDraft           bool   `json:"is_draft"` // Only a draft exists; nothing is published yet
}

// CampaignService loads, mutates and persists campaigns. Mutations of one
// campaign are serialized; reads don't lock.
type CampaignService struct {
	storage  storage.Storage
	template *system.Template
	journal  Journal // nil disables the journal
	logger   *slog.Logger
	locks    *keyedMutex
}

func NewCampaignService(store storage.Storage, tmpl *system.Template, j Journal, log *slog.Logger) *CampaignService {
	return &CampaignService{
		storage:  store,
		template: tmpl,
		journal:  j,
		logger:   log,
		locks:    newKeyedMutex(),
	}
}

// warnings returns authoring notes for c under tmpl.
func warnings(c *campaign.Content, tmpl *system.Template) []string {
	var vocab campaign.Vocabulary
	if tmpl != nil {
		vocab = tmpl.Vocabulary()
	}
	out := campaign.Warnings(c, vocab)
	if out == nil {
		out = []string{}
	}
	return out
}

// Create stores new content under a generated id with fresh state. The
// campaign is pinned to the named system template, or to the service's
// default when templateID is empty.
func (s *CampaignService) Create(ctx context.Context, c *campaign.Content, templateID string) (*CreateResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tmpl := s.template
	if templateID != "" {
		if !system.Exists(templateID) {
			return nil, fmt.Errorf("template %q: %w", templateID, engine.ErrInvalidRequest)
		}
		var err error
		if tmpl, err = system.Get(templateID); err != nil {
			return nil, err
		}
	}

	id := uuid.New().String()
	log := logger.WithCampaign(s.logger, id)

	if err := s.storage.SaveContent(ctx, id, c); err != nil {
		return nil, err
	}
	if err := s.storage.SaveState(ctx, id, state.NewFromContent(c)); err != nil {
		return nil, err
	}
	if tmpl != nil {
		if err := s.storage.SaveSystem(ctx, id, tmpl); err != nil {
			return nil, err
		}
	}

	log.Info("Campaign created", "name", c.Name, "beats", len(c.Beats), "template", templateID)
	s.record(ctx, id, journal.Event{Kind: journal.KindContentUpdated, Detail: "created"})
	return &CreateResult{CampaignID: id, Warnings: warnings(c, tmpl)}, nil
}

// PutContent validates and stores content for id. State is initialized if
// absent, otherwise new NPCs are joined into it and the threat stage is
// clamped to the new threat track.
//
// State is saved before content: a state that already matches the new
// content stays valid against the old one, while new content next to
// unjoined state would not. If the content save fails the previous state
// is put back.
func (s *CampaignService) PutContent(ctx context.Context, id string, c *campaign.Content) (*CreateResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	log := logger.WithCampaign(s.logger, id)

	prev, err := s.storage.LoadState(ctx, id)
	if err != nil {
		return nil, err
	}

	var st *state.CampaignState
	if prev == nil {
		st = state.NewFromContent(c)
	} else {
		st = prev.Clone()
		if added := st.JoinContent(c); added > 0 {
			log.Debug("Joined new NPCs into state", "added", added)
		}
		if from := st.ThreatStage; st.ClampThreat(c) {
			log.Info("Clamped threat stage to new threat track", "from", from, "to", st.ThreatStage)
		}
	}

	if err := s.storage.SaveState(ctx, id, st); err != nil {
		return nil, err
	}
	if err := s.storage.SaveContent(ctx, id, c); err != nil {
		if prev != nil {
			if rerr := s.storage.SaveState(ctx, id, prev); rerr != nil {
				logger.WithError(log, rerr).Error("Failed to restore state after content save failed")
			}
		}
		return nil, err
	}

	tmpl, err := s.system(ctx, id)
	if err != nil {
		logger.WithError(log, err).Warn("Falling back to default system for warnings")
		tmpl = s.template
	}

	log.Info("Campaign content updated", "name", c.Name)
	s.record(ctx, id, journal.Event{
		Kind:              journal.KindContentUpdated,
		ThreatStage:       st.ThreatStage,
		EpisodesCompleted: st.EpisodesCompleted,
	})
	return &CreateResult{CampaignID: id, Warnings: warnings(c, tmpl)}, nil
}

// Content returns a campaign's authored content.
func (s *CampaignService) Content(ctx context.Context, id string) (*campaign.Content, error) {
	c, err := s.storage.LoadContent(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %q: %w", id, ErrCampaignNotFound)
	}
	return c, nil
}

// State returns a campaign's play state, or fresh state if none is stored.
func (s *CampaignService) State(ctx context.Context, id string) (*state.CampaignState, error) {
	_, st, err := s.load(ctx, id)
	return st, err
}

// Reset discards play progress and starts the campaign over.
func (s *CampaignService) Reset(ctx context.Context, id string) (*state.CampaignState, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	c, err := s.Content(ctx, id)
	if err != nil {
		return nil, err
	}
	st := state.NewFromContent(c)
	if err := s.storage.SaveState(ctx, id, st); err != nil {
		return nil, err
	}

	logger.WithCampaign(s.logger, id).Info("Campaign state reset")
	s.record(ctx, id, journal.Event{Kind: journal.KindStateReset})
	return st, nil
}

// AvailableBeats reports the beats that can be played next. A campaign
// without content reports HasContent false rather than an error.
func (s *CampaignService) AvailableBeats(ctx context.Context, id string) (*AvailableBeats, error) {
	c, st, err := s.load(ctx, id)
	if errors.Is(err, ErrCampaignNotFound) {
		return &AvailableBeats{Beats: []dmcontext.BeatSummary{}}, nil
	}
	if err != nil {
		return nil, err
	}

	view := &AvailableBeats{
		HasContent:        true,
		Beats:             []dmcontext.BeatSummary{},
		EpisodesCompleted: st.EpisodesCompleted,
		ThreatStage:       st.ThreatStage,
	}
	for _, b := range engine.AvailableBeats(c, st) {
		view.Beats = append(view.Beats, dmcontext.BeatSummary{ID: b.ID, Description: b.Description, IsFinale: b.IsFinale})
	}
	return view, nil
}

// HitBeat records a beat as hit.
func (s *CampaignService) HitBeat(ctx context.Context, id string, req engine.HitRequest) (*engine.Outcome, error) {
	var out *engine.Outcome
	var wasComplete bool
	err := s.mutate(ctx, id, func(c *campaign.Content, st *state.CampaignState) error {
		wasComplete = engine.CampaignComplete(c, st)
		o, err := engine.HitBeat(c, st, req)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BeatsHitTotal.Inc()
	if out.CampaignComplete && !wasComplete {
		recordCompletion(out.Completion)
	}
	logger.WithCampaign(s.logger, id).Info("Beat hit",
		"beat_id", req.BeatID,
		"new_facts", len(out.NewFacts),
		"campaign_complete", out.CampaignComplete)
	s.record(ctx, id, journal.Event{
		Kind:              journal.KindBeatHit,
		BeatID:            req.BeatID,
		ThreatStage:       out.ThreatStage,
		EpisodesCompleted: out.EpisodesCompleted,
	})
	return out, nil
}

// StartEpisode sets the episode being played.
func (s *CampaignService) StartEpisode(ctx context.Context, id string, ep state.Episode) (*state.Episode, error) {
	ep.Description = strings.TrimSpace(ep.Description)
	if ep.Description == "" {
		return nil, fmt.Errorf("episode description is required: %w", engine.ErrInvalidRequest)
	}
	if ep.StartedAt == nil {
		now := time.Now().UTC()
		ep.StartedAt = &now
	}

	err := s.mutate(ctx, id, func(c *campaign.Content, st *state.CampaignState) error {
		if ep.BeatID != "" {
			if _, ok := c.Beat(ep.BeatID); !ok {
				return fmt.Errorf("beat %q: %w", ep.BeatID, engine.ErrNotFound)
			}
		}
		engine.StartEpisode(st, ep)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithCampaign(s.logger, id).Info("Episode started", "beat_id", ep.BeatID)
	return &ep, nil
}

// CloseEpisode ends the current episode.
func (s *CampaignService) CloseEpisode(ctx context.Context, id string) (*engine.EpisodeReport, error) {
	var report engine.EpisodeReport
	var wasComplete bool
	err := s.mutate(ctx, id, func(c *campaign.Content, st *state.CampaignState) error {
		wasComplete = engine.CampaignComplete(c, st)
		report = engine.CloseEpisode(c, st)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EpisodesClosedTotal.Inc()
	metrics.BeatsExpiredTotal.Add(float64(len(report.NewlyExpired)))
	if report.ThreatAdvanced {
		metrics.ThreatAdvancesTotal.Inc()
	}
	if report.CampaignComplete && !wasComplete {
		recordCompletion(report.Completion)
	}

	logger.WithCampaign(s.logger, id).Info("Episode closed",
		"episodes_completed", report.EpisodesCompleted,
		"threat_advanced", report.ThreatAdvanced,
		"threat_stage", report.ThreatStage,
		"newly_expired", report.NewlyExpired)

	events := []journal.Event{{
		Kind:              journal.KindEpisodeClosed,
		ThreatStage:       report.ThreatStage,
		EpisodesCompleted: report.EpisodesCompleted,
	}}
	if report.ThreatAdvanced {
		events = append(events, journal.Event{
			Kind:              journal.KindThreatAdvanced,
			ThreatStage:       report.ThreatStage,
			EpisodesCompleted: report.EpisodesCompleted,
		})
	}
	for _, beatID := range report.NewlyExpired {
		events = append(events, journal.Event{
			Kind:              journal.KindBeatExpired,
			BeatID:            beatID,
			ThreatStage:       report.ThreatStage,
			EpisodesCompleted: report.EpisodesCompleted,
		})
	}
	s.record(ctx, id, events...)
	return &report, nil
}

// UpdateNPC changes one NPC's runtime state.
func (s *CampaignService) UpdateNPC(ctx context.Context, id, name string, u engine.NPCUpdate) (*state.NPCState, error) {
	var ns state.NPCState
	err := s.mutate(ctx, id, func(c *campaign.Content, st *state.CampaignState) error {
		var err error
		ns, err = engine.UpdateNPC(c, st, name, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.WithCampaign(s.logger, id).Debug("NPC updated", "npc", name, "met", ns.Met, "disposition", ns.Disposition)
	return &ns, nil
}

// VisitLocation records a location as visited.
func (s *CampaignService) VisitLocation(ctx context.Context, id, name string) (bool, error) {
	var added bool
	err := s.mutate(ctx, id, func(c *campaign.Content, st *state.CampaignState) error {
		var err error
		added, err = engine.VisitLocation(c, st, name)
		return err
	})
	return added, err
}

// LearnFacts merges facts learned outside a beat.
func (s *CampaignService) LearnFacts(ctx context.Context, id string, facts []string) (int, error) {
	var added int
	err := s.mutate(ctx, id, func(c *campaign.Content, st *state.CampaignState) error {
		added = engine.LearnFacts(st, facts)
		return nil
	})
	return added, err
}

// Context builds the DM context snapshot. The current episode is passed
// through when one is set.
func (s *CampaignService) Context(ctx context.Context, id string) (*dmcontext.Snapshot, error) {
	c, st, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	var episode any
	if st.CurrentEpisode != nil {
		episode = st.CurrentEpisode
	}
	return dmcontext.Build(c, st, episode), nil
}

// Delete removes every document of a campaign, and its journal. Campaigns
// that exist only as a draft can be deleted too.
func (s *CampaignService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.Content(ctx, id); err != nil {
		if !errors.Is(err, ErrCampaignNotFound) {
			return err
		}
		draft, derr := s.storage.LoadDraft(ctx, id)
		if derr != nil {
			return derr
		}
		if draft == nil {
			return err
		}
	}
	if err := s.storage.DeleteCampaign(ctx, id); err != nil {
		return err
	}
	if s.journal != nil {
		if err := s.journal.Clear(ctx, id); err != nil {
			logger.WithError(logger.WithCampaign(s.logger, id), err).Warn("Failed to clear journal")
		}
	}
	logger.WithCampaign(s.logger, id).Info("Campaign deleted")
	return nil
}

// List summarizes every stored campaign, including campaigns that exist
// only as a draft. Campaigns that fail to load are skipped and logged.
func (s *CampaignService) List(ctx context.Context) ([]CampaignSummary, error) {
	ids, err := s.storage.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CampaignSummary, 0, len(ids))
	for _, id := range ids {
		c, st, err := s.load(ctx, id)
		if errors.Is(err, ErrCampaignNotFound) {
			summary, ok, derr := s.draftSummary(ctx, id)
			if ok {
				out = append(out, summary)
				continue
			}
			if derr != nil {
				err = derr
			}
		}
		if err != nil {
			logger.WithError(logger.WithCampaign(s.logger, id), err).Warn("Skipping campaign in listing")
			continue
		}
		out = append(out, CampaignSummary{
			ID:                id,
			Name:              c.Name,
			Premise:           c.Premise,
			EpisodesCompleted: st.EpisodesCompleted,
			ThreatStage:       st.ThreatStage,
			CampaignComplete:  engine.CampaignComplete(c, st),
		})
	}
	return out, nil
}

// Journal returns recent progression events, newest first.
func (s *CampaignService) Journal(ctx context.Context, id string, limit int) ([]journal.Event, error) {
	if _, err := s.Content(ctx, id); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []journal.Event{}, nil
	}
	return s.journal.Recent(ctx, id, limit)
}

// load reads content and state. Missing state is replaced by fresh state
// and a threat stage past the content's track is clamped.
func (s *CampaignService) load(ctx context.Context, id string) (*campaign.Content, *state.CampaignState, error) {
	c, err := s.Content(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.storage.LoadState(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		st = state.NewFromContent(c)
	}
	if from := st.ThreatStage; st.ClampThreat(c) {
		logger.WithCampaign(s.logger, id).Warn("Stored threat stage is past the threat track", "from", from, "to", st.ThreatStage)
	}
	return c, st, nil
}

// mutate runs fn on a copy of the campaign's state under the campaign's
// lock and saves the result. If fn or the save fails the stored state is
// left as it was.
func (s *CampaignService) mutate(ctx context.Context, id string, fn func(*campaign.Content, *state.CampaignState) error) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	c, st, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	work := st.Clone()
	if err := fn(c, work); err != nil {
		return err
	}
	return s.storage.SaveState(ctx, id, work)
}

// record appends to the journal. Failures are logged, never returned.
func (s *CampaignService) record(ctx context.Context, id string, events ...journal.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(ctx, id, events...); err != nil {
		metrics.JournalErrorsTotal.Inc()
		logger.WithError(logger.WithCampaign(s.logger, id), err).Warn("Failed to append journal events")
	}
}

func recordCompletion(c engine.Completion) {
	if c.FinaleHit {
		metrics.CampaignsCompletedTotal.WithLabelValues("finale").Inc()
	}
	if c.AllBeatsHit {
		metrics.CampaignsCompletedTotal.WithLabelValues("all_beats").Inc()
	}
	if c.ThreatMaxed {
		metrics.CampaignsCompletedTotal.WithLabelValues("threat_maxed").Inc()
	}
}
