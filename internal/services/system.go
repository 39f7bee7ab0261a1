package services

import (
	"context"
	"fmt"

	"github.com/jwebster45206/campaign-engine/internal/logger"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// System returns the game system a campaign is played under.
func (s *CampaignService) System(ctx context.Context, id string) (*system.Template, error) {
	if _, err := s.Content(ctx, id); err != nil {
		return nil, err
	}
	tmpl, err := s.system(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("campaign %q has no game system and no default is configured", id)
	}
	return tmpl, nil
}

// PutSystem replaces a campaign's game system.
func (s *CampaignService) PutSystem(ctx context.Context, id string, tmpl *system.Template) (*system.Template, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("game system is required: %w", engine.ErrInvalidRequest)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game system: %v: %w", err, engine.ErrInvalidRequest)
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.Content(ctx, id); err != nil {
		return nil, err
	}
	if err := s.storage.SaveSystem(ctx, id, tmpl); err != nil {
		return nil, err
	}

	logger.WithCampaign(s.logger, id).Info("Campaign system updated", "template", tmpl.ID, "game", tmpl.GameName)
	s.record(ctx, id, journal.Event{Kind: journal.KindContentUpdated, Detail: "system: " + tmpl.ID})
	return tmpl, nil
}

// system loads the campaign's stored template. Campaigns created before
// systems were stored per campaign fall back to the service default.
func (s *CampaignService) system(ctx context.Context, id string) (*system.Template, error) {
	tmpl, err := s.storage.LoadSystem(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return s.template, nil
	}
	return tmpl, nil
}
