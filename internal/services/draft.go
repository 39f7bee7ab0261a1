package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jwebster45206/campaign-engine/internal/logger"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
)

// Draft is unvalidated work-in-progress content. When no draft is stored
// the published content is returned instead, so editing can resume from
// either.
type Draft struct {
	HasDraft bool            `json:"has_draft"`
	Content  json.RawMessage `json:"content"` // null when the campaign has neither
}

type DraftSaved struct {
	CampaignID string `json:"campaign_id"`
	IsDraft    bool   `json:"is_draft"`
}

// draftHeader is the part of a draft shown in listings.
type draftHeader struct {
	Name    string `json:"name"`
	Premise string `json:"premise"`
}

// SaveDraft stores a draft without validating it. A campaign may exist as
// a draft only until its content is first published.
func (s *CampaignService) SaveDraft(ctx context.Context, id string, data []byte) (*DraftSaved, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.storage.SaveDraft(ctx, id, data); err != nil {
		return nil, err
	}
	logger.WithCampaign(s.logger, id).Debug("Draft saved", "bytes", len(data))
	return &DraftSaved{CampaignID: id, IsDraft: true}, nil
}

// Draft returns the stored draft, falling back to the published content.
func (s *CampaignService) Draft(ctx context.Context, id string) (*Draft, error) {
	data, err := s.storage.LoadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if data != nil {
		return &Draft{HasDraft: true, Content: data}, nil
	}

	c, err := s.Content(ctx, id)
	if errors.Is(err, ErrCampaignNotFound) {
		return &Draft{Content: json.RawMessage("null")}, nil
	}
	if err != nil {
		return nil, err
	}
	published, err := campaign.EncodeJSON(c)
	if err != nil {
		return nil, err
	}
	return &Draft{Content: published}, nil
}

// draftSummary builds the listing entry of a campaign that has a draft but
// no published content. It reports false when there is no draft either.
func (s *CampaignService) draftSummary(ctx context.Context, id string) (CampaignSummary, bool, error) {
	data, err := s.storage.LoadDraft(ctx, id)
	if err != nil || data == nil {
		return CampaignSummary{}, false, err
	}
	var h draftHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return CampaignSummary{}, false, err
	}
	return CampaignSummary{ID: id, Name: h.Name, Premise: h.Premise, IsDraft: true}, true, nil
}
