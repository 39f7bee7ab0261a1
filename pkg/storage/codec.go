package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/migrate"
	"github.com/jwebster45206/campaign-engine/pkg/roster"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// DocumentStore implements Storage on top of a BlobStore. Loaded documents
// are migrated from legacy shapes before decoding, and migrated documents
// are written back so the next load reads them directly.
type DocumentStore struct {
	blobs  BlobStore
	logger *slog.Logger
}

// Ensure DocumentStore implements Storage interface
var _ Storage = (*DocumentStore)(nil)

// NewDocumentStore wraps a BlobStore.
func NewDocumentStore(blobs BlobStore, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{blobs: blobs, logger: logger}
}

func (d *DocumentStore) Ping(ctx context.Context) error {
	return d.blobs.Ping(ctx)
}

func (d *DocumentStore) Close() error {
	return d.blobs.Close()
}

func (d *DocumentStore) LoadContent(ctx context.Context, campaignID string) (*campaign.Content, error) {
	data, err := d.blobs.Get(ctx, campaignID, ContentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign content: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	migrated, steps, err := migrate.Content(data)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate campaign content: %w", err)
	}

	c, err := campaign.DecodeJSON(migrated)
	if err != nil {
		return nil, fmt.Errorf("stored campaign %s is invalid: %w", campaignID, err)
	}

	if len(steps) > 0 {
		d.logger.Info("Migrated campaign content", "campaign_id", campaignID, "steps", steps)
		if err := d.SaveContent(ctx, campaignID, c); err != nil {
			d.logger.Warn("Failed to save migrated campaign content", "campaign_id", campaignID, "error", err)
		}
	}
	return c, nil
}

func (d *DocumentStore) SaveContent(ctx context.Context, campaignID string, c *campaign.Content) error {
	if c == nil {
		return fmt.Errorf("campaign content cannot be nil")
	}
	data, err := campaign.EncodeJSON(c)
	if err != nil {
		return err
	}
	if err := d.blobs.Put(ctx, campaignID, ContentFile, data); err != nil {
		return fmt.Errorf("failed to save campaign content: %w", err)
	}
	return nil
}

func (d *DocumentStore) LoadState(ctx context.Context, campaignID string) (*state.CampaignState, error) {
	data, err := d.blobs.Get(ctx, campaignID, StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign state: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	migrated, steps, err := migrate.State(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", state.ErrInvalidState, err)
	}

	s, repairs, err := state.Decode(migrated)
	if err != nil {
		return nil, err
	}
	if len(repairs) > 0 {
		d.logger.Warn("Repaired campaign state", "campaign_id", campaignID, "repairs", repairs)
	}

	if len(steps) > 0 {
		d.logger.Info("Migrated campaign state", "campaign_id", campaignID, "steps", steps)
		if err := d.SaveState(ctx, campaignID, s); err != nil {
			d.logger.Warn("Failed to save migrated campaign state", "campaign_id", campaignID, "error", err)
		}
	}
	return s, nil
}

func (d *DocumentStore) SaveState(ctx context.Context, campaignID string, s *state.CampaignState) error {
	if s == nil {
		return fmt.Errorf("campaign state cannot be nil")
	}
	data, err := state.Encode(s)
	if err != nil {
		return err
	}
	if err := d.blobs.Put(ctx, campaignID, StateFile, data); err != nil {
		return fmt.Errorf("failed to save campaign state: %w", err)
	}
	return nil
}

func (d *DocumentStore) LoadSystem(ctx context.Context, campaignID string) (*system.Template, error) {
	data, err := d.blobs.Get(ctx, campaignID, SystemFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign system: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var t system.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign system: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("stored system for campaign %s is invalid: %w", campaignID, err)
	}
	return &t, nil
}

func (d *DocumentStore) SaveSystem(ctx context.Context, campaignID string, t *system.Template) error {
	if t == nil {
		return fmt.Errorf("campaign system cannot be nil")
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal campaign system: %w", err)
	}
	if err := d.blobs.Put(ctx, campaignID, SystemFile, data); err != nil {
		return fmt.Errorf("failed to save campaign system: %w", err)
	}
	return nil
}

func (d *DocumentStore) LoadRoster(ctx context.Context, campaignID string) (*roster.Roster, error) {
	data, err := d.blobs.Get(ctx, campaignID, RosterFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var r roster.Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster: %w", err)
	}
	if r.Characters == nil {
		r.Characters = []roster.Character{}
	}
	return &r, nil
}

func (d *DocumentStore) SaveRoster(ctx context.Context, campaignID string, r *roster.Roster) error {
	if r == nil {
		return fmt.Errorf("roster cannot be nil")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	if err := d.blobs.Put(ctx, campaignID, RosterFile, data); err != nil {
		return fmt.Errorf("failed to save roster: %w", err)
	}
	return nil
}

// LoadDraft returns the stored draft migrated to the current content
// shape. Drafts are never validated and the migration is not written back.
func (d *DocumentStore) LoadDraft(ctx context.Context, campaignID string) ([]byte, error) {
	data, err := d.blobs.Get(ctx, campaignID, DraftFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	migrated, steps, err := migrate.Draft(data)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate draft: %w", err)
	}
	if len(steps) > 0 {
		d.logger.Debug("Migrated draft on read", "campaign_id", campaignID, "steps", steps)
	}
	return migrated, nil
}

// SaveDraft stores data verbatim. It must be a JSON object.
func (d *DocumentStore) SaveDraft(ctx context.Context, campaignID string, data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return fmt.Errorf("draft must be a JSON object: %w", ErrInvalidDocument)
	}
	if err := d.blobs.Put(ctx, campaignID, DraftFile, data); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (d *DocumentStore) DeleteCampaign(ctx context.Context, campaignID string) error {
	if err := d.blobs.Delete(ctx, campaignID); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

func (d *DocumentStore) ListCampaigns(ctx context.Context) ([]string, error) {
	ids, err := d.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return ids, nil
}
