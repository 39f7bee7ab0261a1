package storage

import (
	"context"
	"errors"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/roster"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// ErrInvalidDocument is returned when a document to save has the wrong
// shape.
var ErrInvalidDocument = errors.New("invalid document")

// Document names within a campaign.
const (
	ContentFile = "campaign.json"
	StateFile   = "state.json"
	SystemFile  = "system.json"
	RosterFile  = "roster.json"
	DraftFile   = "draft.json"
)

// Storage persists campaign content and state as whole documents.
// Loads of absent documents return (nil, nil).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Authored content
	LoadContent(ctx context.Context, campaignID string) (*campaign.Content, error)
	SaveContent(ctx context.Context, campaignID string, c *campaign.Content) error

	// Play state
	LoadState(ctx context.Context, campaignID string) (*state.CampaignState, error)
	SaveState(ctx context.Context, campaignID string, s *state.CampaignState) error

	// Game system the campaign is played under
	LoadSystem(ctx context.Context, campaignID string) (*system.Template, error)
	SaveSystem(ctx context.Context, campaignID string, t *system.Template) error

	// Party roster
	LoadRoster(ctx context.Context, campaignID string) (*roster.Roster, error)
	SaveRoster(ctx context.Context, campaignID string, r *roster.Roster) error

	// Unvalidated work-in-progress content, kept as a raw JSON object
	LoadDraft(ctx context.Context, campaignID string) ([]byte, error)
	SaveDraft(ctx context.Context, campaignID string, data []byte) error

	// Campaign lifecycle
	DeleteCampaign(ctx context.Context, campaignID string) error
	ListCampaigns(ctx context.Context) ([]string, error)
}

// BlobStore is the raw key/value layer under Storage: one JSON document per
// campaign id and name. Get of an absent document returns (nil, nil).
type BlobStore interface {
	Ping(ctx context.Context) error
	Close() error

	Get(ctx context.Context, campaignID, name string) ([]byte, error)
	Put(ctx context.Context, campaignID, name string, data []byte) error
	Delete(ctx context.Context, campaignID string) error
	List(ctx context.Context) ([]string, error)
}
