package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLimit caps each campaign's journal when no limit is configured.
const DefaultLimit = 200

// Kind names a progression event.
type Kind string

const (
	KindBeatHit        Kind = "beat_hit"
	KindEpisodeClosed  Kind = "episode_closed"
	KindThreatAdvanced Kind = "threat_advanced"
	KindBeatExpired    Kind = "beat_expired"
	KindContentUpdated Kind = "content_updated"
	KindStateReset     Kind = "state_reset"
	KindDiceRolled     Kind = "dice_rolled"
)

// Event is one journal entry.
type Event struct {
	ID                uuid.UUID `json:"id"`
	Kind              Kind      `json:"kind"`
	BeatID            string    `json:"beat_id,omitempty"`
	ThreatStage       int       `json:"threat_stage"`
	EpisodesCompleted int       `json:"episodes_completed"`
	Detail            string    `json:"detail,omitempty"`
	At                time.Time `json:"at"`
}

// Journal keeps a capped, newest-first list of progression events per
// campaign in Redis.
type Journal struct {
	rdb    *redis.Client
	limit  int
	logger *slog.Logger
}

func NewJournal(rdb *redis.Client, limit int, logger *slog.Logger) *Journal {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Journal{
		rdb:    rdb,
		limit:  limit,
		logger: logger,
	}
}

func journalKey(campaignID string) string {
	return fmt.Sprintf("campaign-journal:%s", campaignID)
}

func eventsChannel(campaignID string) string {
	return fmt.Sprintf("campaign-events:%s", campaignID)
}

// Append adds events to the front of the journal, oldest first, and trims
// it to the configured limit. Each event is also published to the
// campaign's events channel. Missing ids and timestamps are filled in.
func (j *Journal) Append(ctx context.Context, campaignID string, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	values := make([]any, 0, len(events))
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to serialize journal event: %w", err)
		}
		values = append(values, data)
	}

	key := journalKey(campaignID)
	channel := eventsChannel(campaignID)
	_, err := j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, values...)
		pipe.LTrim(ctx, key, 0, int64(j.limit-1))
		for _, v := range values {
			pipe.Publish(ctx, channel, v)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append journal events: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. A limit of zero or less
// returns the whole journal.
func (j *Journal) Recent(ctx context.Context, campaignID string, limit int) ([]Event, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	raw, err := j.rdb.LRange(ctx, journalKey(campaignID), 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			j.logger.Warn("Skipping malformed journal entry", "campaign_id", campaignID, "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Depth returns the number of events stored for a campaign.
func (j *Journal) Depth(ctx context.Context, campaignID string) (int, error) {
	count, err := j.rdb.LLen(ctx, journalKey(campaignID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get journal depth: %w", err)
	}
	return int(count), nil
}

// Clear removes a campaign's journal.
func (j *Journal) Clear(ctx context.Context, campaignID string) error {
	if err := j.rdb.Del(ctx, journalKey(campaignID)).Err(); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}
	return nil
}

// Ping checks the journal's Redis connection.
func (j *Journal) Ping(ctx context.Context) error {
	return j.rdb.Ping(ctx).Err()
}

// Subscribe listens for events appended to a campaign's journal. The
// subscription is confirmed before it is returned, so no event appended
// afterwards is missed. Callers must close it.
func (j *Journal) Subscribe(ctx context.Context, campaignID string) (*redis.PubSub, error) {
	pubsub := j.rdb.Subscribe(ctx, eventsChannel(campaignID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to campaign events: %w", err)
	}
	return pubsub, nil
}
