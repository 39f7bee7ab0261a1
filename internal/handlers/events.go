package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
)

// EventSubscriber opens a live feed of a campaign's journal events.
type EventSubscriber interface {
	Subscribe(ctx context.Context, campaignID string) (*redis.PubSub, error)
}

// EventsHandler streams progression events as Server-Sent Events
type EventsHandler struct {
	service    *services.CampaignService
	subscriber EventSubscriber
	keepalive  time.Duration
	logger     *slog.Logger
}

func NewEventsHandler(service *services.CampaignService, subscriber EventSubscriber, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		service:    service,
		subscriber: subscriber,
		keepalive:  30 * time.Second,
		logger:     logger,
	}
}

// ServeHTTP handles SSE requests for campaign events
// GET /v1/events/campaigns/{campaignID}
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.Warn("Method not allowed for events endpoint",
			"method", r.Method,
			"path", r.URL.Path)
		writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "events" || pathParts[2] != "campaigns" {
		writeMessage(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/events/campaigns/{campaignID}")
		return
	}
	campaignID := pathParts[3]

	if _, err := h.service.Content(r.Context(), campaignID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pubsub, err := h.subscriber.Subscribe(r.Context(), campaignID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()

	h.logger.Info("SSE connection established",
		"campaign_id", campaignID,
		"remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	msgChan := pubsub.Channel()

	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	h.sendSSE(w, "connected", map[string]string{
		"campaign_id": campaignID,
		"message":     "Connected to event stream",
	})

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "campaign_id", campaignID)
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event journal.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			h.sendSSE(w, string(event.Kind), event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSE sends a Server-Sent Event to the client
func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
