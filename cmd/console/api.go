package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/dmcontext"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
)

type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends a request and decodes the JSON response into out when the
// expected status comes back. It returns the raw response body.
func call(client *http.Client, method, url, contentType string, body []byte, expected int, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != expected {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return nil, fmt.Errorf("%s", errorResp.Error)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return data, nil
}

func listCampaigns(client *http.Client, baseURL string) ([]services.CampaignSummary, error) {
	var list []services.CampaignSummary
	if _, err := call(client, http.MethodGet, baseURL+"/v1/campaigns", "", nil, http.StatusOK, &list); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return list, nil
}

// createExampleCampaign uploads the bundled sample campaign.
func createExampleCampaign(client *http.Client, baseURL string) (string, error) {
	var res services.CreateResult
	_, err := call(client, http.MethodPost, baseURL+"/v1/campaigns", "application/yaml", campaign.ExampleYAML(), http.StatusCreated, &res)
	if err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}
	return res.CampaignID, nil
}

// getContext returns the DM context snapshot and its raw JSON.
func getContext(client *http.Client, baseURL, campaignID string) (*dmcontext.Snapshot, []byte, error) {
	var snap dmcontext.Snapshot
	raw, err := call(client, http.MethodGet, fmt.Sprintf("%s/v1/campaigns/%s/dm-context", baseURL, campaignID), "", nil, http.StatusOK, &snap)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get DM context: %w", err)
	}
	return &snap, raw, nil
}

func hitBeat(client *http.Client, baseURL, campaignID, beatID string) (*engine.Outcome, error) {
	body, err := json.Marshal(engine.HitRequest{BeatID: beatID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var out engine.Outcome
	url := fmt.Sprintf("%s/v1/campaigns/%s/hit-beat", baseURL, campaignID)
	if _, err := call(client, http.MethodPost, url, "application/json", body, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("failed to hit beat: %w", err)
	}
	return &out, nil
}

func closeEpisode(client *http.Client, baseURL, campaignID string) (*engine.EpisodeReport, error) {
	var report engine.EpisodeReport
	url := fmt.Sprintf("%s/v1/campaigns/%s/episodes/close", baseURL, campaignID)
	if _, err := call(client, http.MethodPost, url, "", nil, http.StatusOK, &report); err != nil {
		return nil, fmt.Errorf("failed to close episode: %w", err)
	}
	return &report, nil
}

// SSEEvent is one event read from the campaign event stream.
type SSEEvent struct {
	Type  string
	Event journal.Event
}

// listenToEvents connects to the campaign event stream and forwards events
// to eventChan until the stream ends or ctx is cancelled. The client must not
// carry a request timeout.
func listenToEvents(ctx context.Context, client *http.Client, baseURL, campaignID string, eventChan chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/v1/events/campaigns/%s", baseURL, campaignID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("event stream failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var current SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Blank line ends an event
			if current.Type != "" {
				select {
				case eventChan <- current:
				case <-ctx.Done():
					return ctx.Err()
				}
				current = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			current.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var ev journal.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err == nil {
				current.Event = ev
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading event stream: %w", err)
	}
	return nil
}
