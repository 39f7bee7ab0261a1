package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

// doRequest sends a request and returns the status and raw body.
func doRequest(ctx context.Context, client *http.Client, method, url, contentType string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute %s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// postJSON marshals payload (nil sends no body) and posts it with method.
func postJSON(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	if payload == nil {
		return doRequest(ctx, client, method, url, "", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return doRequest(ctx, client, method, url, "application/json", body)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	status, data, err := doRequest(ctx, client, http.MethodGet, url, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s returned %d: %s", url, status, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// CreateCampaign uploads content and returns the new campaign id.
func CreateCampaign(ctx context.Context, client *http.Client, baseURL string, content []byte, contentType string) (string, error) {
	status, data, err := doRequest(ctx, client, http.MethodPost, baseURL+"/v1/campaigns", contentType, content)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create campaign returned %d: %s", status, string(data))
	}
	var res services.CreateResult
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("failed to decode created campaign: %w", err)
	}
	return res.CampaignID, nil
}

func DeleteCampaign(ctx context.Context, client *http.Client, baseURL, campaignID string) error {
	status, data, err := doRequest(ctx, client, http.MethodDelete, baseURL+"/v1/campaigns/"+campaignID, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("delete campaign returned %d: %s", status, string(data))
	}
	return nil
}

func GetState(ctx context.Context, client *http.Client, baseURL, campaignID string) (*state.CampaignState, error) {
	var st state.CampaignState
	if err := getJSON(ctx, client, baseURL+"/v1/campaigns/"+campaignID+"/state", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func GetAvailableBeats(ctx context.Context, client *http.Client, baseURL, campaignID string) (*services.AvailableBeats, error) {
	var ab services.AvailableBeats
	if err := getJSON(ctx, client, baseURL+"/v1/campaigns/"+campaignID+"/available-beats", &ab); err != nil {
		return nil, err
	}
	return &ab, nil
}
