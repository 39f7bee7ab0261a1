package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

func setupEventsServer(t *testing.T) (*httptest.Server, *services.CampaignService) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	tmpl, err := system.Get(system.DefaultID)
	require.NoError(t, err)
	j := journal.NewJournal(rdb, journal.DefaultLimit, testLogger())
	svc := services.NewCampaignService(storage.NewMockStorage(), tmpl, j, testLogger())

	mux := http.NewServeMux()
	mux.Handle("/v1/events/campaigns/", NewEventsHandler(svc, j, testLogger()))
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return server, svc
}

// readEvent returns the next SSE event name and data payload.
func readEvent(t *testing.T, scanner *bufio.Scanner) (string, string) {
	t.Helper()
	var name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
	t.Fatalf("Stream ended before an event arrived: %v", scanner.Err())
	return "", ""
}

func TestEventsHandler_StreamsJournalEvents(t *testing.T) {
	server, svc := setupEventsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := svc.Create(ctx, campaign.Example(), "")
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/events/campaigns/"+res.CampaignID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	name, _ := readEvent(t, scanner)
	require.Equal(t, "connected", name)

	_, err = svc.HitBeat(ctx, res.CampaignID, engine.HitRequest{BeatID: "first_signs"})
	require.NoError(t, err)

	name, data := readEvent(t, scanner)
	assert.Equal(t, string(journal.KindBeatHit), name)
	var event journal.Event
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, "first_signs", event.BeatID)
}

func TestEventsHandler_Errors(t *testing.T) {
	server, _ := setupEventsServer(t)

	resp, err := http.Get(server.URL + "/v1/events/campaigns/missing")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/v1/events/campaigns/a/b")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/v1/events/campaigns/a", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
