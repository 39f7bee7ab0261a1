package handlers

import (
	"log/slog"
	"maps"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/state"
)

type CampaignHandler struct {
	service *services.CampaignService
	logger  *slog.Logger
}

func NewCampaignHandler(service *services.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		service: service,
		logger:  logger,
	}
}

// VisitRequest names a location the party reached.
type VisitRequest struct {
	Name string `json:"name"`
}

type VisitResponse struct {
	Location string `json:"location"`
	Added    bool   `json:"added"`
}

// FactsRequest carries facts learned outside a beat.
type FactsRequest struct {
	Facts []string `json:"facts"`
}

type FactsResponse struct {
	Added int `json:"added"`
}

// ServeHTTP handles HTTP requests for campaign operations
// Routes:
// GET    /v1/campaigns                          - List campaigns
// POST   /v1/campaigns                          - Create a campaign from content (?template_id=)
// GET    /v1/campaigns/{id}                     - Read content (?format=yaml for YAML)
// PUT    /v1/campaigns/{id}                     - Replace content
// DELETE /v1/campaigns/{id}                     - Delete campaign
// GET    /v1/campaigns/{id}/state               - Read play state
// POST   /v1/campaigns/{id}/reset               - Reset play state
// GET    /v1/campaigns/{id}/available-beats     - Beats that can be played next
// POST   /v1/campaigns/{id}/hit-beat            - Record a beat as hit
// POST   /v1/campaigns/{id}/episodes/start      - Start an episode
// POST   /v1/campaigns/{id}/episodes/close      - Close the current episode
// PATCH  /v1/campaigns/{id}/npcs/{name}         - Update an NPC
// POST   /v1/campaigns/{id}/locations/visit     - Record a visited location
// POST   /v1/campaigns/{id}/facts               - Add learned facts
// GET    /v1/campaigns/{id}/dm-context          - DM context snapshot
// GET    /v1/campaigns/{id}/journal             - Recent progression events (?limit=N)
// GET    /v1/campaigns/{id}/system              - Game system the campaign is played under
// PUT    /v1/campaigns/{id}/system              - Replace the game system
// GET    /v1/campaigns/{id}/draft               - Draft content, or the published content
// PUT    /v1/campaigns/{id}/draft               - Save draft content without validation
// GET    /v1/campaigns/{id}/characters          - List the party
// POST   /v1/campaigns/{id}/characters          - Add a character
// GET    /v1/campaigns/{id}/characters/{charID} - Read a character
// PATCH  /v1/campaigns/{id}/characters/{charID} - Update a character
// DELETE /v1/campaigns/{id}/characters/{charID} - Remove a character
// POST   /v1/campaigns/{id}/dice/roll           - Grade a roll under the campaign's system
func (h *CampaignHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/campaigns"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}
		return

	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.handleReadContent(w, r, id)
		case http.MethodPut:
			h.handlePutContent(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			h.methodNotAllowed(w, r, "GET, PUT, DELETE")
		}
		return
	}

	id := parts[0]
	route := strings.Join(parts[1:], "/")
	if len(parts) == 3 && (parts[1] == "npcs" || parts[1] == "characters") {
		route = parts[1] + "/{name}"
	}

	type campaignRoute func(http.ResponseWriter, *http.Request, string)
	routes := map[string]map[string]campaignRoute{
		"state":             {http.MethodGet: h.handleState},
		"reset":             {http.MethodPost: h.handleReset},
		"available-beats":   {http.MethodGet: h.handleAvailableBeats},
		"hit-beat":          {http.MethodPost: h.handleHitBeat},
		"episodes/start":    {http.MethodPost: h.handleStartEpisode},
		"episodes/close":    {http.MethodPost: h.handleCloseEpisode},
		"npcs/{name}":       {http.MethodPatch: h.handleUpdateNPC},
		"locations/visit":   {http.MethodPost: h.handleVisitLocation},
		"facts":             {http.MethodPost: h.handleLearnFacts},
		"dm-context":        {http.MethodGet: h.handleContext},
		"journal":           {http.MethodGet: h.handleJournal},
		"system":            {http.MethodGet: h.handleGetSystem, http.MethodPut: h.handlePutSystem},
		"draft":             {http.MethodGet: h.handleGetDraft, http.MethodPut: h.handleSaveDraft},
		"characters":        {http.MethodGet: h.handleListCharacters, http.MethodPost: h.handleAddCharacter},
		"characters/{name}": {http.MethodGet: h.handleGetCharacter, http.MethodPatch: h.handleUpdateCharacter, http.MethodDelete: h.handleRemoveCharacter},
		"dice/roll":         {http.MethodPost: h.handleRollDice},
	}

	methods, ok := routes[route]
	if !ok {
		writeMessage(w, h.logger, http.StatusNotFound, "Unknown campaign endpoint: "+route)
		return
	}
	handler, ok := methods[r.Method]
	if !ok {
		h.methodNotAllowed(w, r, strings.Join(slices.Sorted(maps.Keys(methods)), ", "))
		return
	}
	handler(w, r, id)
}

func (h *CampaignHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for campaign endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func (h *CampaignHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

func (h *CampaignHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.readContent(w, r)
	if !ok {
		return
	}
	res, err := h.service.Create(r.Context(), c, r.URL.Query().Get("template_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, res)
}

func (h *CampaignHandler) handleReadContent(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.service.Content(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := campaign.EncodeYAML(c)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			h.logger.Error("Failed to write YAML response", "error", err)
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, c)
}

func (h *CampaignHandler) handlePutContent(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := h.readContent(w, r)
	if !ok {
		return
	}
	res, err := h.service.PutContent(r.Context(), id, c)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *CampaignHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) handleState(w http.ResponseWriter, r *http.Request, id string) {
	st, err := h.service.State(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, st)
}

func (h *CampaignHandler) handleReset(w http.ResponseWriter, r *http.Request, id string) {
	st, err := h.service.Reset(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, st)
}

func (h *CampaignHandler) handleAvailableBeats(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.service.AvailableBeats(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, view)
}

func (h *CampaignHandler) handleHitBeat(w http.ResponseWriter, r *http.Request, id string) {
	var req engine.HitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.BeatID) == "" {
		writeMessage(w, h.logger, http.StatusBadRequest, "beat_id is required")
		return
	}

	out, err := h.service.HitBeat(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *CampaignHandler) handleStartEpisode(w http.ResponseWriter, r *http.Request, id string) {
	var ep state.Episode
	if err := decodeBody(w, r, &ep); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	started, err := h.service.StartEpisode(r.Context(), id, ep)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, started)
}

func (h *CampaignHandler) handleCloseEpisode(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.service.CloseEpisode(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, report)
}

func (h *CampaignHandler) handleUpdateNPC(w http.ResponseWriter, r *http.Request, id string) {
	name := pathSegment(r, 2)

	var u engine.NPCUpdate
	if err := decodeBody(w, r, &u); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	ns, err := h.service.UpdateNPC(r.Context(), id, name, u)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ns)
}

func (h *CampaignHandler) handleVisitLocation(w http.ResponseWriter, r *http.Request, id string) {
	var req VisitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	added, err := h.service.VisitLocation(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, VisitResponse{Location: req.Name, Added: added})
}

func (h *CampaignHandler) handleLearnFacts(w http.ResponseWriter, r *http.Request, id string) {
	var req FactsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	added, err := h.service.LearnFacts(r.Context(), id, req.Facts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, FactsResponse{Added: added})
}

func (h *CampaignHandler) handleContext(w http.ResponseWriter, r *http.Request, id string) {
	snap, err := h.service.Context(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}

func (h *CampaignHandler) handleJournal(w http.ResponseWriter, r *http.Request, id string) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeMessage(w, h.logger, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.service.Journal(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, events)
}

// readContent decodes a content body as YAML or JSON depending on its
// Content-Type. It writes the error response itself and reports whether
// decoding succeeded.
func (h *CampaignHandler) readContent(w http.ResponseWriter, r *http.Request) (*campaign.Content, bool) {
	data, err := readBody(w, r)
	if err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return nil, false
	}

	var c *campaign.Content
	if isYAML(r.Header.Get("Content-Type")) {
		c, err = campaign.DecodeYAML(data)
	} else {
		c, err = campaign.DecodeJSON(data)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return c, true
}

func isYAML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return true
	}
	return false
}

// pathSegment returns the i-th path segment after /v1/campaigns.
func pathSegment(r *http.Request, i int) string {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/campaigns"), "/"), "/")
	if i >= len(parts) {
		return ""
	}
	return parts[i]
}
