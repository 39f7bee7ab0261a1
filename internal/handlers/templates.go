package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/campaign-engine/pkg/system"
)

// ClassifyRequest carries a check total to grade against a template's
// thresholds.
type ClassifyRequest struct {
	Total int `json:"total"`
}

type ClassifyResponse struct {
	Template string         `json:"template"`
	Dice     string         `json:"dice"`
	Total    int            `json:"total"`
	Outcome  system.Outcome `json:"outcome"`
}

type TemplateHandler struct {
	logger *slog.Logger
}

func NewTemplateHandler(logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{logger: logger}
}

// ServeHTTP handles HTTP requests for game-system templates
// Routes:
// GET  /v1/templates                - List templates
// GET  /v1/templates/{id}           - Read a template
// POST /v1/templates/{id}/classify  - Grade a check total
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/templates"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.handleList(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "classify" && r.Method == http.MethodPost:
		h.handleClassify(w, r, parts[0])
	case len(parts) <= 2:
		h.logger.Warn("Method not allowed for template endpoint", "method", r.Method, "path", r.URL.Path)
		writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeMessage(w, h.logger, http.StatusNotFound, "Unknown template endpoint")
	}
}

func (h *TemplateHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := system.List()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

func (h *TemplateHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	if !system.Exists(id) {
		writeMessage(w, h.logger, http.StatusNotFound, "Template not found: "+id)
		return
	}
	t, err := system.Get(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, t)
}

func (h *TemplateHandler) handleClassify(w http.ResponseWriter, r *http.Request, id string) {
	if !system.Exists(id) {
		writeMessage(w, h.logger, http.StatusNotFound, "Template not found: "+id)
		return
	}
	var req ClassifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	t, err := system.Get(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ClassifyResponse{
		Template: t.ID,
		Dice:     t.Mechanics.Dice,
		Total:    req.Total,
		Outcome:  t.Mechanics.Classify(req.Total),
	})
}
