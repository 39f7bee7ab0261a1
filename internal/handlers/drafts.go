package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/campaign-engine/pkg/system"
)

func (h *CampaignHandler) handleGetSystem(w http.ResponseWriter, r *http.Request, id string) {
	tmpl, err := h.service.System(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, tmpl)
}

// handlePutSystem accepts a template as JSON or, like the bundled
// templates, as YAML.
func (h *CampaignHandler) handlePutSystem(w http.ResponseWriter, r *http.Request, id string) {
	var tmpl system.Template
	if isYAML(r.Header.Get("Content-Type")) {
		data, err := readBody(w, r)
		if err != nil {
			writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			writeMessage(w, h.logger, http.StatusBadRequest, "invalid YAML body: "+err.Error())
			return
		}
	} else if err := decodeBody(w, r, &tmpl); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.service.PutSystem(r.Context(), id, &tmpl)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, saved)
}

func (h *CampaignHandler) handleGetDraft(w http.ResponseWriter, r *http.Request, id string) {
	draft, err := h.service.Draft(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, draft)
}

// handleSaveDraft stores the body as-is. YAML drafts are converted to JSON
// first.
func (h *CampaignHandler) handleSaveDraft(w http.ResponseWriter, r *http.Request, id string) {
	data, err := readBody(w, r)
	if err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if isYAML(r.Header.Get("Content-Type")) {
		if data, err = yamlToJSON(data); err != nil {
			writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
	}

	saved, err := h.service.SaveDraft(r.Context(), id, data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, saved)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML body: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("draft cannot be represented as JSON: %w", err)
	}
	return out, nil
}
