package handlers

import (
	"net/http"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/pkg/roster"
)

func (h *CampaignHandler) handleListCharacters(w http.ResponseWriter, r *http.Request, id string) {
	chars, err := h.service.Characters(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, chars)
}

func (h *CampaignHandler) handleAddCharacter(w http.ResponseWriter, r *http.Request, id string) {
	var ch roster.Character
	if err := decodeBody(w, r, &ch); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	added, err := h.service.AddCharacter(r.Context(), id, ch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, added)
}

func (h *CampaignHandler) handleGetCharacter(w http.ResponseWriter, r *http.Request, id string) {
	ch, err := h.service.Character(r.Context(), id, pathSegment(r, 2))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ch)
}

func (h *CampaignHandler) handleUpdateCharacter(w http.ResponseWriter, r *http.Request, id string) {
	var u roster.Update
	if err := decodeBody(w, r, &u); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	ch, err := h.service.UpdateCharacter(r.Context(), id, pathSegment(r, 2), u)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ch)
}

func (h *CampaignHandler) handleRemoveCharacter(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.RemoveCharacter(r.Context(), id, pathSegment(r, 2)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRollDice grades a roll made at the table. The engine never rolls.
func (h *CampaignHandler) handleRollDice(w http.ResponseWriter, r *http.Request, id string) {
	var roll services.DiceRoll
	if err := decodeBody(w, r, &roll); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.RollDice(r.Context(), id, roll)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}
