package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/engine"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
)

// maxBodyBytes caps request bodies. Authored content is the largest payload.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"` // Set for content validation failures
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeError maps service and engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *campaign.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "Invalid campaign content", Problems: verr.Problems})
	case errors.Is(err, services.ErrCampaignNotFound), errors.Is(err, engine.ErrNotFound):
		writeMessage(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrAlreadyResolved):
		writeMessage(w, logger, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, storage.ErrInvalidDocument):
		writeMessage(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrInvalidState):
		logger.Error("Stored campaign state is unrecoverable", "error", err, "path", r.URL.Path)
		writeMessage(w, logger, http.StatusInternalServerError, "Stored campaign state is invalid")
	default:
		logger.Error("Request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeMessage(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

// readBody reads a size-limited request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return data, nil
}

// decodeBody decodes a JSON request body into v. Unknown fields are
// rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
