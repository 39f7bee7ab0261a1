package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jwebster45206/campaign-engine/pkg/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))

	journalDown := HealthCheck{Name: "journal", Ping: func(context.Context) error {
		return errors.New("connection refused")
	}}

	tests := []struct {
		name              string
		setupStorage      func() storage.Storage
		extra             []HealthCheck
		expectedStatus    int
		expectedHealth    string
		expectedComponent map[string]string
	}{
		{
			name: "healthy",
			setupStorage: func() storage.Storage {
				return storage.NewMockStorage()
			},
			expectedStatus:    http.StatusOK,
			expectedHealth:    "healthy",
			expectedComponent: map[string]string{"storage": "healthy"},
		},
		{
			name: "unhealthy storage",
			setupStorage: func() storage.Storage {
				store := storage.NewMockStorage()
				store.SetPingError(errors.New("connection failed"))
				return store
			},
			expectedStatus:    http.StatusServiceUnavailable,
			expectedHealth:    "degraded",
			expectedComponent: map[string]string{"storage": "unhealthy"},
		},
		{
			name: "journal down degrades",
			setupStorage: func() storage.Storage {
				return storage.NewMockStorage()
			},
			extra:             []HealthCheck{journalDown},
			expectedStatus:    http.StatusServiceUnavailable,
			expectedHealth:    "degraded",
			expectedComponent: map[string]string{"storage": "healthy", "journal": "unhealthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := append([]HealthCheck{{Name: "storage", Ping: tt.setupStorage().Ping}}, tt.extra...)
			handler := NewHealthHandler("memory", logger, checks...)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
			}

			var response HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedHealth, response.Status)
			}
			if response.Service != "campaign-engine" {
				t.Errorf("Expected service 'campaign-engine', got '%s'", response.Service)
			}
			if response.Backend != "memory" {
				t.Errorf("Expected storage backend 'memory', got '%s'", response.Backend)
			}
			if len(response.Components) != len(tt.expectedComponent) {
				t.Errorf("Expected %d components, got %v", len(tt.expectedComponent), response.Components)
			}
			for name, want := range tt.expectedComponent {
				if got := response.Components[name]; got != want {
					t.Errorf("Expected %s status '%s', got '%s'", name, want, got)
				}
			}
			if response.Timestamp.IsZero() {
				t.Error("Expected timestamp to be set")
			}
		})
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := NewHealthHandler("memory", logger)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
	if rr.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("Expected Allow header 'GET, HEAD', got '%s'", rr.Header().Get("Allow"))
	}
}
