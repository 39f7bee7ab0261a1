package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/campaign-engine/internal/config"
)

// New builds a logger writing to w: JSON in production, text elsewhere.
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "campaign-engine")
}

// Setup builds the stdout logger and installs it as the slog default.
func Setup(cfg *config.Config) *slog.Logger {
	logger := New(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func WithCampaign(logger *slog.Logger, campaignID string) *slog.Logger {
	return logger.With("campaign_id", campaignID)
}

// WithError adds err to the logger context. A nil err leaves it unchanged.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
