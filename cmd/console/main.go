package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL string
	CampaignID string // Opened directly, skipping the picker
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{Timeout: 30 * time.Second}
	flag.StringVar(&cfg.APIBaseURL, "api", getEnv("API_BASE_URL", "http://localhost:8080"), "campaign-engine API base URL")
	flag.StringVar(&cfg.CampaignID, "campaign", os.Getenv("CAMPAIGN_ID"), "campaign id to open")
	flag.Parse()

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not reach %s. Please ensure the API is running.\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
