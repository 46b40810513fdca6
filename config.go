package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider tags selectable via LLM_PROVIDER.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
)

// Default endpoints for each provider.
const (
	OpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"
	OpenAIAPIURL     = "https://api.openai.com/v1/chat/completions"
)

// Config holds all runtime configuration for the council backend.
type Config struct {
	// Provider selects the chat client variant ("openrouter" or "openai").
	Provider string

	// APIKey authenticates against the selected provider.
	APIKey string

	// BaseURL is the chat/completions endpoint. Defaults per provider; an
	// OpenAI-compatible local endpoint (Ollama, vLLM) can override it.
	BaseURL string

	// CouncilModels is the ordered list of models queried in Stages 1 and 2.
	// Order matters: it determines anonymization labels and result ordering.
	CouncilModels []string

	// ChairmanModel is the model used for final synthesis in Stage 3.
	ChairmanModel string

	// TitleModel is a fast model used for conversation title generation.
	TitleModel string

	// DataDir is the directory for conversation storage.
	DataDir string

	// CORSAllowedOrigins configures CORS in production. Empty means
	// development mode, which allows any localhost origin.
	CORSAllowedOrigins []string

	// ModelQueryTimeout bounds each individual provider call.
	ModelQueryTimeout time.Duration

	// TitleGenTimeout bounds title generation calls.
	TitleGenTimeout time.Duration

	// FetchTimeout bounds outbound page fetches for /api/fetch-url.
	FetchTimeout time.Duration

	// ContentCacheTTL is the time-to-live for fetched page content.
	ContentCacheTTL time.Duration

	// MaxRequestBodySize is the maximum allowed request body size.
	MaxRequestBodySize int64

	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string
}

// defaultCouncilModels is the council used when COUNCIL_MODELS is not set.
var defaultCouncilModels = []string{
	"openai/gpt-5.1",
	"google/gemini-3-pro-preview",
	"anthropic/claude-sonnet-4.5",
	"x-ai/grok-4",
}

// LoadConfig loads configuration from .env files and environment variables.
// Validation failures (unknown provider tag, missing required credential)
// are returned as errors before anything else runs.
func LoadConfig() (*Config, error) {
	// Load .env file - try multiple locations
	envLocations := []string{
		".env",    // Current directory
		"../.env", // Parent directory
	}

	envLoaded := false
	for _, envPath := range envLocations {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			if err := godotenv.Load(absPath); err == nil {
				log.Printf("Loaded .env from: %s", absPath)
				envLoaded = true
				break
			}
		}
	}
	if !envLoaded {
		log.Printf("Warning: .env file not found in any expected location")
	}

	cfg := &Config{
		Provider:           strings.ToLower(envOr("LLM_PROVIDER", ProviderOpenRouter)),
		APIKey:             os.Getenv("LLM_API_KEY"),
		BaseURL:            os.Getenv("LLM_BASE_URL"),
		CouncilModels:      splitModels(os.Getenv("COUNCIL_MODELS")),
		ChairmanModel:      envOr("CHAIRMAN_MODEL", "google/gemini-3-pro-preview"),
		TitleModel:         envOr("TITLE_MODEL", "google/gemini-2.5-flash"),
		DataDir:            envOr("DATA_DIR", "data/conversations"),
		ModelQueryTimeout:  120 * time.Second,
		TitleGenTimeout:    30 * time.Second,
		FetchTimeout:       30 * time.Second,
		ContentCacheTTL:    5 * time.Minute,
		MaxRequestBodySize: 1 << 20,
		ListenAddr:         envOr("LISTEN_ADDR", ":8001"),
	}

	// Legacy variable kept for compatibility with older deployments
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	if len(cfg.CouncilModels) == 0 {
		cfg.CouncilModels = defaultCouncilModels
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks provider selection and credentials. OpenRouter always needs
// a key; the OpenAI-compatible variant only needs one when talking to the
// hosted endpoint (local servers usually accept unauthenticated requests).
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenRouter:
		if c.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderOpenAI:
		if c.APIKey == "" && c.BaseURL == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %q unless LLM_BASE_URL points at a local endpoint", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (supported: %s, %s)", c.Provider, ProviderOpenRouter, ProviderOpenAI)
	}

	if len(c.CouncilModels) == 0 {
		return fmt.Errorf("at least one council model is required")
	}
	if c.ChairmanModel == "" {
		return fmt.Errorf("a chairman model is required")
	}

	return nil
}

// envOr returns the value of the environment variable or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitModels parses a comma-separated model list, dropping empty entries.
func splitModels(s string) []string {
	if s == "" {
		return nil
	}
	var models []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}
