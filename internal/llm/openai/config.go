package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for an OpenAI-compatible chat-completions provider (OpenAI, Groq, ...).
type Config struct {
	Name        string        // label used in logs, e.g. "groq"
	APIKey      string        // required
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "llama-3.3-70b-versatile"
	Temperature float32       // used when the request leaves it at zero
	MaxTokens   int           // used when the request leaves it at zero
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
