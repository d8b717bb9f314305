package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/llm"
)

// Config for the Gemini generateContent API.
type Config struct {
	APIKey      string
	BaseURL     string // default https://generativelanguage.googleapis.com/v1beta
	Model       string // e.g., "gemini-1.5-flash"
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client is a single-prompt adapter: system and user text are concatenated into one turn.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Name implements llm.Completer.
func (c *Client) Name() string { return "gemini" }

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	prompt := req.User
	if strings.TrimSpace(req.System) != "" {
		prompt = req.System + "\n\n" + req.User
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	return c.generate(ctx, []part{{Text: prompt}}, temp, maxTokens)
}

// Generate implements llm.VisionGenerator with the document sent as inline base64 data.
func (c *Client) Generate(ctx context.Context, prompt string, data []byte, mediaType string) (string, error) {
	if len(data) > constants.MaxVisionMBDefault*1024*1024 {
		return "", fmt.Errorf("document too large for vision: %d bytes", len(data))
	}
	parts := []part{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: mediaType, Data: base64.StdEncoding.EncodeToString(data)}},
	}
	return c.generate(ctx, parts, 0, 0)
}

func (c *Client) generate(ctx context.Context, parts []part, temp float32, maxTokens int) (string, error) {
	start := time.Now()
	body := map[string]any{
		"contents": []map[string]any{{"role": "user", "parts": parts}},
	}
	gen := map[string]any{}
	if temp > 0 {
		gen["temperature"] = temp
	}
	if maxTokens > 0 {
		gen["maxOutputTokens"] = maxTokens
	}
	if len(gen) > 0 {
		body["generationConfig"] = gen
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, _, err := llm.SendJSON(ctx, c.http, url, body, map[string]string{"x-goog-api-key": c.cfg.APIKey}, c.logger)
	if err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("llm.gemini.decode_error", "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	var b strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	c.logger.Info("llm.gemini.ok", "model", c.cfg.Model, "chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}
