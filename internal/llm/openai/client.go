package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legalaid-petitions/internal/llm"
)

// Name implements llm.Completer.
func (c *Client) Name() string { return c.cfg.Name }

// Complete implements llm.Completer with role-separated chat messages.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	temp := req.Temperature
	if temp == 0 {
		temp = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	c.log.Info("llm.complete.start",
		"req_id", rid,
		"provider", c.cfg.Name,
		"model", c.cfg.Model,
		"temp", temp,
		"system_len", len(req.System),
		"user_len", len(req.User),
	)

	messages := make([]map[string]any, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.User})

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": temp,
		"messages":    messages,
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "provider", c.cfg.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode %s response: %w", c.cfg.Name, err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		c.log.Error("llm.complete.no_choices",
			"req_id", rid, "provider", c.cfg.Name,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.ErrEmptyResponse
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"provider", c.cfg.Name,
		"chars", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s http error: %w", c.cfg.Name, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("llm.complete.body_close_error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.StatusError{Code: resp.StatusCode, Body: buf.String()}
	}
	return buf.Bytes(), nil
}
