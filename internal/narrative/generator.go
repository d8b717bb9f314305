// Package narrative drafts the facts section of a petition with a fast model, a
// fallback model, and finally a local template when neither answers.
package narrative

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/llm"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/pii"
)

// Source names which path produced a narrative.
type Source string

const (
	SourceFast     Source = "fast"
	SourceFallback Source = "fallback"
	SourceLocal    Source = "local"
)

var (
	ErrNoProvider = errors.New("no completion provider configured")
	ErrPIILeak    = errors.New("sanitized prompt still contains personal data")
)

// Result is a finished narrative.
type Result struct {
	Text   string
	Source Source
}

type Config struct {
	Temperature float32       // default 0.3
	MaxTokens   int           // default 2048
	Timeout     time.Duration // per provider call
}

// Generator is safe for concurrent use.
type Generator struct {
	fast     llm.Completer
	fallback llm.Completer
	cfg      Config
	logger   *slog.Logger
}

// NewGenerator accepts nil providers; a generator without any always answers locally.
func NewGenerator(fast, fallback llm.Completer, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Generator{fast: fast, fallback: fallback, cfg: cfg, logger: logger}
}

// Generate drafts the facts section. documents is the aggregated extracted text and may be empty.
// A usable narrative is always returned; errors are reserved for a nil payload.
func (g *Generator) Generate(ctx context.Context, p *normalize.CasePayload, documents string) (Result, error) {
	if p == nil {
		return Result{}, common.NewAppError("INVALID_PAYLOAD", "narrative: nil payload", common.ErrInvalidInput)
	}
	start := time.Now()
	m := BuildPIIMap(p, documents)
	req := llm.Request{
		System:      systemPrompt(),
		User:        m.Sanitize(userPrompt(p, documents)),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}

	text, source, err := g.sanitizedComplete(ctx, p.Protocol, m, req)
	if err == nil {
		text = PostProcess(m.Desanitize(text))
		if pii.HasPlaceholders(text) {
			g.logger.Warn("narrative.placeholders_remaining", "protocol", p.Protocol, "source", source)
		}
		if text != "" {
			g.logger.Info("narrative.done", "protocol", p.Protocol, "source", source, "chars", len(text), "duration_ms", time.Since(start).Milliseconds())
			return Result{Text: text, Source: source}, nil
		}
		err = llm.ErrEmptyResponse
	}

	g.logger.Warn("narrative.local_fallback", "protocol", p.Protocol, "error", err)
	return Result{Text: BuildLocal(p), Source: SourceLocal}, nil
}

// Summarize produces a short overview of raw case text for internal triage. m may be nil,
// in which case only CPF-shaped numbers are scrubbed.
func (g *Generator) Summarize(ctx context.Context, text string, m *pii.Map) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", common.NewAppError("INVALID_INPUT", "summarize: empty text", common.ErrInvalidInput)
	}
	if m == nil {
		m = pii.NewBuilder().ScanCPFs(text).Build()
	}
	if len([]rune(text)) > maxDocumentChars {
		text = string([]rune(text)[:maxDocumentChars])
	}
	req := llm.Request{
		System:      summarySystemPrompt,
		User:        m.Sanitize(text),
		Temperature: g.cfg.Temperature,
		MaxTokens:   512,
	}
	out, _, err := g.sanitizedComplete(ctx, common.ProtocolFromContext(ctx), m, req)
	if err != nil {
		return "", common.NewAppError("LLM_UNAVAILABLE", "summarize", errors.Join(common.ErrUnavailable, err))
	}
	return PostProcess(m.Desanitize(out)), nil
}

func (g *Generator) sanitizedComplete(ctx context.Context, protocol string, m *pii.Map, req llm.Request) (string, Source, error) {
	if leaks := m.Leaks(req.System + "\n" + req.User); len(leaks) > 0 {
		g.logger.Error("narrative.pii_leak_blocked", "protocol", protocol, "count", len(leaks))
		return "", "", ErrPIILeak
	}
	return g.complete(ctx, protocol, req)
}

// complete tries the fast provider, then the fallback. A timeout stops the chain.
func (g *Generator) complete(ctx context.Context, protocol string, req llm.Request) (string, Source, error) {
	providers := []struct {
		c      llm.Completer
		source Source
	}{
		{g.fast, SourceFast},
		{g.fallback, SourceFallback},
	}

	lastErr := ErrNoProvider
	for _, p := range providers {
		if p.c == nil {
			continue
		}
		callCtx, cancel := common.WithTimeout(ctx, g.cfg.Timeout)
		text, err := p.c.Complete(callCtx, req)
		cancel()
		if err == nil && strings.TrimSpace(text) == "" {
			err = llm.ErrEmptyResponse
		}
		if err == nil {
			return text, p.source, nil
		}

		g.logger.Warn("narrative.provider.error", "protocol", protocol, "provider", p.c.Name(), "source", p.source, "error", err)
		lastErr = err
		if llm.IsTimeout(err) || ctx.Err() != nil {
			break
		}
	}
	return "", "", lastErr
}
