package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/llm"
)

const visionPrompt = `Você está transcrevendo um documento enviado por uma cidadã para a Defensoria Pública.
Transcreva integralmente todo o texto legível do documento, preservando nomes, números, datas e valores exatamente como aparecem.
Não resuma, não comente e não invente conteúdo. Responda apenas com o texto transcrito.`

type Config struct {
	LocalTimeout time.Duration // default 60s
	Parallelism  int           // default 4
}

// Engine extracts text with a remote vision provider first and a local OCR fallback for images.
type Engine struct {
	vision llm.VisionGenerator
	local  LocalEngine
	cfg    Config
	logger *slog.Logger
}

func NewEngine(vision llm.VisionGenerator, local LocalEngine, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LocalTimeout <= 0 {
		cfg.LocalTimeout = 60 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Engine{vision: vision, local: local, cfg: cfg, logger: logger}
}

// Extract returns the text of one document. PDFs have no local fallback; vision
// failures on them propagate. Unsupported media yields ErrUnsupported.
func (e *Engine) Extract(ctx context.Context, data []byte, mediaType, hint string) (Result, error) {
	start := time.Now()
	kind := constants.KindOf(mediaType)
	if kind == constants.OTHER {
		e.logger.Info("extract.skip.unsupported", "hint", hint, "media_type", mediaType)
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}

	var warnings []string
	if e.vision != nil {
		prompt := visionPrompt
		if hint != "" {
			prompt += "\nNome do arquivo: " + hint
		}
		text, err := e.vision.Generate(ctx, prompt, data, mediaType)
		if err == nil && strings.TrimSpace(text) != "" {
			e.logger.Info("extract.vision.ok", "hint", hint, "chars", len(text),
				"elapsed_ms", time.Since(start).Milliseconds())
			return Result{Text: strings.TrimSpace(text), Method: MethodVision, Duration: time.Since(start)}, nil
		}
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		e.logger.Warn("extract.vision.failed", "hint", hint, "media_type", mediaType, "error", err)
		if kind == constants.PDF {
			return Result{}, fmt.Errorf("vision extraction: %w", err)
		}
		warnings = append(warnings, "vision: "+err.Error())
	} else if kind == constants.PDF {
		return Result{}, fmt.Errorf("%w for %s", ErrNoProvider, mediaType)
	}

	if e.local == nil {
		return Result{}, fmt.Errorf("%w for %s", ErrNoProvider, mediaType)
	}
	text, err := e.runLocal(ctx, data, mediaType)
	if err != nil {
		e.logger.Error("extract.local.failed", "hint", hint, "error", err)
		return Result{Warnings: warnings}, fmt.Errorf("local extraction: %w", err)
	}
	e.logger.Info("extract.local.ok", "hint", hint, "chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return Result{Text: text, Method: MethodLocal, Duration: time.Since(start), Warnings: warnings}, nil
}

type localOutcome struct {
	text string
	err  error
}

// runLocal races the local engine against LocalTimeout so a hung engine cannot hold the caller.
func (e *Engine) runLocal(ctx context.Context, data []byte, mediaType string) (string, error) {
	lctx, cancel := context.WithTimeout(ctx, e.cfg.LocalTimeout)
	defer cancel()

	done := make(chan localOutcome, 1)
	go func() {
		res, err := e.local.Recognize(lctx, data, mediaType)
		done <- localOutcome{text: res.Text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return "", ErrLocalTimeout
			}
			return "", out.err
		}
		if strings.TrimSpace(out.text) == "" {
			return "", errors.New("local ocr produced no text")
		}
		return out.text, nil
	case <-lctx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrLocalTimeout
	}
}

// ExtractAll extracts every document with bounded parallelism and joins the
// successful texts in submission order under a labeled separator.
func (e *Engine) ExtractAll(ctx context.Context, docs []Document) Report {
	results := make([]DocResult, len(docs))
	texts := make([]string, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			results[i] = DocResult{Index: i, Name: d.Name}
			data := d.Data
			if data == nil && d.Load != nil {
				loaded, err := d.Load(gctx)
				if err != nil {
					results[i].Err = fmt.Errorf("load: %w", err)
					e.logger.Warn("extract.load.failed", "name", d.Name, "error", err)
					return nil
				}
				data = loaded
			}
			res, err := e.Extract(gctx, data, d.MediaType, d.Name)
			if err != nil {
				results[i].Err = err
				results[i].Skipped = errors.Is(err, ErrUnsupported)
				return nil
			}
			results[i].Method = res.Method
			results[i].Chars = len(res.Text)
			texts[i] = res.Text
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	for i, t := range texts {
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== Documento %d: %s ===\n", i+1, docs[i].Name)
		b.WriteString(t)
	}

	report := Report{Text: b.String(), Results: results}
	e.logger.Info("extract.all.done", "documents", len(docs), "failures", len(report.Failures()),
		"chars", len(report.Text))
	return report
}
