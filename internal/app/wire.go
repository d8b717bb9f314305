// Package app builds the pipeline components from the loaded configuration.
package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/assemble"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/export"
	"github.com/joseph-ayodele/legalaid-petitions/internal/extract"
	"github.com/joseph-ayodele/legalaid-petitions/internal/llm"
	"github.com/joseph-ayodele/legalaid-petitions/internal/llm/gemini"
	"github.com/joseph-ayodele/legalaid-petitions/internal/llm/openai"
	"github.com/joseph-ayodele/legalaid-petitions/internal/narrative"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/ocr"
	"github.com/joseph-ayodele/legalaid-petitions/internal/pipeline"
	"github.com/joseph-ayodele/legalaid-petitions/internal/repository"
	"github.com/joseph-ayodele/legalaid-petitions/internal/server"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

// Components is the wired pipeline plus the handles that need closing.
type Components struct {
	DB           *repository.DB
	Cases        repository.CaseRepository
	Blobs        storage.BlobStore
	Orchestrator *pipeline.Orchestrator
	Exporter     *export.Service

	templates io.Closer
	logger    *slog.Logger
}

// Build opens the database and blob store and wires the orchestrator.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Components, error) {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		db.Close(logger)
		return nil, err
	}
	loader, closer, err := NewTemplateLoader(cfg.Templates, blobs, logger)
	if err != nil {
		db.Close(logger)
		return nil, err
	}

	cases := repository.NewCaseRepository(db, logger)
	orch := pipeline.New(pipeline.Deps{
		Cases:      cases,
		Blobs:      blobs,
		Extractor:  NewExtractor(cfg, logger),
		Normalizer: NewNormalizer(cfg, logger),
		Narrator:   NewNarrator(cfg, logger),
		Assembler:  assemble.NewAssembler(loader, logger),
	}, pipeline.Config{
		StorageTimeout: cfg.Storage.Timeout,
		SignedURLTTL:   cfg.Storage.SignedURLTTL,
		StaleAfter:     cfg.Legal.StaleProcessingAfter,
		Workers:        cfg.Queue.Workers,
		QueueSize:      cfg.Queue.Size,
		ProcessTimeout: cfg.Queue.ProcessTimeout,
	}, logger)

	return &Components{
		DB:           db,
		Cases:        cases,
		Blobs:        blobs,
		Orchestrator: orch,
		Exporter:     export.NewService(cases, logger),
		templates:    closer,
		logger:       logger,
	}, nil
}

// Close drains the in-process queue and releases the database and template watcher.
func (c *Components) Close(ctx context.Context) {
	c.Orchestrator.Shutdown(ctx)
	if c.templates != nil {
		if err := c.templates.Close(); err != nil {
			c.logger.Warn("templates.close.failed", "error", err)
		}
	}
	c.DB.Close(c.logger)
}

// NewExtractor builds the vision-first extraction engine. Without a vision key only
// the local engine runs.
func NewExtractor(cfg *common.Config, logger *slog.Logger) *extract.Engine {
	var vision llm.VisionGenerator
	if cfg.Vision.APIKey != "" {
		vision = gemini.NewClient(gemini.Config{
			APIKey:  cfg.Vision.APIKey,
			BaseURL: cfg.Vision.BaseURL,
			Model:   cfg.Vision.Model,
			Timeout: cfg.Vision.Timeout,
		}, logger)
	} else {
		logger.Warn("vision.disabled", "reason", "GEMINI_API_KEY not set")
	}
	local := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.Lang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           6,
	}, logger)
	return extract.NewEngine(vision, local, extract.Config{
		LocalTimeout: cfg.OCR.LocalTimeout,
		Parallelism:  cfg.OCR.Parallelism,
	}, logger)
}

// NewNarrator builds the generator with whichever providers have keys.
func NewNarrator(cfg *common.Config, logger *slog.Logger) *narrative.Generator {
	var fast, fallback llm.Completer
	if cfg.LLM.FastAPIKey != "" {
		fast = openai.NewClient(openai.Config{
			Name:        "groq",
			APIKey:      cfg.LLM.FastAPIKey,
			BaseURL:     cfg.LLM.FastBaseURL,
			Model:       cfg.LLM.FastModel,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}
	if cfg.LLM.FallbackAPIKey != "" {
		fallback = gemini.NewClient(gemini.Config{
			APIKey:      cfg.LLM.FallbackAPIKey,
			BaseURL:     cfg.LLM.FallbackBaseURL,
			Model:       cfg.LLM.FallbackModel,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}
	return narrative.NewGenerator(fast, fallback, narrative.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
}

func NewNormalizer(cfg *common.Config, logger *slog.Logger) *normalize.Normalizer {
	return normalize.NewNormalizer(normalize.Config{
		DefaultComarca: cfg.Legal.DefaultComarca,
		DefenderName:   cfg.Legal.DefenderName,
		MinimumWage:    cfg.Legal.MinimumWage,
		Now:            time.Now,
	}, logger)
}

// NewTemplateLoader chains the configured template source with the built-in defaults.
// The returned closer is nil unless a directory watcher was started.
func NewTemplateLoader(cfg common.TemplatesConfig, blobs storage.BlobStore, logger *slog.Logger) (assemble.TemplateLoader, io.Closer, error) {
	switch cfg.Source {
	case "blob":
		return assemble.Chain{assemble.NewBlobLoader(blobs, cfg.Prefix), assemble.BuiltinLoader{}}, nil, nil
	default:
		fs, err := assemble.NewFSLoader(cfg.Dir, cfg.Watch, logger)
		if err != nil {
			logger.Warn("templates.dir.unavailable", "dir", cfg.Dir, "error", err)
			return assemble.BuiltinLoader{}, nil, nil
		}
		return assemble.Chain{fs, assemble.BuiltinLoader{}}, fs, nil
	}
}
