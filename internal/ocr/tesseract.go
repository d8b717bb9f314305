package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
)

// ErrNotRaster is returned for inputs the local engine cannot read.
var ErrNotRaster = errors.New("local ocr supports raster images only")

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "por"
	TessdataDir   string
	HeicConverter string
	PSM           int // e.g., 6 is good for uniform block of text
	OEM           int // 1 = LSTM; leave 0 to use default
}

type Result struct {
	Text       string
	Language   string
	Duration   time.Duration
	Confidence float32
}

// Engine runs tesseract on in-memory images through a temp file.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Engine)

// WithRunner swaps the command runner (tests).
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "por"
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	e := &Engine{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Recognize extracts text from a raster image.
func (e *Engine) Recognize(ctx context.Context, data []byte, mediaType string) (Result, error) {
	start := time.Now()
	if constants.KindOf(mediaType) != constants.IMAGE {
		return Result{}, fmt.Errorf("%w: %s", ErrNotRaster, mediaType)
	}
	if len(data) == 0 {
		return Result{}, errors.New("empty image")
	}

	tmpDir, err := os.MkdirTemp("", "lap-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "input"+extFor(mediaType))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, err
	}
	if strings.Contains(mediaType, "heic") || strings.Contains(mediaType, "heif") {
		path, err = convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path)
		if err != nil {
			return Result{}, err
		}
	}

	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}

	txt := Normalize(string(out))
	res := Result{
		Text:       txt,
		Language:   e.cfg.TesseractLang,
		Duration:   time.Since(start),
		Confidence: heuristicConfidence(txt),
	}
	e.logger.Info("ocr.local.ok", "media_type", mediaType, "chars", len(txt),
		"confidence", res.Confidence, "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

func extFor(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tif"
	case "image/bmp":
		return ".bmp"
	case "image/gif":
		return ".gif"
	case "image/heic", "image/heif":
		return ".heic"
	}
	return ".img"
}
