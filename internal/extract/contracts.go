package extract

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/ocr"
)

// LocalEngine is the on-host OCR fallback for raster images.
type LocalEngine interface {
	Recognize(ctx context.Context, data []byte, mediaType string) (ocr.Result, error)
}

var (
	// ErrUnsupported marks media the engine skips (neither image nor PDF).
	ErrUnsupported = errors.New("unsupported media type")
	// ErrLocalTimeout is returned when the local engine exceeds its timeout.
	ErrLocalTimeout = errors.New("local ocr timed out")
	// ErrNoProvider is returned when no engine can handle the input.
	ErrNoProvider = errors.New("no extraction provider available")
)

// Method names recorded on results.
const (
	MethodVision = "vision"
	MethodLocal  = "local-ocr"
)

type Result struct {
	Text     string
	Method   string
	Duration time.Duration
	Warnings []string
}

// Document is one input to ExtractAll. When Data is nil, Load fetches it inside the worker.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
	Load      func(ctx context.Context) ([]byte, error)
}

// DocResult is the per-document outcome of ExtractAll.
type DocResult struct {
	Index   int
	Name    string
	Method  string
	Chars   int
	Skipped bool
	Err     error
}

// Report aggregates ExtractAll results in submission order.
type Report struct {
	Text    string
	Results []DocResult
}

// Failures returns the documents that failed (skips excluded).
func (r Report) Failures() []DocResult {
	var out []DocResult
	for _, d := range r.Results {
		if d.Err != nil && !d.Skipped {
			out = append(out, d)
		}
	}
	return out
}
