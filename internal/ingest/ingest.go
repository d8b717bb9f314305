// Package ingest creates cases from a drop folder: one subdirectory per protocol
// holding form.json and the citizen's documents.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
)

// FormFile is the payload file every case directory must contain.
const FormFile = "form.json"

// IngestionResult is the per-directory intake outcome.
type IngestionResult struct {
	SourcePath string
	Protocol   string
	Documents  int
	// Duplicates counts files skipped because their content was already uploaded for the case.
	Duplicates int
	// Existing is set when the case was already known; nothing is uploaded then.
	Existing   bool
	IngestedAt time.Time
	Err        string
}

// DirStats summarizes a drop-folder scan.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Existing  uint32
	Failed    uint32
}

// CaseStore is the slice of the case repository intake needs.
type CaseStore interface {
	Create(ctx context.Context, c *entity.Case) error
	Get(ctx context.Context, protocol string) (*entity.Case, error)
}
