package pipeline

import (
	"context"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/extract"
	"github.com/joseph-ayodele/legalaid-petitions/internal/narrative"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/pii"
)

// Extractor turns the case documents into one text blob.
type Extractor interface {
	ExtractAll(ctx context.Context, docs []extract.Document) extract.Report
}

// Narrator drafts the facts section.
type Narrator interface {
	Generate(ctx context.Context, p *normalize.CasePayload, documents string) (narrative.Result, error)
	Summarize(ctx context.Context, text string, m *pii.Map) (string, error)
}

// DocumentAssembler renders a document kind to DOCX bytes.
type DocumentAssembler interface {
	Assemble(ctx context.Context, kind constants.DocumentKind, p *normalize.CasePayload, narrative string) ([]byte, error)
}

// Outcome summarizes one Run call.
type Outcome struct {
	Protocol        string               `json:"protocol"`
	Status          constants.CaseStatus `json:"status"`
	Skipped         bool                 `json:"skipped"`
	Reason          string               `json:"reason,omitempty"`
	NarrativeSource narrative.Source     `json:"narrative_source,omitempty"`
	DocumentKey     string               `json:"document_key,omitempty"`
	// Failures names documents whose extraction failed and were left out of the text.
	Failures []string      `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Upload is a complementary file delivered after intake.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// StatusView is what the public status page shows.
type StatusView struct {
	Protocol  string    `json:"protocol"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Config struct {
	StorageTimeout time.Duration
	SignedURLTTL   time.Duration // default 1h
	// StaleAfter lets a run reclaim a case stuck in processando for longer; 0 disables.
	StaleAfter time.Duration

	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration

	Now func() time.Time
}
