package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/narrative"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/schema"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

// DraftStage normalizes the form, drafts the narrative and stores generated documents.
type DraftStage struct {
	Normalizer *normalize.Normalizer
	Narrator   Narrator
	Assembler  DocumentAssembler
	Blobs      storage.BlobStore
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Payload normalizes the stored form. Malformed forms degrade to an empty payload.
func (s *DraftStage) Payload(c *entity.Case) *normalize.CasePayload {
	if err := schema.Validate(schema.Form, c.FormPayload); err != nil && len(c.FormPayload) > 0 {
		s.Logger.Warn("pipeline.form.schema_mismatch", "protocol", c.Protocol, "error", err)
	}
	p, err := s.Normalizer.Normalize(c.Protocol, c.FormPayload)
	if err != nil {
		s.Logger.Warn("pipeline.form.unreadable", "protocol", c.Protocol, "error", err)
		p = s.Normalizer.NormalizeMap(c.Protocol, map[string]any{})
	}
	if c.ActionType != "" {
		p.Action = c.ActionType
	}
	return p
}

// Narrative drafts the facts section from the payload and the extracted text.
func (s *DraftStage) Narrative(ctx context.Context, p *normalize.CasePayload, documents string) (narrative.Result, error) {
	res, err := s.Narrator.Generate(ctx, p, documents)
	if err != nil {
		return res, fmt.Errorf("narrative: %w", err)
	}
	return res, nil
}

// Store assembles kind and uploads it to its canonical key, overwriting any previous version.
func (s *DraftStage) Store(ctx context.Context, kind constants.DocumentKind, p *normalize.CasePayload, narrativeText string) (string, error) {
	doc, err := s.Assembler.Assemble(ctx, kind, p, narrativeText)
	if err != nil {
		return "", fmt.Errorf("assemble %s: %w", kind, err)
	}
	key := constants.DocumentKey(p.Protocol, kind)
	uctx, cancel := common.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.Blobs.Upload(uctx, key, doc, constants.DocxMediaType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.Logger.Info("pipeline.document.stored", "protocol", p.Protocol, "kind", kind, "key", key, "bytes", len(doc))
	return key, nil
}
