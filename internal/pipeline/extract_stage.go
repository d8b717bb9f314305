package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/extract"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

// ExtractStage downloads the case documents and runs them through the extractor.
type ExtractStage struct {
	Blobs     storage.BlobStore
	Extractor Extractor
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Run never fails: per-document problems are reported and the document is left out.
func (s *ExtractStage) Run(ctx context.Context, c *entity.Case) extract.Report {
	if len(c.Documents) == 0 || s.Extractor == nil {
		return extract.Report{}
	}
	docs := make([]extract.Document, 0, len(c.Documents))
	for _, ref := range c.Documents {
		name := ref.Name
		if name == "" {
			name = ref.Key
		}
		mediaType := ref.MediaType
		if mediaType == "" {
			mediaType = constants.MediaTypeFromPath(name)
		}
		docs = append(docs, extract.Document{
			Name:      name,
			MediaType: mediaType,
			Load: func(ctx context.Context) ([]byte, error) {
				dctx, cancel := common.WithTimeout(ctx, s.Timeout)
				defer cancel()
				return s.Blobs.Download(dctx, ref.Key)
			},
		})
	}

	report := s.Extractor.ExtractAll(ctx, docs)
	for _, f := range report.Failures() {
		s.Logger.Warn("pipeline.extract.document_failed", "protocol", c.Protocol, "document", f.Name, "error", f.Err)
	}
	s.Logger.Info("pipeline.extract.done", "protocol", c.Protocol, "documents", len(docs), "failures", len(report.Failures()), "chars", len(report.Text))
	return report
}
