package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
)

// NarrativeField is the placeholder that receives the facts section.
const NarrativeField = "dos_fatos"

// DependentsLoop is the section repeated once per dependent.
const DependentsLoop = "dependentes"

type Assembler struct {
	loader TemplateLoader
	logger *slog.Logger
}

func NewAssembler(loader TemplateLoader, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{loader: loader, logger: logger}
}

// Assemble renders one document kind for a case and returns the DOCX bytes.
func (a *Assembler) Assemble(ctx context.Context, kind constants.DocumentKind, p *normalize.CasePayload, narrative string) ([]byte, error) {
	tpl, err := a.loader.Load(ctx, kind, p.Action)
	if err != nil {
		return nil, err
	}

	fields := p.TemplateFields()
	if narrative != "" {
		fields[NarrativeField] = narrative
	}
	out, rep, err := Merge(tpl, Data{
		Fields: fields,
		Loops:  map[string][]map[string]string{DependentsLoop: p.DependentItems()},
	})
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", kind, err)
	}
	if len(rep.Missing) > 0 {
		a.logger.Warn("assemble.pending_fields", "protocol", p.Protocol, "kind", kind, "fields", rep.Missing)
	}
	a.logger.Info("assemble.done", "protocol", p.Protocol, "kind", kind, "bytes", len(out))
	return out, nil
}
