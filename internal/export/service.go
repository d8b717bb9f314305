// Package export renders case listings as spreadsheets for the defender's office.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
)

// CaseLister is the slice of the case store the export needs.
type CaseLister interface {
	List(ctx context.Context, filter entity.CaseFilter) ([]*entity.Case, error)
}

// Service produces XLSX bytes for case exports.
type Service struct {
	cases  CaseLister
	logger *slog.Logger
}

func NewService(cases CaseLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cases: cases, logger: logger}
}

const sheet = "Casos"

var headers = []string{
	"Protocolo",
	"Tipo de Ação",
	"Status Público",
	"Status Interno",
	"Recebido em",
	"Processado em",
	"Atualizado em",
	"Origem da Narrativa",
	"Erro",
	"Mensagem de Erro",
}

// ExportCasesXLSX returns a workbook with one row per case matching filter.
// Dates in the filter are widened to whole UTC days.
func (s *Service) ExportCasesXLSX(ctx context.Context, filter entity.CaseFilter) ([]byte, error) {
	start := time.Now()

	if filter.From != nil {
		f := time.Date(filter.From.Year(), filter.From.Month(), filter.From.Day(), 0, 0, 0, 0, time.UTC)
		filter.From = &f
	}
	if filter.To != nil {
		t := time.Date(filter.To.Year(), filter.To.Month(), filter.To.Day(), 23, 59, 59, 0, time.UTC)
		filter.To = &t
	}

	cases, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, bold)
	}

	row := 2
	for _, c := range cases {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, c.Protocol)
		write(2, c.ActionType.Title())
		write(3, constants.PublicStatus(c.Status))
		write(4, string(c.Status))
		write(5, formatTime(&c.CreatedAt))
		write(6, formatTime(c.ProcessedAt))
		write(7, formatTime(&c.UpdatedAt))
		write(8, deref(c.NarrativeSource))
		if c.Status == constants.StatusFailed {
			write(9, "sim")
		} else {
			write(9, "não")
		}
		write(10, truncate(deref(c.ErrorMessage), 200))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // protocol
	_ = f.SetColWidth(sheet, "B", "B", 30)
	_ = f.SetColWidth(sheet, "C", "C", 44)
	_ = f.SetColWidth(sheet, "D", "D", 22)
	_ = f.SetColWidth(sheet, "E", "G", 18) // timestamps
	_ = f.SetColWidth(sheet, "H", "I", 12)
	_ = f.SetColWidth(sheet, "J", "J", 60)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(cases),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("02/01/2006 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
