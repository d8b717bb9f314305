package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
)

const xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExport streams a case spreadsheet. Query: status (repeatable or comma separated),
// from and to (YYYY-MM-DD), limit.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeErrorCode(w, r, http.StatusNotImplemented, "EXPORT_DISABLED", "export not configured")
		return
	}
	q := r.URL.Query()
	var filter entity.CaseFilter
	for _, raw := range q["status"] {
		for _, v := range strings.Split(raw, ",") {
			st := constants.CaseStatus(strings.TrimSpace(v))
			if st == "" {
				continue
			}
			if !st.Valid() {
				writeErrorCode(w, r, http.StatusBadRequest, "INVALID_STATUS", "unknown status "+string(st))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	var err error
	if filter.From, err = parseDay(q.Get("from")); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
		return
	}
	if filter.To, err = parseDay(q.Get("to")); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD")
		return
	}
	// only from -> from..today
	if filter.From != nil && filter.To == nil {
		today := time.Now().UTC()
		to := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		filter.To = &to
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrorCode(w, r, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	xlsx, err := s.exporter.ExportCasesXLSX(r.Context(), filter)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		writeError(w, r, err)
		return
	}
	w.Header().Set("content-type", xlsxMediaType)
	w.Header().Set("content-disposition", `attachment; filename="casos.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func parseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
