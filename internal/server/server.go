// Package server exposes the pipeline over HTTP: the signed job webhook used by the
// intake trigger, administrative case operations and the public status lookup.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/pipeline"
	"github.com/joseph-ayodele/legalaid-petitions/internal/protocol"
	"github.com/joseph-ayodele/legalaid-petitions/internal/repository"
	"github.com/joseph-ayodele/legalaid-petitions/internal/schema"
)

const maxWebhookBodyBytes = 1 << 20

// Pipeline is the set of case operations served over HTTP.
type Pipeline interface {
	Run(ctx context.Context, protocol string) (pipeline.Outcome, error)
	Reprocess(ctx context.Context, protocol string, force bool) error
	UpdateCase(ctx context.Context, protocol string, upd repository.CaseUpdate) error
	GenerateDocument(ctx context.Context, protocol string, kind constants.DocumentKind) (string, error)
	DocumentURL(ctx context.Context, protocol string, kind constants.DocumentKind) (string, error)
	AddComplementaryDocuments(ctx context.Context, protocol string, uploads []pipeline.Upload) (constants.CaseStatus, error)
	PublicStatus(ctx context.Context, protocol string) (pipeline.StatusView, error)
	SummarizeCase(ctx context.Context, protocol string) (string, error)
}

// Exporter renders case listings.
type Exporter interface {
	ExportCasesXLSX(ctx context.Context, filter entity.CaseFilter) ([]byte, error)
}

type Config struct {
	// WebhookSecret enables X-Signature verification on the job webhook when set.
	WebhookSecret string
	RunTimeout    time.Duration
	// MaxUploadBytes bounds a complementary upload request; default 32MB.
	MaxUploadBytes int64
}

type Server struct {
	pipe     Pipeline
	exporter Exporter
	cfg      Config
	logger   *slog.Logger
}

func New(pipe Pipeline, exporter Exporter, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Server{pipe: pipe, exporter: exporter, cfg: cfg, logger: logger}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhooks/jobs", s.handleJob)
	r.Get("/cases/export.xlsx", s.handleExport)
	r.Route("/cases/{protocol}", func(r chi.Router) {
		r.Use(validProtocol)
		r.Patch("/", s.handleUpdate)
		r.Post("/reprocess", s.handleReprocess)
		r.Get("/status", s.handleStatus)
		r.Get("/summary", s.handleSummary)
		r.Post("/documents", s.handleUpload)
		r.Post("/documents/{kind}", s.handleGenerate)
		r.Get("/documents/{kind}/url", s.handleDocumentURL)
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

func validProtocol(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := chi.URLParam(r, "protocol")
		if !protocol.Valid(p) {
			writeErrorCode(w, r, http.StatusBadRequest, "INVALID_PROTOCOL", "malformed protocol")
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithProtocol(r.Context(), p)))
	})
}

// handleJob runs a case synchronously. Failures answer 500 so the trigger retries.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorCode(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload exceeds 1MB")
			return
		}
		writeErrorCode(w, r, http.StatusBadRequest, "BAD_BODY", err.Error())
		return
	}
	if s.cfg.WebhookSecret != "" && !verifySignature(r.Header, raw, s.cfg.WebhookSecret) {
		s.logger.Warn("webhook.signature.rejected", "remote", r.RemoteAddr)
		writeErrorCode(w, r, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature mismatch")
		return
	}
	job, err := schema.DecodeJob(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := common.WithTimeout(r.Context(), s.cfg.RunTimeout)
	defer cancel()
	s.logger.Info("webhook.job.received", "protocol", job.Protocol, "attempt", job.Attempt, "source", job.Source)
	out, err := s.pipe.Run(ctx, job.Protocol)
	if err != nil {
		s.logger.Error("webhook.job.failed", "protocol", job.Protocol, "error", err)
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, r, err)
			return
		}
		writeErrorCode(w, r, http.StatusInternalServerError, "RUN_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "protocol")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := s.pipe.Reprocess(r.Context(), p, force); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"protocol": p, "status": constants.StatusReceived, "scheduled": true})
}

// caseEdit is the PATCH body; absent fields are left untouched.
type caseEdit struct {
	FormPayload json.RawMessage       `json:"form_payload,omitempty"`
	ActionType  string                `json:"action_type,omitempty"`
	Documents   *[]entity.DocumentRef `json:"documents,omitempty"`
}

var editCPFFields = []string{"cpf_representante", "cpf_requerido", "cpf_assistido"}

func (e caseEdit) validate() error {
	v := common.NewValidator().Field("action_type", e.ActionType, common.MaxLength(64))
	if e.Documents != nil {
		for i, d := range *e.Documents {
			field := fmt.Sprintf("documents[%d]", i)
			v.Field(field+".key", d.Key, common.Required, common.MaxLength(512))
			v.Field(field+".name", d.Name, common.MaxLength(255))
		}
	}
	if len(e.FormPayload) > 0 {
		// malformed JSON is rejected by the store
		var fields map[string]any
		if json.Unmarshal(e.FormPayload, &fields) == nil {
			for _, k := range editCPFFields {
				v.Field("form_payload."+k, fields[k], common.CPF)
			}
		}
	}
	return v.Err()
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "protocol")
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	var edit caseEdit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&edit); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "BAD_BODY", err.Error())
		return
	}
	if err := edit.validate(); err != nil {
		writeError(w, r, err)
		return
	}
	upd := repository.CaseUpdate{FormPayload: edit.FormPayload, Documents: edit.Documents}
	if edit.ActionType != "" {
		action, ok := constants.Canonicalize(edit.ActionType)
		if !ok {
			writeErrorCode(w, r, http.StatusBadRequest, "INVALID_ACTION", "unknown action type "+edit.ActionType)
			return
		}
		upd.ActionType = &action
	}
	if err := s.pipe.UpdateCase(r.Context(), p, upd); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.pipe.PublicStatus(r.Context(), chi.URLParam(r, "protocol"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "protocol")
	summary, err := s.pipe.SummarizeCase(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"protocol": p, "summary": summary})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "protocol")
	kind, err := constants.ParseDocumentKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}
	key, err := s.pipe.GenerateDocument(r.Context(), p, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"protocol": p, "kind": string(kind), "key": key})
}

func (s *Server) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "protocol")
	kind, err := constants.ParseDocumentKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}
	url, err := s.pipe.DocumentURL(r.Context(), p, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"protocol": p, "kind": string(kind), "url": url})
}
