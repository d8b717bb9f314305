package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/pipeline"
	"github.com/joseph-ayodele/legalaid-petitions/internal/repository"
)

const testProtocol = "202610171000001"

type fakePipeline struct {
	runErr      error
	runCalls    int
	lastRun     string
	reprocessed string
	force       bool
	uploads     []pipeline.Upload
	generated   constants.DocumentKind
	update      *repository.CaseUpdate
}

func (f *fakePipeline) Run(ctx context.Context, protocol string) (pipeline.Outcome, error) {
	f.runCalls++
	f.lastRun = protocol
	if f.runErr != nil {
		return pipeline.Outcome{Protocol: protocol, Status: constants.StatusFailed}, f.runErr
	}
	return pipeline.Outcome{Protocol: protocol, Status: constants.StatusProcessed}, nil
}

func (f *fakePipeline) Reprocess(ctx context.Context, protocol string, force bool) error {
	f.reprocessed = protocol
	f.force = force
	return nil
}

func (f *fakePipeline) UpdateCase(ctx context.Context, protocol string, upd repository.CaseUpdate) error {
	f.update = &upd
	return nil
}

func (f *fakePipeline) GenerateDocument(ctx context.Context, protocol string, kind constants.DocumentKind) (string, error) {
	f.generated = kind
	return constants.DocumentKey(protocol, kind), nil
}

func (f *fakePipeline) DocumentURL(ctx context.Context, protocol string, kind constants.DocumentKind) (string, error) {
	return "", common.NewAppError("DOCUMENT_NOT_GENERATED", "not generated", common.ErrNotFound)
}

func (f *fakePipeline) AddComplementaryDocuments(ctx context.Context, protocol string, uploads []pipeline.Upload) (constants.CaseStatus, error) {
	f.uploads = uploads
	return constants.StatusDocumentsDelivered, nil
}

func (f *fakePipeline) PublicStatus(ctx context.Context, protocol string) (pipeline.StatusView, error) {
	return pipeline.StatusView{Protocol: protocol, Status: constants.PublicStatus(constants.StatusFailed)}, nil
}

func (f *fakePipeline) SummarizeCase(ctx context.Context, protocol string) (string, error) {
	return "resumo", nil
}

type fakeExporter struct {
	filter entity.CaseFilter
}

func (f *fakeExporter) ExportCasesXLSX(ctx context.Context, filter entity.CaseFilter) ([]byte, error) {
	f.filter = filter
	return []byte("PK"), nil
}

func newTestServer(pipe *fakePipeline, secret string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(pipe, &fakeExporter{}, Config{WebhookSecret: secret}, logger).Routes()
}

func TestWebhookRunsCase(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "secret")
	body := []byte(`{"protocol":"` + testProtocol + `"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("secret", body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if pipe.lastRun != testProtocol {
		t.Fatalf("run protocol = %q", pipe.lastRun)
	}
	var out pipeline.Outcome
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != constants.StatusProcessed {
		t.Fatalf("status = %q", out.Status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "secret")
	body := []byte(`{"protocol":"` + testProtocol + `"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("other", body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if pipe.runCalls != 0 {
		t.Fatalf("run should not be called")
	}
}

func TestWebhookRejectsInvalidBody(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", strings.NewReader(`{"protocol":"abc"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	if pipe.runCalls != 0 {
		t.Fatalf("run should not be called")
	}
}

func TestWebhookStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown case", common.NewAppError("CASE_NOT_FOUND", "case", common.ErrNotFound), http.StatusNotFound},
		{"run failed", errors.New("narrative: boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(&fakePipeline{runErr: tc.err}, "")
			req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", strings.NewReader(`{"protocol":"`+testProtocol+`"}`))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestReprocessAccepted(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "")

	req := httptest.NewRequest(http.MethodPost, "/cases/"+testProtocol+"/reprocess?force=true", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if pipe.reprocessed != testProtocol || !pipe.force {
		t.Fatalf("reprocess = %q force=%v", pipe.reprocessed, pipe.force)
	}
}

func TestMalformedProtocolRejected(t *testing.T) {
	h := newTestServer(&fakePipeline{}, "")
	req := httptest.NewRequest(http.MethodGet, "/cases/123/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPublicStatus(t *testing.T) {
	h := newTestServer(&fakePipeline{}, "")
	req := httptest.NewRequest(http.MethodGet, "/cases/"+testProtocol+"/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var view pipeline.StatusView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != "Em processamento" {
		t.Fatalf("status = %q", view.Status)
	}
}

func TestUploadComplementaryDocuments(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(uploadField, "comprovante.pdf")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/cases/"+testProtocol+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(pipe.uploads) != 1 || pipe.uploads[0].Name != "comprovante.pdf" || string(pipe.uploads[0].Data) != "%PDF-1.4" {
		t.Fatalf("uploads = %#v", pipe.uploads)
	}
}

func TestGenerateDocumentKinds(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "")

	req := httptest.NewRequest(http.MethodPost, "/cases/"+testProtocol+"/documents/termo_declaracao", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || pipe.generated != constants.DocDeclaration {
		t.Fatalf("code = %d kind = %q", rr.Code, pipe.generated)
	}

	req = httptest.NewRequest(http.MethodPost, "/cases/"+testProtocol+"/documents/procuracao", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rr.Code)
	}
}

func TestDocumentURLNotGenerated(t *testing.T) {
	h := newTestServer(&fakePipeline{}, "")
	req := httptest.NewRequest(http.MethodGet, "/cases/"+testProtocol+"/documents/peticao_inicial/url", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "DOCUMENT_NOT_GENERATED" || body.RequestID == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestExportFilters(t *testing.T) {
	exp := &fakeExporter{}
	h := New(&fakePipeline{}, exp, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes()

	req := httptest.NewRequest(http.MethodGet, "/cases/export.xlsx?status=erro,processado&from=2026-10-01&to=2026-10-17", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("content-type") != xlsxMediaType {
		t.Fatalf("content-type = %q", rr.Header().Get("content-type"))
	}
	if len(exp.filter.Statuses) != 2 || exp.filter.From == nil || exp.filter.To == nil {
		t.Fatalf("filter = %+v", exp.filter)
	}

	req = httptest.NewRequest(http.MethodGet, "/cases/export.xlsx?status=archived", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpdateCase(t *testing.T) {
	pipe := &fakePipeline{}
	h := newTestServer(pipe, "")

	body := `{"form_payload":{"nome_representante":"Maria"},"action_type":"fixacao_alimentos"}`
	req := httptest.NewRequest(http.MethodPatch, "/cases/"+testProtocol, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
	if pipe.update == nil || pipe.update.ActionType == nil || *pipe.update.ActionType != constants.ActionFixacaoAlimentos {
		t.Fatalf("update = %+v", pipe.update)
	}
	if !strings.Contains(string(pipe.update.FormPayload), "Maria") {
		t.Fatalf("payload = %s", pipe.update.FormPayload)
	}

	req = httptest.NewRequest(http.MethodPatch, "/cases/"+testProtocol, strings.NewReader(`{"status":"processado"}`))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}

func TestUpdateCaseRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad cpf", `{"form_payload":{"cpf_requerido":"123.456.789-00"}}`},
		{"empty document key", `{"documents":[{"key":"","name":"rg.jpg"}]}`},
		{"long action", `{"action_type":"` + strings.Repeat("a", 65) + `"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pipe := &fakePipeline{}
			h := newTestServer(pipe, "")
			req := httptest.NewRequest(http.MethodPatch, "/cases/"+testProtocol, strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("body = %+v", body)
			}
			if pipe.update != nil {
				t.Fatal("invalid edit reached the pipeline")
			}
		})
	}
}
