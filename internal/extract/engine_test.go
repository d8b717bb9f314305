package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/ocr"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeVision struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	byHit map[string]string
}

func (f *fakeVision) Generate(_ context.Context, prompt string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if t, ok := f.byHit[string(data)]; ok {
		return t, nil
	}
	return f.text, nil
}

type fakeLocal struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	block bool
}

func (f *fakeLocal) Recognize(ctx context.Context, _ []byte, _ string) (ocr.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		time.Sleep(5 * time.Second)
	}
	return ocr.Result{Text: f.text}, f.err
}

func TestExtractUsesVisionFirst(t *testing.T) {
	v := &fakeVision{text: "texto da certidão"}
	l := &fakeLocal{text: "local"}
	e := NewEngine(v, l, Config{}, discard)

	res, err := e.Extract(context.Background(), []byte("img"), "image/jpeg", "certidao.jpg")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Method != MethodVision || res.Text != "texto da certidão" {
		t.Fatalf("unexpected result %#v", res)
	}
	if l.calls != 0 {
		t.Fatalf("local engine must not run when vision succeeds")
	}
}

func TestExtractFallsBackToLocalForImages(t *testing.T) {
	v := &fakeVision{err: errors.New("503")}
	l := &fakeLocal{text: "texto local"}
	e := NewEngine(v, l, Config{}, discard)

	res, err := e.Extract(context.Background(), []byte("img"), "image/png", "rg.png")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Method != MethodLocal || res.Text != "texto local" || len(res.Warnings) != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestExtractPDFFailurePropagates(t *testing.T) {
	v := &fakeVision{err: errors.New("vision down")}
	l := &fakeLocal{text: "never"}
	e := NewEngine(v, l, Config{}, discard)

	_, err := e.Extract(context.Background(), []byte("%PDF"), "application/pdf", "comprovante.pdf")
	if err == nil || !strings.Contains(err.Error(), "vision down") {
		t.Fatalf("expected vision error, got %v", err)
	}
	if l.calls != 0 {
		t.Fatalf("local engine must not run for PDFs")
	}
}

func TestExtractUnsupportedIsSkipped(t *testing.T) {
	e := NewEngine(&fakeVision{text: "x"}, &fakeLocal{}, Config{}, discard)
	_, err := e.Extract(context.Background(), []byte("x"), "application/zip", "a.zip")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestExtractLocalTimeout(t *testing.T) {
	v := &fakeVision{err: errors.New("down")}
	l := &fakeLocal{block: true}
	e := NewEngine(v, l, Config{LocalTimeout: 30 * time.Millisecond}, discard)

	start := time.Now()
	_, err := e.Extract(context.Background(), []byte("img"), "image/jpeg", "foto.jpg")
	if !errors.Is(err, ErrLocalTimeout) {
		t.Fatalf("expected ErrLocalTimeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("caller was blocked by a hung local engine")
	}
}

func TestExtractAllKeepsSubmissionOrder(t *testing.T) {
	v := &fakeVision{byHit: map[string]string{"a": "texto A", "b": "texto B", "c": "texto C"}}
	e := NewEngine(v, &fakeLocal{}, Config{Parallelism: 3}, discard)

	docs := []Document{
		{Name: "a.jpg", MediaType: "image/jpeg", Data: []byte("a")},
		{Name: "planilha.xlsx", MediaType: "application/vnd.ms-excel", Data: []byte("z")},
		{Name: "b.pdf", MediaType: "application/pdf", Load: func(context.Context) ([]byte, error) { return []byte("b"), nil }},
		{Name: "perdido.jpg", MediaType: "image/jpeg", Load: func(context.Context) ([]byte, error) { return nil, errors.New("gone") }},
		{Name: "c.png", MediaType: "image/png", Data: []byte("c")},
	}
	rep := e.ExtractAll(context.Background(), docs)

	want := "=== Documento 1: a.jpg ===\ntexto A\n\n=== Documento 3: b.pdf ===\ntexto B\n\n=== Documento 5: c.png ===\ntexto C"
	if rep.Text != want {
		t.Fatalf("text = %q\nwant %q", rep.Text, want)
	}
	if !rep.Results[1].Skipped {
		t.Fatalf("unsupported document should be skipped: %#v", rep.Results[1])
	}
	fails := rep.Failures()
	if len(fails) != 1 || fails[0].Name != "perdido.jpg" {
		t.Fatalf("failures = %#v", fails)
	}
}
