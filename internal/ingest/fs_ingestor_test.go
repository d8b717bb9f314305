package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

type fakeCases struct {
	created map[string]*entity.Case
}

func (f *fakeCases) Create(ctx context.Context, c *entity.Case) error {
	f.created[c.Protocol] = c
	return nil
}

func (f *fakeCases) Get(ctx context.Context, protocol string) (*entity.Case, error) {
	if c, ok := f.created[protocol]; ok {
		return c, nil
	}
	return nil, common.NewAppError("CASE_NOT_FOUND", protocol, common.ErrNotFound)
}

func writeCase(t *testing.T, root, protocol string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, protocol)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newTestIngestor() (*FSIngestor, *fakeCases, *storage.MemoryStore) {
	cases := &fakeCases{created: map[string]*entity.Case{}}
	blobs := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFSIngestor(cases, blobs, time.Second, logger), cases, blobs
}

func TestIngestCaseCreatesCase(t *testing.T) {
	root := t.TempDir()
	dir := writeCase(t, root, "202610171000001", map[string]string{
		FormFile:        `{"nome_representante":"Maria"}`,
		"rg frente.jpg": "jpeg-bytes",
		"rg copia.jpg":  "jpeg-bytes",
		"certidao.pdf":  "%PDF-1.4",
		"anotacoes.txt": "ignored",
		".DS_Store":     "ignored",
	})
	ing, cases, blobs := newTestIngestor()

	res, err := ing.IngestCase(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Protocol != "202610171000001" || res.Documents != 2 || res.Duplicates != 1 {
		t.Fatalf("result = %+v", res)
	}
	c := cases.created["202610171000001"]
	if c == nil || c.Status != constants.StatusReceived {
		t.Fatalf("case = %+v", c)
	}
	if len(c.Documents) != 2 {
		t.Fatalf("documents = %#v", c.Documents)
	}
	if c.Documents[0].Name != "certidao.pdf" || c.Documents[0].MediaType != "application/pdf" {
		t.Fatalf("first document = %#v", c.Documents[0])
	}
	if _, err := blobs.Download(context.Background(), "202610171000001/certidao.pdf"); err != nil {
		t.Fatalf("blob missing: %v", err)
	}
}

func TestIngestCaseRejectsBadDirectories(t *testing.T) {
	root := t.TempDir()
	ing, _, _ := newTestIngestor()

	notObject := writeCase(t, root, "sem-protocolo", map[string]string{FormFile: `[1, 2]`})
	if _, err := ing.IngestCase(context.Background(), notObject); err == nil {
		t.Fatalf("expected form error")
	}
	noForm := writeCase(t, root, "202610171000002", map[string]string{"a.pdf": "x"})
	if _, err := ing.IngestCase(context.Background(), noForm); err == nil {
		t.Fatalf("expected missing form error")
	}
	badJSON := writeCase(t, root, "202610171000003", map[string]string{FormFile: `{nope`})
	if _, err := ing.IngestCase(context.Background(), badJSON); err == nil {
		t.Fatalf("expected invalid json error")
	}
}

func TestIngestDirectorySkipsExisting(t *testing.T) {
	root := t.TempDir()
	writeCase(t, root, "202610171000001", map[string]string{FormFile: `{}`, "a.png": "png"})
	writeCase(t, root, "202610171000002", map[string]string{FormFile: `{}`})
	writeCase(t, root, "rascunhos", map[string]string{"b.png": "png"})
	ing, _, _ := newTestIngestor()

	_, stats, err := ing.IngestDirectory(context.Background(), root, true)
	if err != nil {
		t.Fatalf("ingest dir: %v", err)
	}
	if stats.Matched != 2 || stats.Succeeded != 2 || stats.Existing != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	_, stats, err = ing.IngestDirectory(context.Background(), root, true)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if stats.Existing != 2 {
		t.Fatalf("second stats = %+v", stats)
	}
}

func TestWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	dir := writeCase(t, root, "202610171000001", map[string]string{FormFile: `{}`})
	writeCase(t, root, "202610171000002", map[string]string{"a.png": "png"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Root: root, InitialScan: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case got := <-events:
		if got != dir {
			t.Fatalf("event = %q, want %q", got, dir)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event for existing case directory")
	}
}

func TestIngestCaseMintsProtocolForUnnamedDirectory(t *testing.T) {
	root := t.TempDir()
	dir := writeCase(t, root, "maria-silva", map[string]string{
		FormFile: `{"nome_representante":"Maria","tipo_acao":"guarda"}`,
		"rg.jpg": "jpeg-bytes",
	})
	ing, cases, blobs := newTestIngestor()
	ing.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	cases.created["202610174000001"] = &entity.Case{Protocol: "202610174000001"}

	res, err := ing.IngestCase(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	const want = "202610174000002"
	if res.Protocol != want || res.Documents != 1 {
		t.Fatalf("result = %+v", res)
	}
	c := cases.created[want]
	if c == nil || c.ActionType != constants.ActionGuarda {
		t.Fatalf("case = %+v", c)
	}
	if _, err := blobs.Download(context.Background(), want+"/rg.jpg"); err != nil {
		t.Fatalf("blob missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, want, FormFile)); err != nil {
		t.Fatalf("directory not renamed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("old directory still present: %v", err)
	}

	again, err := ing.IngestCase(context.Background(), filepath.Join(root, want))
	if err != nil || !again.Existing {
		t.Fatalf("second ingest: res=%+v err=%v", again, err)
	}
}
