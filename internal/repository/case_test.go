package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
)

func newTestRepo(t *testing.T) CaseRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewCaseRepository(db, logger)
}

func seedCase(t *testing.T, repo CaseRepository, protocol string, status constants.CaseStatus) {
	t.Helper()
	err := repo.Create(context.Background(), &entity.Case{
		Protocol:    protocol,
		Status:      status,
		FormPayload: []byte(`{"nome_representante":"Maria"}`),
		Documents:   []entity.DocumentRef{{Key: protocol + "/rg.jpg", Name: "rg.jpg"}},
	})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	seedCase(t, repo, "202610171000001", constants.StatusReceived)

	c, err := repo.Get(context.Background(), "202610171000001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Status != constants.StatusReceived {
		t.Fatalf("status = %q", c.Status)
	}
	if len(c.Documents) != 1 || c.Documents[0].Name != "rg.jpg" {
		t.Fatalf("documents = %#v", c.Documents)
	}
	if string(c.FormPayload) != `{"nome_representante":"Maria"}` {
		t.Fatalf("payload = %s", c.FormPayload)
	}
}

func TestGetMissingCase(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "202610171000099")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTryStartProcessingClaimsOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000002", constants.StatusReceived)

	now := time.Now()
	ok, err := repo.TryStartProcessing(ctx, "202610171000002", now, nil)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = repo.TryStartProcessing(ctx, "202610171000002", now, nil)
	if err != nil {
		t.Fatalf("second claim error: %v", err)
	}
	if ok {
		t.Fatalf("second claim must not succeed while processando")
	}
	c, _ := repo.Get(ctx, "202610171000002")
	if c.Status != constants.StatusProcessing || c.ProcessingStartedAt == nil {
		t.Fatalf("unexpected case after claim: %#v", c)
	}
}

func TestTryStartProcessingSkipsProcessed(t *testing.T) {
	repo := newTestRepo(t)
	seedCase(t, repo, "202610171000003", constants.StatusProcessed)
	ok, err := repo.TryStartProcessing(context.Background(), "202610171000003", time.Now(), nil)
	if err != nil {
		t.Fatalf("claim error: %v", err)
	}
	if ok {
		t.Fatalf("processed case must not be claimed")
	}
}

func TestTryStartProcessingAllowsErroAndDelivered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, tc := range []struct {
		protocol string
		status   constants.CaseStatus
	}{
		{"202610171000004", constants.StatusFailed},
		{"202610171000005", constants.StatusDocumentsDelivered},
	} {
		seedCase(t, repo, tc.protocol, tc.status)
		ok, err := repo.TryStartProcessing(ctx, tc.protocol, time.Now(), nil)
		if err != nil || !ok {
			t.Fatalf("%s: claim = %v, %v", tc.status, ok, err)
		}
	}
}

func TestTryStartProcessingReclaimsStaleRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000006", constants.StatusReceived)

	started := time.Now().Add(-2 * time.Hour)
	if ok, err := repo.TryStartProcessing(ctx, "202610171000006", started, nil); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}

	fresh := time.Now().Add(-3 * time.Hour)
	if ok, _ := repo.TryStartProcessing(ctx, "202610171000006", time.Now(), &fresh); ok {
		t.Fatalf("run newer than the window must not be reclaimed")
	}
	stale := time.Now().Add(-time.Hour)
	if ok, err := repo.TryStartProcessing(ctx, "202610171000006", time.Now(), &stale); err != nil || !ok {
		t.Fatalf("stale reclaim = %v, %v", ok, err)
	}
}

func TestMarkProcessedAndFailed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000007", constants.StatusReceived)

	if err := repo.MarkProcessed(ctx, "202610171000007", ProcessedResult{At: time.Now()}); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("mark processed without claim: expected conflict, got %v", err)
	}

	if ok, _ := repo.TryStartProcessing(ctx, "202610171000007", time.Now(), nil); !ok {
		t.Fatalf("claim failed")
	}
	err := repo.MarkProcessed(ctx, "202610171000007", ProcessedResult{
		ExtractedText:   "texto",
		Narrative:       "DOS FATOS",
		NarrativeSource: "fast",
		PetitionKey:     "202610171000007/peticao_inicial_202610171000007.docx",
		At:              time.Now(),
	})
	if err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	c, _ := repo.Get(ctx, "202610171000007")
	if c.Status != constants.StatusProcessed || c.ProcessedAt == nil || c.FinishedAt == nil {
		t.Fatalf("unexpected case: %#v", c)
	}
	if c.DocumentKey(constants.DocPetition) != "202610171000007/peticao_inicial_202610171000007.docx" {
		t.Fatalf("petition key = %q", c.DocumentKey(constants.DocPetition))
	}

	if err := repo.MarkFailed(ctx, "202610171000007", "boom", time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	c, _ = repo.Get(ctx, "202610171000007")
	if c.Status != constants.StatusFailed || c.ErrorMessage == nil || *c.ErrorMessage != "boom" {
		t.Fatalf("unexpected failed case: %#v", c)
	}
}

func TestResetForReprocess(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000008", constants.StatusProcessed)

	if err := repo.ResetForReprocess(ctx, "202610171000008", false, time.Now()); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict for processed case, got %v", err)
	}
	if err := repo.ResetForReprocess(ctx, "202610171000008", true, time.Now()); err != nil {
		t.Fatalf("forced reset: %v", err)
	}
	c, _ := repo.Get(ctx, "202610171000008")
	if c.Status != constants.StatusReceived {
		t.Fatalf("status = %q", c.Status)
	}
	seedCase(t, repo, "202610171000018", constants.StatusProcessing)
	if err := repo.ResetForReprocess(ctx, "202610171000018", false, time.Now()); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict for running case, got %v", err)
	}
	if err := repo.ResetForReprocess(ctx, "202610171000018", true, time.Now()); err != nil {
		t.Fatalf("forced reset of stuck case: %v", err)
	}
	ok, err := repo.TryStartProcessing(ctx, "202610171000018", time.Now(), nil)
	if err != nil || !ok {
		t.Fatalf("claim after reset: ok=%v err=%v", ok, err)
	}

	if err := repo.ResetForReprocess(ctx, "202610171000077", true, time.Now()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendDocuments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000009", constants.StatusProcessed)

	status, err := repo.AppendDocuments(ctx, "202610171000009", []entity.DocumentRef{{Key: "k/extra.pdf", Name: "extra.pdf", Late: true}}, time.Now())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if status != constants.StatusDocumentsDelivered {
		t.Fatalf("status = %q", status)
	}
	c, _ := repo.Get(ctx, "202610171000009")
	if len(c.Documents) != 2 || !c.Documents[1].Late {
		t.Fatalf("documents = %#v", c.Documents)
	}

	seedCase(t, repo, "202610171000010", constants.StatusReceived)
	_, _ = repo.TryStartProcessing(ctx, "202610171000010", time.Now(), nil)
	status, err = repo.AppendDocuments(ctx, "202610171000010", []entity.DocumentRef{{Key: "k/late.jpg"}}, time.Now())
	if err != nil {
		t.Fatalf("append while processing: %v", err)
	}
	if status != constants.StatusProcessing {
		t.Fatalf("running case status must be kept, got %q", status)
	}
}

func TestListAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000011", constants.StatusReceived)
	seedCase(t, repo, "202610171000012", constants.StatusFailed)
	seedCase(t, repo, "202610171000013", constants.StatusFailed)

	failed, err := repo.List(ctx, entity.CaseFilter{Statuses: []constants.CaseStatus{constants.StatusFailed}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("len(failed) = %d", len(failed))
	}
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[constants.StatusFailed] != 2 || counts[constants.StatusReceived] != 1 {
		t.Fatalf("counts = %#v", counts)
	}
}

func TestUpdateRefusesRunningCase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedCase(t, repo, "202610171000009", constants.StatusFailed)

	guarda := constants.ActionGuarda
	err := repo.Update(ctx, "202610171000009", CaseUpdate{
		FormPayload: []byte(`{"nome_representante":"Maria Souza"}`),
		ActionType:  &guarda,
	}, time.Now())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	c, _ := repo.Get(ctx, "202610171000009")
	if string(c.FormPayload) != `{"nome_representante":"Maria Souza"}` || c.ActionType != constants.ActionGuarda {
		t.Fatalf("case = %+v", c)
	}

	if err := repo.Update(ctx, "202610171000009", CaseUpdate{FormPayload: []byte(`{broken`)}, time.Now()); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("invalid payload err = %v", err)
	}

	if ok, _ := repo.TryStartProcessing(ctx, "202610171000009", time.Now(), nil); !ok {
		t.Fatal("claim failed")
	}
	if err := repo.Update(ctx, "202610171000009", CaseUpdate{ActionType: &guarda}, time.Now()); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("running case err = %v", err)
	}
	if err := repo.Update(ctx, "999999999999999", CaseUpdate{ActionType: &guarda}, time.Now()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing case err = %v", err)
	}
}

func TestTryStartProcessingSkipsLateUploadsOnProcessedCase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const p = "202610171000020"
	seedCase(t, repo, p, constants.StatusReceived)

	if ok, err := repo.TryStartProcessing(ctx, p, time.Now(), nil); err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if err := repo.MarkProcessed(ctx, p, ProcessedResult{Narrative: "fatos", NarrativeSource: "local", At: time.Now()}); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	status, err := repo.AppendDocuments(ctx, p, []entity.DocumentRef{{Key: p + "/extra.pdf", Name: "extra.pdf", Late: true}}, time.Now())
	if err != nil || status != constants.StatusDocumentsDelivered {
		t.Fatalf("append: status=%q err=%v", status, err)
	}

	ok, err := repo.TryStartProcessing(ctx, p, time.Now(), nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ok {
		t.Fatal("processed case with late uploads must not be claimed by a redelivery")
	}

	if err := repo.ResetForReprocess(ctx, p, false, time.Now()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ok, err := repo.TryStartProcessing(ctx, p, time.Now(), nil); err != nil || !ok {
		t.Fatalf("claim after reset: ok=%v err=%v", ok, err)
	}
}
