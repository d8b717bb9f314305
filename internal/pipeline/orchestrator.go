// Package pipeline runs a case from stored form and documents to a drafted petition,
// guarding the case status so at most one run is active per case.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/async"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/narrative"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/repository"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

const maxErrorMessage = 2000

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Cases      repository.CaseRepository
	Blobs      storage.BlobStore
	Extractor  Extractor
	Normalizer *normalize.Normalizer
	Narrator   Narrator
	Assembler  DocumentAssembler
}

type Orchestrator struct {
	cases   repository.CaseRepository
	blobs   storage.BlobStore
	extract *ExtractStage
	draft   *DraftStage
	queue   *async.ProcessorQueue
	cfg     Config
	logger  *slog.Logger
}

// New wires the stages and starts the in-process queue used by Enqueue. Call Shutdown to stop it.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	o := &Orchestrator{
		cases: deps.Cases,
		blobs: deps.Blobs,
		extract: &ExtractStage{
			Blobs:     deps.Blobs,
			Extractor: deps.Extractor,
			Timeout:   cfg.StorageTimeout,
			Logger:    logger,
		},
		draft: &DraftStage{
			Normalizer: deps.Normalizer,
			Narrator:   deps.Narrator,
			Assembler:  deps.Assembler,
			Blobs:      deps.Blobs,
			Timeout:    cfg.StorageTimeout,
			Logger:     logger,
		},
		cfg:    cfg,
		logger: logger,
	}
	o.queue = async.NewProcessorQueue(o.HandleJob, logger,
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(cfg.QueueSize),
		async.WithProcessTimeout(cfg.ProcessTimeout),
	)
	return o
}

// Run processes one case synchronously. A case already processed or being processed
// is skipped with a nil error; an unknown case returns a not-found error; a failed run
// leaves the case in erro and returns the cause.
func (o *Orchestrator) Run(ctx context.Context, protocol string) (Outcome, error) {
	start := time.Now()
	ctx = common.WithProtocol(ctx, protocol)
	out := Outcome{Protocol: protocol}

	now := o.cfg.Now()
	var staleBefore *time.Time
	if o.cfg.StaleAfter > 0 {
		t := now.Add(-o.cfg.StaleAfter)
		staleBefore = &t
	}
	claimed, err := o.cases.TryStartProcessing(ctx, protocol, now, staleBefore)
	if err != nil {
		return out, err
	}
	if !claimed {
		c, err := o.cases.Get(ctx, protocol)
		if err != nil {
			return out, err
		}
		out.Status = c.Status
		out.Skipped = true
		if c.Status == constants.StatusProcessed || (c.ProcessedAt != nil && c.Status != constants.StatusProcessing) {
			out.Reason = "already processed"
		} else {
			out.Reason = "run already in progress"
		}
		o.logger.Info("pipeline.run.skipped", "protocol", protocol, "status", c.Status, "reason", out.Reason)
		return out, nil
	}

	o.logger.Info("pipeline.run.start", "protocol", protocol)
	err = o.process(ctx, protocol, &out)
	out.Duration = time.Since(start)
	if err != nil {
		out.Status = constants.StatusFailed
		o.fail(ctx, protocol, err)
		return out, err
	}
	o.logger.Info("pipeline.run.done", "protocol", protocol, "narrative_source", out.NarrativeSource, "duration_ms", out.Duration.Milliseconds())
	return out, nil
}

func (o *Orchestrator) process(ctx context.Context, protocol string, out *Outcome) error {
	c, err := o.cases.Get(ctx, protocol)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}

	report := o.extract.Run(ctx, c)
	for _, f := range report.Failures() {
		out.Failures = append(out.Failures, f.Name)
	}

	p := o.draft.Payload(c)
	res, err := o.draft.Narrative(ctx, p, report.Text)
	if err != nil {
		return err
	}
	key, err := o.draft.Store(ctx, constants.DocPetition, p, res.Text)
	if err != nil {
		return err
	}

	err = o.cases.MarkProcessed(ctx, protocol, repository.ProcessedResult{
		ExtractedText:   report.Text,
		Narrative:       res.Text,
		NarrativeSource: string(res.Source),
		PetitionKey:     key,
		At:              o.cfg.Now(),
	})
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	out.Status = constants.StatusProcessed
	out.NarrativeSource = res.Source
	out.DocumentKey = key
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, protocol string, cause error) {
	msg := cause.Error()
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	// record the failure even if the run's context is gone
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.cases.MarkFailed(mctx, protocol, msg, o.cfg.Now()); err != nil {
		o.logger.Error("pipeline.mark_failed.failed", "protocol", protocol, "error", err)
	}
	o.logger.Error("pipeline.run.failed", "protocol", protocol, "error", cause)
}

// HandleJob adapts Run to the job queues. Unknown cases are permanent failures.
func (o *Orchestrator) HandleJob(ctx context.Context, job async.Job) error {
	_, err := o.Run(ctx, job.Protocol)
	if errors.Is(err, common.ErrNotFound) {
		return async.Permanent(err)
	}
	return err
}

// Enqueue schedules a run and returns immediately.
func (o *Orchestrator) Enqueue(ctx context.Context, protocol, source string) error {
	if err := common.NewValidator().Field("protocol", protocol, common.Required, common.Protocol).Err(); err != nil {
		return err
	}
	if err := o.queue.Enqueue(ctx, async.NewJob(protocol, source)); err != nil {
		return common.NewAppError("QUEUE_UNAVAILABLE", "enqueue "+protocol, errors.Join(common.ErrUnavailable, err))
	}
	return nil
}

// Reprocess resets the case to recebido and schedules a run. force also resets processed
// cases and cases left in processando by an abandoned run.
func (o *Orchestrator) Reprocess(ctx context.Context, protocol string, force bool) error {
	if err := o.cases.ResetForReprocess(ctx, protocol, force, o.cfg.Now()); err != nil {
		return err
	}
	o.logger.Info("pipeline.reprocess.scheduled", "protocol", protocol, "force", force)
	return o.Enqueue(ctx, protocol, "reprocess")
}

// UpdateCase applies an administrative edit to the stored case. Cases being processed are refused.
func (o *Orchestrator) UpdateCase(ctx context.Context, protocol string, upd repository.CaseUpdate) error {
	return o.cases.Update(ctx, protocol, upd, o.cfg.Now())
}

// GenerateDocument (re)builds one document kind from the stored case and overwrites
// the canonical key. The stored narrative is reused; without one a new narrative is drafted.
func (o *Orchestrator) GenerateDocument(ctx context.Context, protocol string, kind constants.DocumentKind) (string, error) {
	c, err := o.cases.Get(ctx, protocol)
	if err != nil {
		return "", err
	}
	p := o.draft.Payload(c)

	var text string
	if c.Narrative != nil && *c.Narrative != "" {
		text = *c.Narrative
	} else if kind == constants.DocPetition {
		documents := ""
		if c.ExtractedText != nil {
			documents = *c.ExtractedText
		}
		res, err := o.draft.Narrative(ctx, p, documents)
		if err != nil {
			return "", err
		}
		text = res.Text
		if err := o.cases.SaveNarrative(ctx, protocol, res.Text, string(res.Source), o.cfg.Now()); err != nil {
			return "", err
		}
	}

	key, err := o.draft.Store(ctx, kind, p, text)
	if err != nil {
		return "", err
	}
	if err := o.cases.SetGeneratedDocument(ctx, protocol, kind, key, o.cfg.Now()); err != nil {
		return "", err
	}
	return key, nil
}

// AddComplementaryDocuments stores late uploads and attaches them to the case,
// moving it to documentos_entregues unless a run is in progress.
func (o *Orchestrator) AddComplementaryDocuments(ctx context.Context, protocol string, uploads []Upload) (constants.CaseStatus, error) {
	if len(uploads) == 0 {
		return "", common.NewAppError("NO_DOCUMENTS", "no documents uploaded", common.ErrInvalidInput)
	}
	if _, err := o.cases.Get(ctx, protocol); err != nil {
		return "", err
	}

	now := o.cfg.Now().UTC()
	refs := make([]entity.DocumentRef, 0, len(uploads))
	for _, u := range uploads {
		mediaType := u.MediaType
		if mediaType == "" || mediaType == "application/octet-stream" {
			mediaType = constants.MediaTypeFromPath(u.Name)
		}
		key := constants.ComplementaryKey(protocol, ulid.Make().String(), u.Name)
		uctx, cancel := common.WithTimeout(ctx, o.cfg.StorageTimeout)
		err := o.blobs.Upload(uctx, key, u.Data, mediaType)
		cancel()
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", key, err)
		}
		refs = append(refs, entity.DocumentRef{Key: key, Name: u.Name, MediaType: mediaType, UploadedAt: now, Late: true})
	}
	return o.cases.AppendDocuments(ctx, protocol, refs, now)
}

// PublicStatus returns the citizen-facing status of a case.
func (o *Orchestrator) PublicStatus(ctx context.Context, protocol string) (StatusView, error) {
	c, err := o.cases.Get(ctx, protocol)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{Protocol: c.Protocol, Status: constants.PublicStatus(c.Status), UpdatedAt: c.UpdatedAt}, nil
}

// DocumentURL returns a time-limited download link for a generated document.
func (o *Orchestrator) DocumentURL(ctx context.Context, protocol string, kind constants.DocumentKind) (string, error) {
	c, err := o.cases.Get(ctx, protocol)
	if err != nil {
		return "", err
	}
	key := c.DocumentKey(kind)
	if key == "" {
		return "", common.NewAppError("DOCUMENT_NOT_GENERATED", fmt.Sprintf("%s not generated for %s", kind, protocol), common.ErrNotFound)
	}
	sctx, cancel := common.WithTimeout(ctx, o.cfg.StorageTimeout)
	defer cancel()
	return o.blobs.SignedURL(sctx, key, o.cfg.SignedURLTTL)
}

// SummarizeCase produces a short internal overview of a case.
func (o *Orchestrator) SummarizeCase(ctx context.Context, protocol string) (string, error) {
	c, err := o.cases.Get(ctx, protocol)
	if err != nil {
		return "", err
	}
	p := o.draft.Payload(c)
	text := p.Story
	if c.ExtractedText != nil && *c.ExtractedText != "" {
		text = strings.TrimSpace(text + "\n\n" + *c.ExtractedText)
	}
	if text == "" {
		return "", common.NewAppError("NOTHING_TO_SUMMARIZE", "case "+protocol+" has no text yet", common.ErrConflict)
	}
	return o.draft.Narrator.Summarize(common.WithProtocol(ctx, protocol), text, narrative.BuildPIIMap(p, text))
}

// Shutdown drains the in-process queue.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.queue.Shutdown(ctx)
}
