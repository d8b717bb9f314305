package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
)

const casesTable = "legal_cases"

var caseColumns = []string{
	"protocol",
	"status",
	"action_type",
	"form_payload",
	"documents",
	"extracted_text",
	"narrative",
	"narrative_source",
	"petition_key",
	"declaration_key",
	"error_message",
	"created_at",
	"processing_started_at",
	"processed_at",
	"finished_at",
	"updated_at",
}

// ProcessedResult carries what a successful run persists.
type ProcessedResult struct {
	ExtractedText   string
	Narrative       string
	NarrativeSource string
	PetitionKey     string
	At              time.Time
}

// CaseUpdate is an administrative edit; nil fields are left untouched.
type CaseUpdate struct {
	FormPayload json.RawMessage
	ActionType  *constants.ActionType
	Documents   *[]entity.DocumentRef
}

type CaseRepository interface {
	Create(ctx context.Context, c *entity.Case) error
	Get(ctx context.Context, protocol string) (*entity.Case, error)
	// Update applies an administrative edit. Cases being processed are refused.
	Update(ctx context.Context, protocol string, upd CaseUpdate, now time.Time) error
	List(ctx context.Context, filter entity.CaseFilter) ([]*entity.Case, error)
	CountByStatus(ctx context.Context) (map[constants.CaseStatus]int, error)

	// TryStartProcessing atomically moves a runnable case to processando. A non-nil
	// staleBefore also lets a run claim a processando row that started before it.
	TryStartProcessing(ctx context.Context, protocol string, now time.Time, staleBefore *time.Time) (bool, error)
	MarkProcessed(ctx context.Context, protocol string, res ProcessedResult) error
	MarkFailed(ctx context.Context, protocol, message string, at time.Time) error
	ResetForReprocess(ctx context.Context, protocol string, force bool, now time.Time) error

	AppendDocuments(ctx context.Context, protocol string, docs []entity.DocumentRef, now time.Time) (constants.CaseStatus, error)
	SetGeneratedDocument(ctx context.Context, protocol string, kind constants.DocumentKind, key string, now time.Time) error
	SaveNarrative(ctx context.Context, protocol, narrative, source string, now time.Time) error
}

type caseRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCaseRepository(db *DB, logger *slog.Logger) CaseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &caseRepository{db: db, logger: logger}
}

func (r *caseRepository) Create(ctx context.Context, c *entity.Case) error {
	if c == nil || c.Protocol == "" {
		return common.NewAppError("INVALID_CASE", "protocol is required", common.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = constants.StatusReceived
	}
	if c.ActionType == "" {
		c.ActionType = constants.ActionFixacaoAlimentos
	}
	payload := string(c.FormPayload)
	if payload == "" {
		payload = "{}"
	}
	docs, err := encodeDocuments(c.Documents)
	if err != nil {
		return err
	}

	query, args := r.db.builder().Insert(casesTable).
		Columns("protocol", "status", "action_type", "form_payload", "documents", "created_at", "updated_at").
		Values(c.Protocol, string(c.Status), string(c.ActionType), payload, docs, c.CreatedAt.UTC(), c.UpdatedAt).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("case.create.failed", "protocol", c.Protocol, "error", err)
		return common.NewAppError("DB_ERROR", "insert case", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Info("case.created", "protocol", c.Protocol, "status", c.Status)
	return nil
}

func (r *caseRepository) Get(ctx context.Context, protocol string) (*entity.Case, error) {
	b := r.db.builder()
	query, args := b.Select(caseColumns...).
		From(b.Table(casesTable)).
		Where(entsql.EQ("protocol", protocol)).
		Query()
	cases, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("case.get.failed", "protocol", protocol, "error", err)
		return nil, err
	}
	if len(cases) == 0 {
		return nil, common.NewAppError("CASE_NOT_FOUND", "case "+protocol, common.ErrNotFound)
	}
	return cases[0], nil
}

func (r *caseRepository) Update(ctx context.Context, protocol string, upd CaseUpdate, now time.Time) error {
	stmt := r.db.builder().Update(casesTable).Set("updated_at", now.UTC())
	if upd.FormPayload != nil {
		if !json.Valid(upd.FormPayload) {
			return common.NewAppError("INVALID_CASE", "form payload is not valid JSON", common.ErrInvalidInput)
		}
		stmt = stmt.Set("form_payload", string(upd.FormPayload))
	}
	if upd.ActionType != nil {
		stmt = stmt.Set("action_type", string(*upd.ActionType))
	}
	if upd.Documents != nil {
		docs, err := encodeDocuments(*upd.Documents)
		if err != nil {
			return err
		}
		stmt = stmt.Set("documents", docs)
	}
	query, args := stmt.Where(entsql.And(
		entsql.EQ("protocol", protocol),
		entsql.NEQ("status", string(constants.StatusProcessing)),
	)).Query()

	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("case.update.failed", "protocol", protocol, "error", err)
		return err
	}
	if n == 1 {
		r.logger.Info("case.updated", "protocol", protocol)
		return nil
	}
	if _, err := r.Get(ctx, protocol); err != nil {
		return err
	}
	return common.NewAppError("CASE_BUSY", "case "+protocol+" is being processed", common.ErrConflict)
}

func (r *caseRepository) List(ctx context.Context, filter entity.CaseFilter) ([]*entity.Case, error) {
	b := r.db.builder()
	sel := b.Select(caseColumns...).From(b.Table(casesTable))

	var preds []*entsql.Predicate
	if len(filter.Statuses) > 0 {
		vals := make([]any, len(filter.Statuses))
		for i, s := range filter.Statuses {
			vals[i] = string(s)
		}
		preds = append(preds, entsql.In("status", vals...))
	}
	if filter.From != nil {
		preds = append(preds, entsql.GTE("created_at", filter.From.UTC()))
	}
	if filter.To != nil {
		preds = append(preds, entsql.LTE("created_at", filter.To.UTC()))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	sel = sel.OrderBy("created_at", "protocol")
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}
	query, args := sel.Query()
	cases, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("case.list.failed", "error", err)
		return nil, err
	}
	return cases, nil
}

func (r *caseRepository) CountByStatus(ctx context.Context) (map[constants.CaseStatus]int, error) {
	b := r.db.builder()
	query, args := b.Select("status", entsql.Count("*")).
		From(b.Table(casesTable)).
		GroupBy("status").
		Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "count cases", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	out := make(map[constants.CaseStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[constants.CaseStatus(status)] = n
	}
	return out, rows.Err()
}

func (r *caseRepository) TryStartProcessing(ctx context.Context, protocol string, now time.Time, staleBefore *time.Time) (bool, error) {
	eligible := entsql.And(
		entsql.NotIn("status", string(constants.StatusProcessing), string(constants.StatusProcessed)),
		// late uploads on a processed case wait for an explicit reprocess
		entsql.Or(
			entsql.NEQ("status", string(constants.StatusDocumentsDelivered)),
			entsql.IsNull("processed_at"),
		),
	)
	if staleBefore != nil {
		eligible = entsql.Or(
			eligible,
			entsql.And(
				entsql.EQ("status", string(constants.StatusProcessing)),
				entsql.LT("processing_started_at", staleBefore.UTC()),
			),
		)
	}
	query, args := r.db.builder().Update(casesTable).
		Set("status", string(constants.StatusProcessing)).
		Set("processing_started_at", now.UTC()).
		Set("updated_at", now.UTC()).
		SetNull("error_message").
		SetNull("finished_at").
		Where(entsql.And(entsql.EQ("protocol", protocol), eligible)).
		Query()

	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("case.claim.failed", "protocol", protocol, "error", err)
		return false, err
	}
	if n == 1 {
		r.logger.Info("case.claimed", "protocol", protocol)
		return true, nil
	}
	return false, nil
}

func (r *caseRepository) MarkProcessed(ctx context.Context, protocol string, res ProcessedResult) error {
	at := res.At.UTC()
	query, args := r.db.builder().Update(casesTable).
		Set("status", string(constants.StatusProcessed)).
		Set("extracted_text", res.ExtractedText).
		Set("narrative", res.Narrative).
		Set("narrative_source", res.NarrativeSource).
		Set("petition_key", res.PetitionKey).
		Set("processed_at", at).
		Set("finished_at", at).
		Set("updated_at", at).
		SetNull("error_message").
		Where(entsql.And(
			entsql.EQ("protocol", protocol),
			entsql.EQ("status", string(constants.StatusProcessing)),
		)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("case.mark_processed.failed", "protocol", protocol, "error", err)
		return err
	}
	if n == 0 {
		return common.NewAppError("CASE_NOT_PROCESSING", "case "+protocol+" is no longer processing", common.ErrConflict)
	}
	r.logger.Info("case.processed", "protocol", protocol, "narrative_source", res.NarrativeSource)
	return nil
}

func (r *caseRepository) MarkFailed(ctx context.Context, protocol, message string, at time.Time) error {
	query, args := r.db.builder().Update(casesTable).
		Set("status", string(constants.StatusFailed)).
		Set("error_message", message).
		Set("finished_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(entsql.EQ("protocol", protocol)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("case.mark_failed.failed", "protocol", protocol, "error", err)
		return err
	}
	if n == 0 {
		return common.NewAppError("CASE_NOT_FOUND", "case "+protocol, common.ErrNotFound)
	}
	r.logger.Warn("case.failed", "protocol", protocol, "error", message)
	return nil
}

func (r *caseRepository) ResetForReprocess(ctx context.Context, protocol string, force bool, now time.Time) error {
	where := entsql.EQ("protocol", protocol)
	// force resets any status, including a run abandoned in processando
	if !force {
		where = entsql.And(where, entsql.NotIn("status", string(constants.StatusProcessing), string(constants.StatusProcessed)))
	}
	query, args := r.db.builder().Update(casesTable).
		Set("status", string(constants.StatusReceived)).
		Set("updated_at", now.UTC()).
		SetNull("error_message").
		SetNull("processing_started_at").
		Where(where).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("case.reset.failed", "protocol", protocol, "error", err)
		return err
	}
	if n == 1 {
		r.logger.Info("case.reset", "protocol", protocol, "force", force)
		return nil
	}
	c, err := r.Get(ctx, protocol)
	if err != nil {
		return err
	}
	return common.NewAppError("CASE_NOT_RESETTABLE",
		fmt.Sprintf("case %s is %s", protocol, c.Status), common.ErrConflict)
}

func (r *caseRepository) AppendDocuments(ctx context.Context, protocol string, docs []entity.DocumentRef, now time.Time) (constants.CaseStatus, error) {
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return "", err
	}
	status, err := r.appendDocumentsTx(ctx, tx, protocol, docs, now)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	r.logger.Info("case.documents_appended", "protocol", protocol, "count", len(docs), "status", status)
	return status, nil
}

func (r *caseRepository) appendDocumentsTx(ctx context.Context, tx dialect.Tx, protocol string, docs []entity.DocumentRef, now time.Time) (constants.CaseStatus, error) {
	b := r.db.builder()
	sel := b.Select("status", "documents").
		From(b.Table(casesTable)).
		Where(entsql.EQ("protocol", protocol))
	if r.db.Dialect == dialect.Postgres {
		sel = sel.ForUpdate()
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := tx.Query(ctx, query, args, &rows); err != nil {
		return "", err
	}
	var status string
	var rawDocs []byte
	found := false
	if rows.Next() {
		if err := rows.Scan(&status, &rawDocs); err != nil {
			_ = rows.Close()
			return "", err
		}
		found = true
	}
	_ = rows.Close()
	if !found {
		return "", common.NewAppError("CASE_NOT_FOUND", "case "+protocol, common.ErrNotFound)
	}

	current, err := decodeDocuments(rawDocs)
	if err != nil {
		return "", err
	}
	encoded, err := encodeDocuments(append(current, docs...))
	if err != nil {
		return "", err
	}

	next := constants.CaseStatus(status)
	upd := b.Update(casesTable).
		Set("documents", encoded).
		Set("updated_at", now.UTC())
	// a running pipeline owns the status; the new files are picked up on the next run
	if next != constants.StatusProcessing {
		next = constants.StatusDocumentsDelivered
		upd = upd.Set("status", string(next))
	}
	query, args = upd.Where(entsql.EQ("protocol", protocol)).Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		return "", err
	}
	return next, nil
}

func (r *caseRepository) SetGeneratedDocument(ctx context.Context, protocol string, kind constants.DocumentKind, key string, now time.Time) error {
	col := "petition_key"
	if kind == constants.DocDeclaration {
		col = "declaration_key"
	}
	query, args := r.db.builder().Update(casesTable).
		Set(col, key).
		Set("updated_at", now.UTC()).
		Where(entsql.EQ("protocol", protocol)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.NewAppError("CASE_NOT_FOUND", "case "+protocol, common.ErrNotFound)
	}
	return nil
}

func (r *caseRepository) SaveNarrative(ctx context.Context, protocol, narrative, source string, now time.Time) error {
	query, args := r.db.builder().Update(casesTable).
		Set("narrative", narrative).
		Set("narrative_source", source).
		Set("updated_at", now.UTC()).
		Where(entsql.EQ("protocol", protocol)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.NewAppError("CASE_NOT_FOUND", "case "+protocol, common.ErrNotFound)
	}
	return nil
}

func (r *caseRepository) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		return 0, common.NewAppError("DB_ERROR", "exec", errors.Join(common.ErrDatabase, err))
	}
	return res.RowsAffected()
}

func (r *caseRepository) query(ctx context.Context, query string, args []any) ([]*entity.Case, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.Case
	for rows.Next() {
		c, err := scanCase(&rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCase(rows *entsql.Rows) (*entity.Case, error) {
	var (
		c                                  entity.Case
		status, action                     string
		payload, docs                      []byte
		extracted, narrative, source       sql.NullString
		petition, declaration, errMsg      sql.NullString
		createdAt, updatedAt               time.Time
		startedAt, processedAt, finishedAt sql.NullTime
	)
	if err := rows.Scan(
		&c.Protocol, &status, &action, &payload, &docs,
		&extracted, &narrative, &source, &petition, &declaration, &errMsg,
		&createdAt, &startedAt, &processedAt, &finishedAt, &updatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}
	c.Status = constants.CaseStatus(status)
	c.ActionType = constants.ActionType(action)
	c.FormPayload = json.RawMessage(payload)
	documents, err := decodeDocuments(docs)
	if err != nil {
		return nil, err
	}
	c.Documents = documents
	c.ExtractedText = nullString(extracted)
	c.Narrative = nullString(narrative)
	c.NarrativeSource = nullString(source)
	c.PetitionKey = nullString(petition)
	c.DeclarationKey = nullString(declaration)
	c.ErrorMessage = nullString(errMsg)
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	c.ProcessingStartedAt = nullTime(startedAt)
	c.ProcessedAt = nullTime(processedAt)
	c.FinishedAt = nullTime(finishedAt)
	return &c, nil
}

func encodeDocuments(docs []entity.DocumentRef) (string, error) {
	if docs == nil {
		docs = []entity.DocumentRef{}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encode documents: %w", err)
	}
	return string(b), nil
}

func decodeDocuments(raw []byte) ([]entity.DocumentRef, error) {
	if len(raw) == 0 {
		return []entity.DocumentRef{}, nil
	}
	var docs []entity.DocumentRef
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	if docs == nil {
		docs = []entity.DocumentRef{}
	}
	return docs, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
