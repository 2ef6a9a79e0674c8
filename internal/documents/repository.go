package documents

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/pkg/pagination"
	"github.com/courier-labs/courier/pkg/query"
	"github.com/courier-labs/courier/pkg/repository"
	"github.com/courier-labs/courier/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "DocumentNumber", "Source", "Filename", "PartyName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryValue[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := findOn(ctx, r.db, id)
	if err != nil {
		return nil, repository.MapError(err, repository.Mapping{NotFound: ErrNotFound})
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	id := uuid.New()
	if cmd.ID != nil {
		id = *cmd.ID
	}

	actor := cmd.Actor
	if actor == "" {
		actor = "system"
	}

	sourceMetadata, err := marshalColumn(orEmptyMeta(cmd.SourceMetadata))
	if err != nil {
		return nil, fmt.Errorf("encode source_metadata: %w", err)
	}
	rawFields, err := marshalColumn(orEmptyFields(cmd.RawFields))
	if err != nil {
		return nil, fmt.Errorf("encode raw_fields: %w", err)
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		insert := `
			INSERT INTO documents(id, doc_type, source, source_metadata, raw_fields, status, document_number, amount, filename, content_type, size_bytes, page_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

		if _, err := tx.ExecContext(ctx, insert,
			id,
			TypeOther,
			cmd.Source,
			sourceMetadata,
			rawFields,
			StatusCaptured,
			cmd.DocumentNumber,
			cmd.Amount,
			cmd.Filename,
			cmd.ContentType,
			cmd.SizeBytes,
			cmd.PageCount,
		); err != nil {
			return Document{}, err
		}

		if err := insertHistory(ctx, tx, id, TransitionRecord{
			FromStatus: "",
			ToStatus:   StatusCaptured,
			Event:      "intake",
			Actor:      actor,
		}); err != nil {
			return Document{}, err
		}

		return findOn(ctx, tx, id)
	})
	if err != nil {
		return nil, repository.MapError(err, repository.Mapping{
			NotFound:  ErrNotFound,
			Duplicate: ErrConflict,
		})
	}

	r.logger.Info("document created", "id", d.ID, "source", d.Source)
	return &d, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, version int, upd Update) (*Document, error) {
	sets := []string{"updated_at = now()", "version = version + 1"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.DocType != nil {
		sets = append(sets, "doc_type = "+next(*upd.DocType))
	}
	if upd.Classification != nil {
		data, err := marshalColumn(upd.Classification)
		if err != nil {
			return nil, fmt.Errorf("encode classification: %w", err)
		}
		sets = append(sets, "classification = "+next(data))
	}
	if upd.Match != nil {
		data, err := marshalColumn(upd.Match)
		if err != nil {
			return nil, fmt.Errorf("encode match_result: %w", err)
		}
		sets = append(sets, "match_result = "+next(data))
	}
	switch {
	case upd.ClearParty:
		sets = append(sets, "party_id = NULL")
	case upd.PartyID != nil:
		sets = append(sets, "party_id = "+next(*upd.PartyID))
	}
	if upd.DocumentNumber != nil {
		sets = append(sets, "document_number = "+next(*upd.DocumentNumber))
	}
	if upd.Amount != nil {
		sets = append(sets, "amount = "+next(*upd.Amount))
	}
	switch {
	case upd.ClearError:
		sets = append(sets, "last_error = NULL")
	case upd.SetError != nil:
		sets = append(sets, "last_error = "+next(*upd.SetError))
	}
	if upd.Transition != nil {
		sets = append(sets, "status = "+next(upd.Transition.ToStatus))
	}

	stmt := fmt.Sprintf(
		"UPDATE documents SET %s WHERE id = %s AND version = %s",
		strings.Join(sets, ", "),
		next(id),
		next(version),
	)

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		if err := repository.ExecExpectOne(ctx, tx, stmt, args...); err != nil {
			return Document{}, err
		}

		if upd.Transition != nil {
			if err := insertHistory(ctx, tx, id, *upd.Transition); err != nil {
				return Document{}, err
			}
		}

		return findOn(ctx, tx, id)
	})
	if err != nil {
		return nil, r.mapVersionedError(ctx, id, err)
	}

	return &d, nil
}

func (r *repo) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	q := `
		SELECT id, document_id, from_status, to_status, event, actor, reason, occurred_at
		FROM workflow_history
		WHERE document_id = $1
		ORDER BY occurred_at ASC, id ASC`

	entries, err := repository.QueryMany(ctx, r.db, q, []any{id}, scanHistoryEntry)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}

func (r *repo) ExternalRefs(ctx context.Context, id uuid.UUID) ([]ExternalRef, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	q := `
		SELECT document_id, system, ref, created_at
		FROM external_refs
		WHERE document_id = $1
		ORDER BY system ASC`

	refs, err := repository.QueryMany(ctx, r.db, q, []any{id}, scanExternalRef)
	if err != nil {
		return nil, fmt.Errorf("query external refs: %w", err)
	}
	return refs, nil
}

func (r *repo) AddExternalRef(ctx context.Context, id uuid.UUID, system, ref string) error {
	q := `
		INSERT INTO external_refs(document_id, system, ref)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, system) DO NOTHING`

	result, err := r.db.ExecContext(ctx, q, id, system, ref)
	if err != nil {
		return repository.MapError(err, repository.Mapping{Reference: ErrNotFound})
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		r.logger.Debug("external ref already recorded", "id", id, "system", system)
	}
	return nil
}

func (r *repo) HasExternalRef(ctx context.Context, id uuid.UUID, system string) (bool, error) {
	q := `SELECT EXISTS(SELECT 1 FROM external_refs WHERE document_id = $1 AND system = $2)`
	exists, err := repository.QueryValue[bool](ctx, r.db, q, id, system)
	if err != nil {
		return false, fmt.Errorf("check external ref: %w", err)
	}
	return exists, nil
}

func (r *repo) HasDuplicate(ctx context.Context, dq DuplicateQuery) (bool, error) {
	qb := query.NewBuilder(projection).
		WhereEquals("PartyID", &dq.PartyID).
		WhereEquals("DocumentNumber", &dq.DocumentNumber).
		WhereNotEquals("ID", &dq.ExcludeID).
		WhereSince("CreatedAt", &dq.Since)

	q, args := qb.BuildExists()
	exists, err := repository.QueryValue[bool](ctx, r.db, q, args...)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}

func (r *repo) OpenFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Document, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	refs, err := r.ExternalRefs(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var key string
	for _, ref := range refs {
		if ref.System == RefSystemStorage {
			key = ref.Ref
			break
		}
	}
	if key == "" {
		return nil, nil, ErrNoFile
	}

	reader, err := r.storage.Download(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("download source file: %w", err)
	}
	return reader, doc, nil
}

// mapVersionedError disambiguates a failed version-checked update:
// a missing row is not-found, an existing row is a version conflict.
func (r *repo) mapVersionedError(ctx context.Context, id uuid.UUID, err error) error {
	mapped := repository.MapError(err, repository.Mapping{
		NotFound:  ErrConflict,
		Duplicate: ErrConflict,
	})
	if mapped != ErrConflict {
		return mapped
	}

	exists, checkErr := repository.QueryValue[bool](ctx, r.db,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)", id)
	if checkErr == nil && !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func findOn(ctx context.Context, q repository.Querier, id uuid.UUID) (Document, error) {
	sqlText, args := query.NewBuilder(projection).BuildSingle("ID", id)
	return repository.QueryOne(ctx, q, sqlText, args, scanDocument)
}

func insertHistory(ctx context.Context, e repository.Executor, id uuid.UUID, t TransitionRecord) error {
	q := `
		INSERT INTO workflow_history(document_id, from_status, to_status, event, actor, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := e.ExecContext(ctx, q, id, t.FromStatus, t.ToStatus, t.Event, t.Actor, t.Reason)
	return err
}

func orEmptyMeta(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyFields(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
