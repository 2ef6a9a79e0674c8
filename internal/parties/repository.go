package parties

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/pkg/pagination"
	"github.com/courier-labs/courier/pkg/query"
	"github.com/courier-labs/courier/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a party repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "parties"),
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
) (*pagination.PageResult[Party], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Number")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryValue[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count parties: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanParty)
	if err != nil {
		return nil, fmt.Errorf("query parties: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Party, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanParty)
	if err != nil {
		return nil, repository.MapError(err, repository.Mapping{NotFound: ErrNotFound})
	}
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Party, error) {
	if !cmd.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, cmd.Kind)
	}

	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}

	q := `
		INSERT INTO parties(id, number, name, kind, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, number, name, kind, active, created_at, updated_at`

	p, err := repository.QueryOne(ctx, r.db, q,
		[]any{uuid.New(), cmd.Number, cmd.Name, cmd.Kind, active},
		scanParty,
	)
	if err != nil {
		return nil, repository.MapError(err, repository.Mapping{Duplicate: ErrDuplicate})
	}

	r.logger.Info("party created", "id", p.ID, "number", p.Number)
	return &p, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Party, error) {
	if cmd.Kind != nil && !cmd.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, *cmd.Kind)
	}

	q := `
		UPDATE parties
		SET name = COALESCE($1, name),
			kind = COALESCE($2, kind),
			active = COALESCE($3, active),
			updated_at = now()
		WHERE id = $4
		RETURNING id, number, name, kind, active, created_at, updated_at`

	p, err := repository.QueryOne(ctx, r.db, q,
		[]any{cmd.Name, (*string)(cmd.Kind), cmd.Active, id},
		scanParty,
	)
	if err != nil {
		return nil, repository.MapError(err, repository.Mapping{NotFound: ErrNotFound})
	}

	r.logger.Info("party updated", "id", p.ID)
	return &p, nil
}

func (r *repo) Aliases(ctx context.Context, partyID uuid.UUID) ([]Alias, error) {
	if _, err := r.Find(ctx, partyID); err != nil {
		return nil, err
	}

	q := `
		SELECT id, party_id, alias, score, created_by, created_at
		FROM vendor_aliases
		WHERE party_id = $1
		ORDER BY alias ASC`

	aliases, err := repository.QueryMany(ctx, r.db, q, []any{partyID}, scanAlias)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	return aliases, nil
}

func (r *repo) AddAlias(ctx context.Context, partyID uuid.UUID, cmd AliasCommand) (*Alias, error) {
	normalized := Normalize(cmd.Alias)
	if normalized == "" {
		return nil, fmt.Errorf("%w: alias is empty after normalization", ErrInvalidBody)
	}

	q := `
		INSERT INTO vendor_aliases(id, party_id, alias, score, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, party_id, alias, score, created_by, created_at`

	a, err := repository.QueryOne(ctx, r.db, q,
		[]any{uuid.New(), partyID, normalized, cmd.Score, cmd.CreatedBy},
		scanAlias,
	)
	if err != nil {
		return nil, repository.MapError(err, repository.Mapping{
			Duplicate: ErrDuplicateAlias,
			Reference: ErrNotFound,
		})
	}

	r.logger.Info("alias recorded", "party_id", partyID, "alias", a.Alias, "score", a.Score)
	return &a, nil
}

func (r *repo) Candidates(ctx context.Context) ([]Party, error) {
	active := true
	qb := query.
		NewBuilder(projection, query.SortField{Field: "ID"}).
		WhereEquals("Active", &active)

	q, args := qb.Build()
	parties, err := repository.QueryMany(ctx, r.db, q, args, scanParty)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	return parties, nil
}

func (r *repo) LearnedAliases(ctx context.Context) ([]Alias, error) {
	q := `
		SELECT id, party_id, alias, score, created_by, created_at
		FROM vendor_aliases
		ORDER BY alias ASC, party_id ASC`

	aliases, err := repository.QueryMany(ctx, r.db, q, nil, scanAlias)
	if err != nil {
		return nil, fmt.Errorf("query learned aliases: %w", err)
	}
	return aliases, nil
}
