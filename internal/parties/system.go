package parties

import (
	"context"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/pkg/pagination"
)

// System defines the public contract for party directory operations.
// Candidates and LearnedAliases feed the matching engine; both return
// deterministically ordered slices.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Party], error)

	Find(ctx context.Context, id uuid.UUID) (*Party, error)
	Create(ctx context.Context, cmd CreateCommand) (*Party, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Party, error)

	Aliases(ctx context.Context, partyID uuid.UUID) ([]Alias, error)
	AddAlias(ctx context.Context, partyID uuid.UUID, cmd AliasCommand) (*Alias, error)

	Candidates(ctx context.Context) ([]Party, error)
	LearnedAliases(ctx context.Context) ([]Alias, error)
}
