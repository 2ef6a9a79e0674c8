package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/pkg/pagination"
)

// System defines the public contract for document domain operations.
// Status-changing writes go through Update, which enforces optimistic
// version checking and appends history atomically.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	Update(ctx context.Context, id uuid.UUID, version int, upd Update) (*Document, error)

	History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error)
	ExternalRefs(ctx context.Context, id uuid.UUID) ([]ExternalRef, error)
	AddExternalRef(ctx context.Context, id uuid.UUID, system, ref string) error
	HasExternalRef(ctx context.Context, id uuid.UUID, system string) (bool, error)
	HasDuplicate(ctx context.Context, q DuplicateQuery) (bool, error)

	// OpenFile streams the stored source file for a document.
	// Returns ErrNoFile when the document was not submitted with one.
	OpenFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Document, error)
}
