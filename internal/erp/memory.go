package erp

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/documents"
)

// Memory is an in-process connector for local runs and tests. Refs are
// deterministic per document, and Err injects failures.
type Memory struct {
	mu     sync.Mutex
	Err    error
	links  map[uuid.UUID]Ref
	drafts map[uuid.UUID]Ref
}

// NewMemory creates an empty in-memory connector.
func NewMemory() *Memory {
	return &Memory{
		links:  make(map[uuid.UUID]Ref),
		drafts: make(map[uuid.UUID]Ref),
	}
}

// Link records a link to an existing ERP record.
func (m *Memory) Link(_ context.Context, req Request) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return Ref{}, m.Err
	}

	ref := Ref{
		System: documents.RefSystemERP,
		Ref:    fmt.Sprintf("link:%s:%s", req.DocType, req.DocumentID),
	}
	m.links[req.DocumentID] = ref
	return ref, nil
}

// CreateDraft records a created draft record.
func (m *Memory) CreateDraft(_ context.Context, req Request) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return Ref{}, m.Err
	}

	ref := Ref{
		System: documents.RefSystemERP,
		Ref:    fmt.Sprintf("draft:%s:%s", req.DocType, req.DocumentID),
	}
	m.drafts[req.DocumentID] = ref
	return ref, nil
}

// Linked reports whether Link was called for the document.
func (m *Memory) Linked(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[id]
	return ok
}

// Drafted reports whether CreateDraft was called for the document.
func (m *Memory) Drafted(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.drafts[id]
	return ok
}
