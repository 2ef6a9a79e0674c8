package erp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/erp"
)

func TestMemoryLink(t *testing.T) {
	m := erp.NewMemory()
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	ref, err := m.Link(context.Background(), erp.Request{
		DocumentID:     id,
		DocType:        documents.TypeAPInvoice,
		DocumentNumber: "INV-1001",
	})
	if err != nil {
		t.Fatalf("Link error = %v", err)
	}

	if ref.System != documents.RefSystemERP {
		t.Errorf("system = %s, want erp", ref.System)
	}
	want := "link:AP_INVOICE:" + id.String()
	if ref.Ref != want {
		t.Errorf("ref = %s, want %s", ref.Ref, want)
	}
	if !m.Linked(id) {
		t.Error("Linked() = false after Link")
	}
	if m.Drafted(id) {
		t.Error("Drafted() = true, want false")
	}
}

func TestMemoryCreateDraft(t *testing.T) {
	m := erp.NewMemory()
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	ref, err := m.CreateDraft(context.Background(), erp.Request{
		DocumentID: id,
		DocType:    documents.TypePurchaseOrder,
	})
	if err != nil {
		t.Fatalf("CreateDraft error = %v", err)
	}

	want := "draft:PURCHASE_ORDER:" + id.String()
	if ref.Ref != want {
		t.Errorf("ref = %s, want %s", ref.Ref, want)
	}
	if !m.Drafted(id) {
		t.Error("Drafted() = false after CreateDraft")
	}
	if m.Linked(id) {
		t.Error("Linked() = true, want false")
	}
}

func TestMemoryErrInjection(t *testing.T) {
	m := erp.NewMemory()
	m.Err = errors.New("erp offline")
	id := uuid.New()

	if _, err := m.Link(context.Background(), erp.Request{DocumentID: id}); err == nil {
		t.Error("Link error = nil, want injected failure")
	}
	if _, err := m.CreateDraft(context.Background(), erp.Request{DocumentID: id}); err == nil {
		t.Error("CreateDraft error = nil, want injected failure")
	}
	if m.Linked(id) || m.Drafted(id) {
		t.Error("failed calls must not record refs")
	}

	m.Err = nil
	if _, err := m.Link(context.Background(), erp.Request{DocumentID: id}); err != nil {
		t.Errorf("Link error = %v after clearing Err", err)
	}
}
