package documents

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/pkg/query"
	"github.com/courier-labs/courier/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("doc_type", "DocType").
	Project("source", "Source").
	Project("source_metadata", "SourceMetadata").
	Project("raw_fields", "RawFields").
	Project("classification", "Classification").
	Project("match_result", "Match").
	Project("status", "Status").
	Project("party_id", "PartyID").
	Project("document_number", "DocumentNumber").
	Project("amount", "Amount").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("last_error", "LastError").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("LEFT JOIN public.parties p ON p.id = d.party_id").
	ProjectExpr("p.name", "PartyName")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored.
type Filters struct {
	DocType         *DocType   `json:"doc_type,omitempty"`
	Status          *Status    `json:"status,omitempty"`
	Source          *string    `json:"source,omitempty"`
	PartyID         *uuid.UUID `json:"party_id,omitempty"`
	DocumentNumber  *string    `json:"document_number,omitempty"`
	SubmittedAfter  *time.Time `json:"submitted_after,omitempty"`
	SubmittedBefore *time.Time `json:"submitted_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("DocType", f.DocType).
		WhereEquals("Status", f.Status).
		WhereEquals("Source", f.Source).
		WhereEquals("PartyID", f.PartyID).
		WhereEquals("DocumentNumber", f.DocumentNumber).
		WhereSince("CreatedAt", f.SubmittedAfter).
		WhereBefore("CreatedAt", f.SubmittedBefore)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if dt := values.Get("doc_type"); dt != "" {
		t := DocType(dt)
		f.DocType = &t
	}

	if s := values.Get("status"); s != "" {
		st := Status(s)
		f.Status = &st
	}

	if src := values.Get("source"); src != "" {
		f.Source = &src
	}

	if p := values.Get("party_id"); p != "" {
		if id, err := uuid.Parse(p); err == nil {
			f.PartyID = &id
		}
	}

	if dn := values.Get("document_number"); dn != "" {
		f.DocumentNumber = &dn
	}

	if sa := values.Get("submitted_after"); sa != "" {
		if t, err := time.Parse(time.RFC3339, sa); err == nil {
			f.SubmittedAfter = &t
		}
	}

	if sb := values.Get("submitted_before"); sb != "" {
		if t, err := time.Parse(time.RFC3339, sb); err == nil {
			f.SubmittedBefore = &t
		}
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var (
		d              Document
		sourceMetadata []byte
		rawFields      []byte
		classification []byte
		match          []byte
	)

	err := s.Scan(
		&d.ID,
		&d.DocType,
		&d.Source,
		&sourceMetadata,
		&rawFields,
		&classification,
		&match,
		&d.Status,
		&d.PartyID,
		&d.DocumentNumber,
		&d.Amount,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.LastError,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PartyName,
	)
	if err != nil {
		return d, err
	}

	if err := unmarshalColumn(sourceMetadata, &d.SourceMetadata); err != nil {
		return d, fmt.Errorf("decode source_metadata: %w", err)
	}
	if err := unmarshalColumn(rawFields, &d.RawFields); err != nil {
		return d, fmt.Errorf("decode raw_fields: %w", err)
	}
	if err := unmarshalColumn(classification, &d.Classification); err != nil {
		return d, fmt.Errorf("decode classification: %w", err)
	}
	if err := unmarshalColumn(match, &d.Match); err != nil {
		return d, fmt.Errorf("decode match_result: %w", err)
	}

	return d, nil
}

func scanHistoryEntry(s repository.Scanner) (HistoryEntry, error) {
	var e HistoryEntry
	err := s.Scan(
		&e.ID,
		&e.DocumentID,
		&e.FromStatus,
		&e.ToStatus,
		&e.Event,
		&e.Actor,
		&e.Reason,
		&e.OccurredAt,
	)
	return e, err
}

func scanExternalRef(s repository.Scanner) (ExternalRef, error) {
	var r ExternalRef
	err := s.Scan(
		&r.DocumentID,
		&r.System,
		&r.Ref,
		&r.CreatedAt,
	)
	return r, err
}

func unmarshalColumn(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func marshalColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
