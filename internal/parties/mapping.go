package parties

import (
	"net/url"
	"strconv"

	"github.com/courier-labs/courier/pkg/query"
	"github.com/courier-labs/courier/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "parties", "p").
	Project("id", "ID").
	Project("number", "Number").
	Project("name", "Name").
	Project("kind", "Kind").
	Project("active", "Active").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "Name",
	Descending: false,
}

// Filters contains optional filtering criteria for party queries.
// Nil fields are ignored.
type Filters struct {
	Number *string `json:"number,omitempty"`
	Kind   *Kind   `json:"kind,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Number", f.Number).
		WhereEquals("Kind", f.Kind).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if n := values.Get("number"); n != "" {
		f.Number = &n
	}

	if k := values.Get("kind"); k != "" {
		kind := Kind(k)
		f.Kind = &kind
	}

	if a := values.Get("active"); a != "" {
		if active, err := strconv.ParseBool(a); err == nil {
			f.Active = &active
		}
	}

	return f
}

func scanParty(s repository.Scanner) (Party, error) {
	var p Party

	err := s.Scan(
		&p.ID,
		&p.Number,
		&p.Name,
		&p.Kind,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func scanAlias(s repository.Scanner) (Alias, error) {
	var a Alias

	err := s.Scan(
		&a.ID,
		&a.PartyID,
		&a.Alias,
		&a.Score,
		&a.CreatedBy,
		&a.CreatedAt,
	)
	return a, err
}
