// Package parties implements the party directory: the vendors and
// customers that documents are matched against, plus the learned
// aliases produced by manual match overrides.
package parties

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the trading relationship a party holds.
type Kind string

// Party kinds.
const (
	KindVendor   Kind = "vendor"
	KindCustomer Kind = "customer"
	KindBoth     Kind = "both"
)

// Valid reports whether the kind is a member of the enum.
func (k Kind) Valid() bool {
	return k == KindVendor || k == KindCustomer || k == KindBoth
}

// Party represents one vendor or customer record from the directory.
type Party struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alias is a learned mapping from a normalized name variant to a party.
// Aliases are written by match overrides and by direct alias management;
// the matching engine consults them before falling back to fuzzy scoring.
type Alias struct {
	ID        uuid.UUID `json:"id"`
	PartyID   uuid.UUID `json:"party_id"`
	Alias     string    `json:"alias"`
	Score     float64   `json:"score"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCommand carries the data needed to register a party.
// Active defaults to true when omitted.
type CreateCommand struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Active *bool  `json:"active,omitempty"`
}

// UpdateCommand carries optional field updates. Nil fields are left
// unchanged. The party number is immutable.
type UpdateCommand struct {
	Name   *string `json:"name,omitempty"`
	Kind   *Kind   `json:"kind,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// AliasCommand carries the data needed to record an alias. The alias
// text is normalized before storage.
type AliasCommand struct {
	Alias     string  `json:"alias"`
	Score     float64 `json:"score"`
	CreatedBy string  `json:"created_by"`
}
