// Package workflow defines the per-type state machines that govern
// document status changes. Machines are declarative values: a state
// set, an initial state, a terminal set, and a transition table keyed
// by (status, event) with optional named guards. Applying an event
// never mutates anything; callers persist the returned transition.
package workflow

import (
	"fmt"
	"slices"

	"github.com/courier-labs/courier/internal/documents"
)

// Event names a workflow transition trigger.
type Event string

// Transition events referenced by machine tables.
const (
	EventClassify         Event = "classify"
	EventExtract          Event = "extract"
	EventHold             Event = "hold"
	EventAutoLink         Event = "auto_link"
	EventCreateDraft      Event = "create_draft"
	EventVendorMatched    Event = "vendor_matched"
	EventSubmitValidation Event = "submit_validation"
	EventValidationPassed Event = "validation_passed"
	EventValidationFailed Event = "validation_failed"
	EventRevalidate       Event = "revalidate"
	EventStartApproval    Event = "start_approval"
	EventApprove          Event = "approve"
	EventReject           Event = "reject"
	EventLinkInvoice      Event = "link_invoice"
	EventExport           Event = "export"
	EventArchive          Event = "archive"
	EventReview           Event = "review"
	EventStartReview      Event = "start_review"
	EventCompleteTriage   Event = "complete_triage"
	EventFail             Event = "fail"
	EventResume           Event = "resume"
)

// Meta events are recorded in workflow history but are not edges in any
// transition table. They mark pipeline operations that reposition or
// annotate a document outside the machine.
const (
	EventIntake        Event = "intake"
	EventReprocess     Event = "reprocess"
	EventOverrideMatch Event = "override_match"
	EventReclassify    Event = "reclassify"
)

// GuardInput is the snapshot a guard predicate evaluates. The pipeline
// assembles it from the document and its external refs before applying
// an event.
type GuardInput struct {
	Confidence    float64
	MatchScore    float64
	PartyResolved bool
	HasERPRef     bool
	InvoiceLinked bool
}

// Guard predicates by name. Tables reference guards by name so the
// transition tables stay declarative and printable.
var guards = map[string]func(GuardInput) bool{
	"party-resolved":  func(in GuardInput) bool { return in.PartyResolved },
	"erp-ref-present": func(in GuardInput) bool { return in.HasERPRef },
	"invoice-located": func(in GuardInput) bool { return in.InvoiceLinked },
}

// Transition is the outcome of successfully applying an event.
type Transition struct {
	From  documents.Status
	To    documents.Status
	Event Event
}

type edge struct {
	target documents.Status
	guard  string
}

// Machine is one doc_type family's workflow definition.
type Machine struct {
	Name    string
	Initial documents.Status

	states   []documents.Status
	terminal map[documents.Status]bool
	table    map[documents.Status]map[Event]edge
}

func newMachine(
	name string,
	initial documents.Status,
	terminal []documents.Status,
	table map[documents.Status]map[Event]edge,
) *Machine {
	seen := map[documents.Status]bool{initial: true}
	for from, events := range table {
		seen[from] = true
		for _, e := range events {
			seen[e.target] = true
		}
	}

	states := make([]documents.Status, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	slices.Sort(states)

	term := make(map[documents.Status]bool, len(terminal))
	for _, s := range terminal {
		term[s] = true
	}

	return &Machine{
		Name:     name,
		Initial:  initial,
		states:   states,
		terminal: term,
		table:    table,
	}
}

// States returns every status the machine can hold, sorted.
func (m *Machine) States() []documents.Status {
	return m.states
}

// Contains reports whether the status belongs to the machine's state set.
func (m *Machine) Contains(s documents.Status) bool {
	return slices.Contains(m.states, s)
}

// IsTerminal reports whether the status admits no further transitions.
func (m *Machine) IsTerminal(s documents.Status) bool {
	return m.terminal[s]
}

// EventsFrom returns the events defined for the given status, sorted.
func (m *Machine) EventsFrom(s documents.Status) []Event {
	events := make([]Event, 0, len(m.table[s]))
	for e := range m.table[s] {
		events = append(events, e)
	}
	slices.Sort(events)
	return events
}

// Target returns the destination for (status, event) when the table
// defines one, ignoring guards.
func (m *Machine) Target(s documents.Status, e Event) (documents.Status, bool) {
	edge, ok := m.table[s][e]
	return edge.target, ok
}

// Apply validates an event against the current status and returns the
// resulting transition. Unknown events yield ErrInvalidTransition and
// unsatisfied guards yield ErrGuardFailed; neither mutates anything.
func (m *Machine) Apply(current documents.Status, event Event, in GuardInput) (Transition, error) {
	e, ok := m.table[current][event]
	if !ok {
		return Transition{}, fmt.Errorf(
			"%w: %s does not accept %q in status %q",
			ErrInvalidTransition, m.Name, event, current,
		)
	}

	if e.guard != "" && !guards[e.guard](in) {
		return Transition{}, fmt.Errorf(
			"%w: %s requires %s for %q in status %q",
			ErrGuardFailed, m.Name, e.guard, event, current,
		)
	}

	return Transition{From: current, To: e.target, Event: event}, nil
}

// Reenter validates a status move made outside the transition table.
// Reprocessing uses it to reposition a document at an earlier state.
// The target must belong to the machine and the current status must
// not be terminal.
func (m *Machine) Reenter(from, to documents.Status) error {
	if !m.Contains(to) {
		return fmt.Errorf("%w: %s has no status %q", ErrInvalidTransition, m.Name, to)
	}
	if m.IsTerminal(from) {
		return fmt.Errorf("%w: %s status %q is terminal", ErrInvalidTransition, m.Name, from)
	}
	return nil
}
