// Package automation is the gate between extraction and ERP side
// effects. Decide is a pure function over a snapshot the pipeline
// assembles; it performs no I/O, so every safety check (thresholds,
// duplicates, existing refs) is testable in isolation.
package automation

import (
	"fmt"

	"github.com/courier-labs/courier/internal/workflow"
)

// Level is the configured automation posture for a document type.
type Level string

// Automation levels.
const (
	LevelManual          Level = "manual"
	LevelAutoLink        Level = "auto_link"
	LevelAutoCreateDraft Level = "auto_create_draft"
	LevelAdvanced        Level = "advanced"
)

// Valid reports whether the level is a member of the enum.
func (l Level) Valid() bool {
	switch l {
	case LevelManual, LevelAutoLink, LevelAutoCreateDraft, LevelAdvanced:
		return true
	}
	return false
}

// Action is what the pipeline should do with the document.
type Action string

// Gate actions.
const (
	ActionAutoLink    Action = "auto-link"
	ActionCreateDraft Action = "create-draft"
	ActionHold        Action = "hold"
)

// DefaultThreshold is the minimum confidence and match score required
// for creating-class actions when the configuration does not override
// them.
const DefaultThreshold = 0.92

// Thresholds are the minimum scores for automatic actions.
type Thresholds struct {
	Confidence float64
	MatchScore float64
}

// Normalize fills unset thresholds with DefaultThreshold.
func (t Thresholds) Normalize() Thresholds {
	if t.Confidence <= 0 {
		t.Confidence = DefaultThreshold
	}
	if t.MatchScore <= 0 {
		t.MatchScore = DefaultThreshold
	}
	return t
}

// DecideInput is the snapshot the gate evaluates. DuplicateFound and
// HasExternalRef are looked up by the pipeline beforehand.
type DecideInput struct {
	Level          Level
	Confidence     float64
	MatchScore     float64
	PartyResolved  bool
	Thresholds     Thresholds
	DuplicateFound bool
	HasExternalRef bool
}

// Decision pairs the chosen action with the workflow event that records
// it and a human-readable reason for the history entry.
type Decision struct {
	Action Action
	Event  workflow.Event
	Reason string
}

// Decide evaluates the safety checks in a fixed order and returns the
// first failing check as a hold, or the level's automatic action when
// every check passes. It never returns an error: a gate outcome is a
// routing decision, not a failure.
func Decide(in DecideInput) Decision {
	t := in.Thresholds.Normalize()

	if in.Level == LevelManual || !in.Level.Valid() {
		return hold("automation level is manual")
	}
	if in.HasExternalRef {
		return hold("an ERP reference is already recorded")
	}
	if in.DuplicateFound {
		return hold("a document with the same party and number exists in the lookback window")
	}
	if !in.PartyResolved {
		return hold("no party resolved by matching")
	}
	if in.Confidence < t.Confidence {
		return hold(fmt.Sprintf(
			"classification confidence %.2f below threshold %.2f",
			in.Confidence, t.Confidence,
		))
	}
	if in.MatchScore < t.MatchScore {
		return hold(fmt.Sprintf(
			"match score %.2f below threshold %.2f",
			in.MatchScore, t.MatchScore,
		))
	}

	if in.Level == LevelAutoLink {
		return Decision{
			Action: ActionAutoLink,
			Event:  workflow.EventAutoLink,
			Reason: fmt.Sprintf(
				"auto-link: confidence %.2f, match %.2f",
				in.Confidence, in.MatchScore,
			),
		}
	}

	return Decision{
		Action: ActionCreateDraft,
		Event:  workflow.EventCreateDraft,
		Reason: fmt.Sprintf(
			"create-draft (%s): confidence %.2f, match %.2f",
			in.Level, in.Confidence, in.MatchScore,
		),
	}
}

func hold(reason string) Decision {
	return Decision{
		Action: ActionHold,
		Event:  workflow.EventHold,
		Reason: "hold: " + reason,
	}
}
