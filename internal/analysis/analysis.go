// Package analysis derives triage data (priority, notes, skills) from ticket text.
package analysis

import (
	"context"

	"github.com/deskflow/helpdesk/internal/domain"
)

// Result is the structured triage produced for a ticket. Priority is passed
// through verbatim; callers normalize it.
type Result struct {
	Priority      string   `json:"priority"`
	HelpfulNotes  string   `json:"helpfulNotes"`
	RelatedSkills []string `json:"relatedSkills"`
}

// Outcome is either a usable Result or nothing.
type Outcome struct {
	result Result
	ok     bool
}

// Some wraps a usable result.
func Some(r Result) Outcome {
	return Outcome{result: r, ok: true}
}

// None reports that no usable result was produced.
func None() Outcome {
	return Outcome{}
}

// Get returns the result and whether one is present.
func (o Outcome) Get() (Result, bool) {
	return o.result, o.ok
}

// Analyzer triages a ticket. "Could not analyze" is None with a nil error;
// only context cancellation or deadline is returned as an error.
type Analyzer interface {
	Analyze(ctx context.Context, ticket *domain.Ticket) (Outcome, error)
}

// NopAnalyzer never produces a result.
type NopAnalyzer struct{}

// Analyze implements Analyzer.
func (NopAnalyzer) Analyze(context.Context, *domain.Ticket) (Outcome, error) {
	return None(), nil
}
