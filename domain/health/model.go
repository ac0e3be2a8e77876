// Package health implements evaluate_health and list_unhealthy: a
// read-only diagnostic pass over a res' current state against its
// genus' declared shape, plus its open-error backlog.
package health

import "github.com/farant/smaragda/domain/tessella"

// IssueKind is the closed set of problems evaluate_health can report.
type IssueKind string

const (
	MissingRequiredAttribute IssueKind = "MissingRequiredAttribute"
	AttributeTypeMismatch    IssueKind = "AttributeTypeMismatch"
	InvalidStatus            IssueKind = "InvalidStatus"
	UnacknowledgedError      IssueKind = "UnacknowledgedError"
)

// Issue is one diagnostic finding against a single res.
type Issue struct {
	Kind          IssueKind
	AttributeName string `json:",omitempty"`
	Detail        string
}

// Report is evaluate_health's result for one res.
type Report struct {
	ResID   tessella.ResID
	Healthy bool
	Issues  []Issue
}

// Filters scopes list_unhealthy. GenusID is required: a batch health
// sweep always runs over one declared genus' res population, never
// "every res in the store" (there is no genus-agnostic listing
// primitive to drive that, and evaluate_health itself always needs a
// genus to check a res against).
type Filters struct {
	GenusID tessella.ResID
}
