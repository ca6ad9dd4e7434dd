package policy

import (
	"time"

	"github.com/condep/condep/pkg/deploy"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity stops a deploy.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy came from, empty for built-in ones.
	Source string `json:"source,omitempty"`
}

// Violation is a single deny result.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	// File is the local file the violation is about, if any.
	File string `json:"file,omitempty"`
}

// Result is the outcome of evaluating a plan.
type Result struct {
	Allowed     bool        `json:"allowed"`
	Violations  []Violation `json:"violations"`
	Warnings    []string    `json:"warnings,omitempty"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Blocking returns the violations that stop the deploy.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// PlanFile is one file of a plan as policies see it.
type PlanFile struct {
	Category string `json:"category"`
	Local    string `json:"local"`
	Remote   string `json:"remote"`
}

// PlanInput is the `input` document of every policy.
type PlanInput struct {
	Target   string     `json:"target"`
	Host     string     `json:"host"`
	User     string     `json:"user"`
	Method   string     `json:"method"`
	Files    []PlanFile `json:"files"`
	Commands []string   `json:"commands"`
}

// NewPlanInput lists where every source file would land.
func NewPlanInput(target string, src deploy.Paths, dst deploy.Destinations, commands []string) *PlanInput {
	in := &PlanInput{
		Target:   target,
		Files:    []PlanFile{},
		Commands: append([]string{}, commands...),
	}
	for _, c := range deploy.Categories {
		for _, file := range src.Get(c) {
			in.Files = append(in.Files, PlanFile{
				Category: c.String(),
				Local:    file,
				Remote:   deploy.RemotePath(dst.Dir(c), file),
			})
		}
	}
	return in
}
