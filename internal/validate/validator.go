// Package validate runs pluggable checks over code and reports what they found.
package validate

import (
	"context"
	"log/slog"
)

const (
	CheckSyntax       = "syntax"
	CheckLint         = "lint"
	CheckExpectations = "expectations"
)

type Finding struct {
	Check   string `json:"check"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Input is the code under validation. Expectations are passed through untouched.
type Input struct {
	Path         string
	Code         string
	Expectations []string
}

type Validator interface {
	Validate(ctx context.Context, input Input) ([]Finding, error)
}

// NullValidator accepts everything.
type NullValidator struct{}

func (NullValidator) Validate(context.Context, Input) ([]Finding, error) {
	return nil, nil
}

// CheckResult is the outcome of one check. Empty Findings with a nil Err means the
// check ran and found nothing.
type CheckResult struct {
	Name     string    `json:"name"`
	Findings []Finding `json:"findings"`
	Err      string    `json:"error,omitempty"`
}

type Report struct {
	Path   string        `json:"path"`
	Checks []CheckResult `json:"checks"`
}

// Findings flattens every check's findings in check order.
func (r Report) Findings() []Finding {
	var out []Finding
	for _, c := range r.Checks {
		out = append(out, c.Findings...)
	}
	return out
}

func (r Report) Clean() bool {
	for _, c := range r.Checks {
		if len(c.Findings) > 0 || c.Err != "" {
			return false
		}
	}
	return true
}

type namedValidator struct {
	name      string
	validator Validator
}

type Pipeline struct {
	checks []namedValidator
}

// NewPipeline wires the three checks; a nil validator falls back to NullValidator.
func NewPipeline(syntax, lint, expectations Validator) *Pipeline {
	orNull := func(v Validator) Validator {
		if v == nil {
			return NullValidator{}
		}
		return v
	}

	return &Pipeline{checks: []namedValidator{
		{name: CheckSyntax, validator: orNull(syntax)},
		{name: CheckLint, validator: orNull(lint)},
		{name: CheckExpectations, validator: orNull(expectations)},
	}}
}

// DefaultPipeline is the shipped pipeline: every check is a NullValidator.
func DefaultPipeline() *Pipeline {
	return NewPipeline(nil, nil, nil)
}

// Run executes every check in order. A failing check is reported in its
// CheckResult and does not stop the others.
func (p *Pipeline) Run(ctx context.Context, input Input) Report {
	report := Report{Path: input.Path}

	for _, check := range p.checks {
		result := CheckResult{Name: check.name, Findings: []Finding{}}

		findings, err := check.validator.Validate(ctx, input)
		if err != nil {
			result.Err = err.Error()
			slog.Warn("validation check failed", "check", check.name, "path", input.Path, "error", err)
		}

		for _, f := range findings {
			if f.Check == "" {
				f.Check = check.name
			}
			result.Findings = append(result.Findings, f)
		}

		report.Checks = append(report.Checks, result)
	}

	slog.Debug("validation finished", "path", input.Path, "findings", len(report.Findings()))
	return report
}
