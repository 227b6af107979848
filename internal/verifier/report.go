package verifier

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// CheckResult is the outcome of one verification check.
type CheckResult struct {
	// Name identifies the check.
	Name string
	// Passed reports whether the check succeeded.
	Passed bool
	// Detail carries the diagnostic for failed checks and optional context
	// for passed ones.
	Detail string
}

// Report accumulates every check's result. Unlike the build stages, the
// verifier never fails fast: one run reports the complete defect set.
type Report struct {
	// Results holds check outcomes in execution order.
	Results []CheckResult

	firstFailure int
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{firstFailure: -1}
}

// Add records one check result.
func (r *Report) Add(name string, passed bool, detail string) {
	if !passed && r.firstFailure < 0 {
		r.firstFailure = len(r.Results)
	}

	r.Results = append(r.Results, CheckResult{Name: name, Passed: passed, Detail: detail})
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return r.firstFailure >= 0
}

// FirstFailure returns the earliest failed check, or nil if all passed.
func (r *Report) FirstFailure() *CheckResult {
	if r.firstFailure < 0 {
		return nil
	}

	return &r.Results[r.firstFailure]
}

// Render produces the human-facing check table.
func (r *Report) Render() string {
	writer := table.NewWriter()
	writer.SetStyle(table.StyleLight)
	writer.AppendHeader(table.Row{"#", "Check", "Result", "Detail"})

	for i, result := range r.Results {
		state := text.FgGreen.Sprint("PASS")
		if !result.Passed {
			state = text.FgRed.Sprint("FAIL")
		}

		writer.AppendRow(table.Row{i + 1, result.Name, state, result.Detail})
	}

	return writer.Render()
}

// Summary produces the one-line outcome naming the first failure.
func (r *Report) Summary() string {
	if !r.Failed() {
		return fmt.Sprintf("all %d checks passed", len(r.Results))
	}

	failures := 0
	for _, result := range r.Results {
		if !result.Passed {
			failures++
		}
	}

	first := r.FirstFailure()

	return fmt.Sprintf("%d of %d checks failed, first failure: %s (%s)",
		failures, len(r.Results), first.Name, first.Detail)
}
