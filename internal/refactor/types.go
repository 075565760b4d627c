package refactor

import (
	"time"
)

// Status classifies one (file, round) attempt.
type Status string

const (
	// StatusImproved - a changed, validated candidate was produced
	// (and written, unless dry-run).
	StatusImproved Status = "improved"
	// StatusUnchanged - the deliberator proposed no change.
	StatusUnchanged Status = "unchanged"
	// StatusSkipped - the file was never sent to the deliberator
	// (binary content or over the size ceiling).
	StatusSkipped Status = "skipped"
	// StatusFailed - an error isolated to this file; the run continues.
	StatusFailed Status = "failed"
)

// Result records one (file, round) attempt. Results are append-only
// and never mutated after creation; they are the run's audit trail.
type Result struct {
	File     string        `json:"file"`
	Round    int           `json:"round"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"` // for unchanged/skipped
	Err      string        `json:"error,omitempty"`  // for failed
	Cost     float64       `json:"cost"`
	Passes   int           `json:"passes,omitempty"` // deliberator calls for this attempt
	Duration time.Duration `json:"duration"`
}

// Summary is the aggregate outcome of one Run invocation.
// File counts are per unique file, not per attempt: Processed counts
// files attempted at least once, Improved files improved in any round,
// Skipped files that were skipped every time they came up, and Failed
// files that errored and were never improved. The gap between
// TotalFiles and Processed is work left undone by a soft stop.
type Summary struct {
	RunID           string        `json:"run_id"`
	Root            string        `json:"root"`
	DryRun          bool          `json:"dry_run"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	TotalFiles      int           `json:"total_files"`
	Processed       int           `json:"processed"`
	Improved        int           `json:"improved"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
	TotalCost       float64       `json:"total_cost"`
	Rounds          int           `json:"rounds"`
	Converged       bool          `json:"converged"`
	BudgetExhausted bool          `json:"budget_exhausted"`
	Results         []Result      `json:"results"`
}
