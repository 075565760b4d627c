package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"refinery/internal/history"
	"refinery/internal/refactor"
)

// Semantic colors shared by progress output and summaries.
var (
	successColor = lipgloss.Color("#8BC34A")
	warnColor    = lipgloss.Color("#FFC107")
	errorColor   = lipgloss.Color("#e53935")
	mutedColor   = lipgloss.Color("#8a919e")
	accentColor  = lipgloss.Color("#2196F3")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

// progressObserver prints one line per file as the engine works.
type progressObserver struct {
	mu    sync.Mutex
	w     io.Writer
	total int
	done  int
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) RunStarted(runID string, totalFiles int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = totalFiles
	fmt.Fprintf(p.w, "%s %s\n",
		titleStyle.Render("refinery"),
		mutedStyle.Render(fmt.Sprintf("run %s, %d files", runID, totalFiles)))
}

func (p *progressObserver) RoundStarted(round int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s\n", titleStyle.Render(fmt.Sprintf("round %d", round)))
}

func (p *progressObserver) FileStarted(path string, round int) {}

func (p *progressObserver) FileFinished(res refactor.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++

	var marker string
	switch res.Status {
	case refactor.StatusImproved:
		marker = successStyle.Render("✓")
	case refactor.StatusUnchanged:
		marker = mutedStyle.Render("=")
	case refactor.StatusSkipped:
		marker = warnStyle.Render("-")
	case refactor.StatusFailed:
		marker = errorStyle.Render("✗")
	}

	detail := string(res.Status)
	if res.Reason != "" {
		detail = res.Reason
	}
	if res.Err != "" {
		detail = res.Err
	}
	fmt.Fprintf(p.w, "  %s %s %s\n", marker, res.File, mutedStyle.Render(detail))
}

func (p *progressObserver) RunFinished(sum *refactor.Summary) {}

// renderSummary formats a finished run as a bordered report card.
func renderSummary(sum *refactor.Summary) string {
	var b strings.Builder

	mode := "live"
	if sum.DryRun {
		mode = "dry-run"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s (%s)", sum.RunID, mode)))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Files      %d total, %d processed\n", sum.TotalFiles, sum.Processed)
	fmt.Fprintf(&b, "Improved   %s\n", successStyle.Render(fmt.Sprintf("%d", sum.Improved)))
	if sum.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped    %s\n", warnStyle.Render(fmt.Sprintf("%d", sum.Skipped)))
	}
	if sum.Failed > 0 {
		fmt.Fprintf(&b, "Failed     %s\n", errorStyle.Render(fmt.Sprintf("%d", sum.Failed)))
	}
	fmt.Fprintf(&b, "Cost       $%.4f\n", sum.TotalCost)
	fmt.Fprintf(&b, "Rounds     %d\n", sum.Rounds)
	fmt.Fprintf(&b, "Duration   %s\n", sum.Duration.Round(time.Millisecond))

	switch {
	case sum.BudgetExhausted:
		b.WriteString(warnStyle.Render("Stopped: budget exhausted"))
		b.WriteString("\n")
	case sum.Converged:
		b.WriteString(successStyle.Render("Converged: no further improvements found"))
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

// renderRuns formats the history listing, newest first.
func renderRuns(runs []history.RunRecord) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Recent runs"))
	b.WriteString("\n")
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = mutedStyle.Render(" (dry-run)")
		}
		fmt.Fprintf(&b, "%s  %s%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.RunID, mode)
		fmt.Fprintf(&b, "    %s improved, %d failed, $%.4f over %d round(s)\n",
			successStyle.Render(fmt.Sprintf("%d", r.Improved)), r.Failed,
			r.TotalCost, r.Rounds)
	}
	return b.String()
}

// renderResults formats one run's per-file audit trail.
func renderResults(results []refactor.Result) string {
	var b strings.Builder
	for _, r := range results {
		line := fmt.Sprintf("round %d  %-10s %s", r.Round, r.Status, r.File)
		switch r.Status {
		case refactor.StatusImproved:
			line = successStyle.Render(line)
		case refactor.StatusFailed:
			line = errorStyle.Render(line)
			if r.Err != "" {
				line += mutedStyle.Render("  " + r.Err)
			}
		case refactor.StatusSkipped:
			line = warnStyle.Render(line)
			if r.Reason != "" {
				line += mutedStyle.Render("  " + r.Reason)
			}
		default:
			line = mutedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
