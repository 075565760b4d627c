// Package refactor implements the dependency-aware, budget-bounded
// multi-file refactoring engine. Files are discovered, ordered so that
// depended-upon files are processed first, and repeatedly submitted to
// the deliberator until the budget runs out or a full round improves
// nothing. A rewritten file only reaches disk after passing the syntax
// gate; the original is never left corrupted.
package refactor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"refinery/internal/config"
	"refinery/internal/depgraph"
	"refinery/internal/discovery"
	"refinery/internal/format"
	"refinery/internal/logging"
	"refinery/internal/oracle"
	"refinery/internal/rules"
	"refinery/internal/safety"
)

// MaxFileSize is the per-file ceiling; larger files are skipped.
const MaxFileSize = 256 * 1024

const defaultMaxRounds = 3

// Engine drives the refactoring run. Construct once, use for one or
// more sequential runs; the engine is not safe for concurrent Run calls.
type Engine struct {
	deliberator oracle.Deliberator
	validator   Validator
	rules       RuleChecker
	formatter   Formatter
	observer    Observer
	cfg         config.EngineConfig
}

// Option customizes an Engine.
type Option func(*Engine)

// WithValidator replaces the default syntax checker.
func WithValidator(v Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithRuleChecker replaces the default rule checker.
func WithRuleChecker(rc RuleChecker) Option {
	return func(e *Engine) { e.rules = rc }
}

// WithFormatter replaces the default style formatter.
func WithFormatter(f Formatter) Option {
	return func(e *Engine) { e.formatter = f }
}

// WithObserver installs a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine around a deliberator. Optional collaborators
// default to the real syntax checker, the built-in rule checker, the
// gofmt formatter, and a no-op observer.
func New(deliberator oracle.Deliberator, cfg config.EngineConfig, opts ...Option) *Engine {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	e := &Engine{
		deliberator: deliberator,
		validator:   safety.NewChecker(),
		rules:       rules.NewChecker(),
		formatter:   format.NewGoFormatter(),
		observer:    NopObserver{},
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases collaborator resources.
func (e *Engine) Close() {
	if c, ok := e.validator.(interface{ Close() }); ok {
		c.Close()
	}
}

// runState is the mutable per-run context: graph, schedule, budget and
// result log. Created fresh for every Run call and never shared.
type runState struct {
	runID           string
	startedAt       time.Time
	files           []discovery.File
	graph           depgraph.Graph
	order           []discovery.File
	budget          *Tracker
	results         []Result
	round           int
	roundsRun       int
	converged       bool
	budgetExhausted bool
}

// Run executes the full engine pipeline on root. pattern optionally
// narrows discovery to a glob; exclude removes matching paths. The
// returned summary is complete even on soft stops; an error is
// returned only for precondition failures (no files, too many files)
// or an unexpected orchestration fault.
func (e *Engine) Run(ctx context.Context, root, pattern, exclude string) (sum *Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			sum = nil
			err = fmt.Errorf("refactor run failed: %v", r)
		}
	}()

	timer := logging.StartTimer(logging.CategoryRefactor, "Run")
	defer timer.StopWithInfo()

	files, err := discovery.Discover(root, discovery.Options{
		Pattern:  pattern,
		Exclude:  exclude,
		AllTypes: e.cfg.AllFiles,
	})
	if err != nil {
		return nil, err
	}

	graph := depgraph.Build(files)
	order := depgraph.Schedule(files, graph)

	st := &runState{
		runID:     uuid.NewString(),
		startedAt: time.Now(),
		files:     files,
		graph:     graph,
		order:     order,
		budget:    NewTracker(e.cfg.BudgetCap),
	}

	rounds := e.cfg.MaxRounds
	if e.cfg.DryRun {
		rounds = 1
	}

	logging.Refactor("Run %s: %d files, cap $%.2f, rounds <= %d, dry_run=%v strict=%v align=%v",
		st.runID, len(files), e.cfg.BudgetCap, rounds, e.cfg.DryRun, e.cfg.StrictRewrite, e.cfg.AlignToRules)
	e.observer.RunStarted(st.runID, len(files))

	for round := 1; round <= rounds; round++ {
		st.round = round
		st.roundsRun = round
		improved := 0
		e.observer.RoundStarted(round)
		logging.Refactor("--- Round %d ---", round)

		for _, f := range st.order {
			// Budget is consulted before each new file, never mid-file.
			if st.budget.Exhausted() {
				st.budgetExhausted = true
				break
			}
			res := e.refactorFile(ctx, st, f)
			st.results = append(st.results, res)
			if res.Status == StatusImproved {
				improved++
			}
			e.observer.FileFinished(res)
		}

		if st.budgetExhausted {
			logging.Refactor("Stopping: budget exhausted ($%.4f spent)", st.budget.Spent())
			break
		}
		if improved == 0 {
			// A canceled context fails every deliberation; that is an
			// aborted round, not convergence.
			if ctx.Err() != nil {
				logging.Refactor("Stopping: context canceled during round %d", round)
				break
			}
			st.converged = true
			logging.Refactor("Stopping: round %d improved nothing (converged)", round)
			break
		}
	}

	sum = e.summarize(st, root)
	e.observer.RunFinished(sum)
	return sum, nil
}

func (e *Engine) summarize(st *runState, root string) *Summary {
	attempted := make(map[string]bool)
	improvedFiles := make(map[string]bool)
	failedFiles := make(map[string]bool)
	skippedAlways := make(map[string]bool)

	var totalCost float64
	for _, r := range st.results {
		attempted[r.File] = true
		totalCost += r.Cost
		switch r.Status {
		case StatusImproved:
			improvedFiles[r.File] = true
		case StatusFailed:
			failedFiles[r.File] = true
		}
		if r.Status == StatusSkipped {
			if _, seen := skippedAlways[r.File]; !seen {
				skippedAlways[r.File] = true
			}
		} else {
			skippedAlways[r.File] = false
		}
	}

	sum := &Summary{
		RunID:           st.runID,
		Root:            root,
		DryRun:          e.cfg.DryRun,
		StartedAt:       st.startedAt,
		Duration:        time.Since(st.startedAt),
		TotalFiles:      len(st.files),
		Processed:       len(attempted),
		TotalCost:       totalCost,
		Rounds:          st.roundsRun,
		Converged:       st.converged,
		BudgetExhausted: st.budgetExhausted,
		Results:         st.results,
	}
	sum.Improved = len(improvedFiles)
	for _, onlySkipped := range skippedAlways {
		if onlySkipped {
			sum.Skipped++
		}
	}
	for file := range failedFiles {
		if !improvedFiles[file] {
			sum.Failed++
		}
	}
	return sum
}
