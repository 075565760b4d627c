package refactor

import (
	"refinery/internal/discovery"
	"refinery/internal/rules"
)

// Validator is the syntax gate consulted before any write.
type Validator interface {
	Validate(ft discovery.FileType, content []byte) error
}

// RuleChecker detects style/structure violations; consulted only when
// align-to-rules is enabled.
type RuleChecker interface {
	Check(content []byte, path string) []rules.Violation
}

// Formatter applies an external style formatter after a successful
// write. Failures are swallowed by the engine.
type Formatter interface {
	Format(path string) error
}

// Observer receives per-file and per-round progress notifications.
// Purely observational; it never affects control flow.
type Observer interface {
	RunStarted(runID string, totalFiles int)
	RoundStarted(round int)
	FileStarted(path string, round int)
	FileFinished(res Result)
	RunFinished(sum *Summary)
}

// NopObserver is the default Observer.
type NopObserver struct{}

func (NopObserver) RunStarted(string, int)  {}
func (NopObserver) RoundStarted(int)        {}
func (NopObserver) FileStarted(string, int) {}
func (NopObserver) FileFinished(Result)     {}
func (NopObserver) RunFinished(*Summary)    {}

// nopFormatter disables post-write formatting.
type nopFormatter struct{}

func (nopFormatter) Format(string) error { return nil }
