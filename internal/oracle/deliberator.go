// Package oracle defines the Deliberator: the external collaborator
// that proposes an improved version of a file's content at a reported
// cost. The engine never judges what makes code better; it only
// decides whether a proposal is safe and affordable.
package oracle

import "context"

// ImproveRequest carries one file's content to the deliberator.
type ImproveRequest struct {
	Path       string
	FileType   string
	Content    string
	Pass       int    // 1-based pass number; >1 only in strict rewrites
	Violations string // rule-checker summary, empty unless aligning to rules
}

// Improvement is the deliberator's full-file replacement proposal.
type Improvement struct {
	Content      string
	Cost         float64 // currency units charged for the call
	Model        string
	InputTokens  int
	OutputTokens int
}

// Deliberator proposes improved file content. Implementations perform
// their own network I/O and timeout handling; the engine blocks on the
// call and imposes no timeout of its own.
type Deliberator interface {
	Improve(ctx context.Context, req ImproveRequest) (*Improvement, error)
}
