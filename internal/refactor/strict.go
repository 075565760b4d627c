package refactor

import (
	"context"
	"fmt"
	"strings"

	"refinery/internal/discovery"
	"refinery/internal/logging"
	"refinery/internal/oracle"
	"refinery/internal/rules"
)

// maxStrictPasses bounds the iterative rewrite per file.
const maxStrictPasses = 4

// strictOutcome carries the rewrite result. cost and passes are valid
// even when the rewrite fails, so the budget can be charged for work
// that actually happened.
type strictOutcome struct {
	content string
	cost    float64
	passes  int
}

// strictRewrite is the aggressive improvement strategy: up to
// maxStrictPasses full-file rewrites, driven by the rule checker's
// violation count when align-to-rules is on. A deliberator error,
// empty response, or invalid candidate fails the whole file. With
// align-to-rules off, exactly one pass is performed.
func (e *Engine) strictRewrite(ctx context.Context, f discovery.File, original string) (strictOutcome, error) {
	out := strictOutcome{content: original}
	align := e.cfg.AlignToRules

	current := original
	var violations []rules.Violation
	count := 0
	if align {
		violations = e.rules.Check([]byte(current), f.Path)
		count = len(violations)
		logging.Strict("%s: %d violations before rewrite", f.Path, count)
	}

	nonReducing := 0
	for pass := 1; pass <= maxStrictPasses; pass++ {
		out.passes = pass

		imp, err := e.deliberator.Improve(ctx, oracle.ImproveRequest{
			Path:       f.Path,
			FileType:   string(f.Type),
			Content:    current,
			Pass:       pass,
			Violations: rules.Summarize(violations),
		})
		if err != nil {
			return out, fmt.Errorf("strict pass %d: deliberation failed: %w", pass, err)
		}
		out.cost += imp.Cost

		if strings.TrimSpace(imp.Content) == "" {
			return out, fmt.Errorf("strict pass %d: deliberator returned empty content", pass)
		}
		if err := e.validator.Validate(f.Type, []byte(imp.Content)); err != nil {
			return out, fmt.Errorf("strict pass %d: candidate rejected: %w", pass, err)
		}

		if !align {
			// Without a violation signal there is nothing to iterate on.
			out.content = imp.Content
			return out, nil
		}

		newViolations := e.rules.Check([]byte(imp.Content), f.Path)
		newCount := len(newViolations)
		reduced := newCount < count
		logging.StrictDebug("%s pass %d: violations %d -> %d", f.Path, pass, count, newCount)

		// Adopt the candidate only if it moved the violation count.
		if newCount != count {
			current = imp.Content
			violations = newViolations
			count = newCount
			out.content = current
		}

		if count == 0 && newCount == 0 {
			return out, nil
		}
		if reduced {
			nonReducing = 0
		} else {
			// Two consecutive non-reducing passes: diminishing returns.
			nonReducing++
			if nonReducing >= 2 {
				logging.Strict("%s: stopping after pass %d (diminishing returns)", f.Path, pass)
				return out, nil
			}
		}
	}

	return out, nil
}
