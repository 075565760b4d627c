// Package rules detects style/structure violations used to drive
// convergence in strict-rewrite mode. The checks are deliberately
// cheap and line-oriented; the judgment about how to fix a violation
// belongs to the deliberator, not to this package.
package rules

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"refinery/internal/discovery"
	"refinery/internal/logging"
)

// Violation is one detected style/structure issue.
type Violation struct {
	ID      string
	Message string
	Line    int
}

type pattern struct {
	id    string
	re    *regexp.Regexp
	msg   string
	types map[discovery.FileType]bool // nil = every type
}

var patterns = []pattern{
	{
		id:  "todo-marker",
		re:  regexp.MustCompile(`(?i)\b(TODO|FIXME|XXX|HACK)\b`),
		msg: "unfinished-work marker",
	},
	{
		id:  "merge-conflict",
		re:  regexp.MustCompile(`^(<{7}|={7}|>{7})`),
		msg: "merge conflict marker",
	},
	{
		id:  "placeholder",
		re:  regexp.MustCompile(`(?i)\b(placeholder|stub|not implemented)\b`),
		msg: "placeholder or stub code",
	},
	{
		id:    "not-implemented-panic",
		re:    regexp.MustCompile(`panic\(\s*"`),
		msg:   "panic in library code",
		types: map[discovery.FileType]bool{discovery.TypeGo: true},
	},
	{
		id:    "debug-statement",
		re:    regexp.MustCompile(`\bconsole\.(log|debug|trace)\(`),
		msg:   "leftover debug statement",
		types: map[discovery.FileType]bool{discovery.TypeJavaScript: true, discovery.TypeHTML: true},
	},
	{
		id:    "debugger-statement",
		re:    regexp.MustCompile(`^\s*debugger\s*;?\s*$`),
		msg:   "debugger statement",
		types: map[discovery.FileType]bool{discovery.TypeJavaScript: true},
	},
	{
		id:    "empty-handler",
		re:    regexp.MustCompile(`catch\s*(\([^)]*\))?\s*\{\s*\}`),
		msg:   "empty catch block swallows errors",
		types: map[discovery.FileType]bool{discovery.TypeJavaScript: true, discovery.TypeHTML: true},
	},
	{
		id:    "important-override",
		re:    regexp.MustCompile(`!important`),
		msg:   "!important override",
		types: map[discovery.FileType]bool{discovery.TypeCSS: true},
	},
	{
		id:    "inline-style",
		re:    regexp.MustCompile(`(?i)\sstyle\s*=\s*"`),
		msg:   "inline style attribute",
		types: map[discovery.FileType]bool{discovery.TypeHTML: true},
	},
}

// Checker scans content for violations.
type Checker struct{}

// NewChecker creates a rule checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check returns all violations found in content, in line order.
func (c *Checker) Check(content []byte, path string) []Violation {
	ft := discovery.TypeForPath(path)
	var violations []Violation

	for lineNo, line := range strings.Split(string(content), "\n") {
		for _, p := range patterns {
			if p.types != nil && !p.types[ft] {
				continue
			}
			if p.re.MatchString(line) {
				violations = append(violations, Violation{
					ID:      p.id,
					Message: p.msg,
					Line:    lineNo + 1,
				})
			}
		}
	}

	if len(violations) > 0 {
		logging.Get(logging.CategoryRules).Debug("%s: %d violations", filepath.Base(path), len(violations))
	}
	return violations
}

// Summarize renders violations as a short prompt-ready listing.
func Summarize(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}
	var b strings.Builder
	for _, v := range violations {
		fmt.Fprintf(&b, "- line %d [%s]: %s\n", v.Line, v.ID, v.Message)
	}
	return b.String()
}
