// Package format invokes external style formatters after a successful
// rewrite. Formatting is best-effort: the engine swallows failures and
// keeps the validated content as written.
package format

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"refinery/internal/logging"
)

// GoFormatter runs gofmt -w on Go files.
type GoFormatter struct {
	Binary  string
	Timeout time.Duration
}

// NewGoFormatter creates a formatter with defaults.
func NewGoFormatter() *GoFormatter {
	return &GoFormatter{Binary: "gofmt", Timeout: 10 * time.Second}
}

// Format formats path in place. Non-Go files are a no-op.
func (f *GoFormatter) Format(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".go") {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Binary, "-w", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		logging.Refactor("gofmt failed for %s: %v (%s)", path, err, strings.TrimSpace(string(out)))
		return fmt.Errorf("gofmt %s: %w", path, err)
	}
	return nil
}
