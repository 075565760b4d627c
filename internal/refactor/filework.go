package refactor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"refinery/internal/discovery"
	"refinery/internal/logging"
	"refinery/internal/oracle"
)

// refactorFile runs one improvement attempt for one file. Every
// failure mode is captured in the returned Result; nothing thrown here
// ever aborts the run, including panics from collaborators.
func (e *Engine) refactorFile(ctx context.Context, st *runState, f discovery.File) (res Result) {
	start := time.Now()
	res = Result{File: f.Path, Round: st.round}
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Err = fmt.Sprintf("panic: %v", r)
		}
		res.Duration = time.Since(start)
	}()

	e.observer.FileStarted(f.Path, st.round)

	original, err := os.ReadFile(f.Path)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Sprintf("read failed: %v", err)
		return res
	}

	if bytes.IndexByte(original, 0) >= 0 {
		res.Status = StatusSkipped
		res.Reason = "binary file"
		return res
	}
	if len(original) > MaxFileSize {
		res.Status = StatusSkipped
		res.Reason = fmt.Sprintf("file exceeds %d byte limit", MaxFileSize)
		return res
	}

	var candidate string
	if e.cfg.StrictRewrite {
		out, strictErr := e.strictRewrite(ctx, f, string(original))
		// Pass costs are real money even when the rewrite fails;
		// charge them regardless of the outcome.
		st.budget.Charge(out.cost)
		res.Cost = out.cost
		res.Passes = out.passes
		if strictErr != nil {
			res.Status = StatusFailed
			res.Err = strictErr.Error()
			return res
		}
		candidate = out.content
	} else {
		imp, impErr := e.deliberator.Improve(ctx, oracle.ImproveRequest{
			Path:     f.Path,
			FileType: string(f.Type),
			Content:  string(original),
			Pass:     1,
		})
		if impErr != nil {
			res.Status = StatusFailed
			res.Err = fmt.Sprintf("deliberation failed: %v", impErr)
			return res
		}
		// The tokens are spent whether or not the proposal changes
		// anything, so the attempt is billed before the content is
		// even compared. An all-unchanged round can therefore still
		// drain the budget.
		st.budget.Charge(imp.Cost)
		res.Cost = imp.Cost
		res.Passes = 1
		candidate = imp.Content
	}

	if candidate == string(original) {
		res.Status = StatusUnchanged
		res.Reason = "no changes proposed"
		return res
	}

	if e.cfg.DryRun {
		// Computed but never persisted; reported as improved so
		// convergence behaves identically to a live run.
		res.Status = StatusImproved
		res.Reason = "dry run"
		return res
	}

	if valErr := e.validator.Validate(f.Type, []byte(candidate)); valErr != nil {
		res.Status = StatusFailed
		res.Err = fmt.Sprintf("candidate rejected: %v", valErr)
		return res
	}

	if writeErr := replaceFile(f.Path, original, []byte(candidate), e.cfg.KeepBackups); writeErr != nil {
		res.Status = StatusFailed
		res.Err = fmt.Sprintf("write failed: %v", writeErr)
		return res
	}

	if fmtErr := e.formatter.Format(f.Path); fmtErr != nil {
		logging.RefactorDebug("Formatter failed for %s: %v", f.Path, fmtErr)
	}

	res.Status = StatusImproved
	return res
}

// replaceFile swaps in candidate content via write-to-temp-then-rename,
// so a crash never leaves the target truncated or half-written. When
// keepBackup is set the original is first committed to a .orig sibling
// as an explicit undo record; it is not removed afterwards.
func replaceFile(path string, original, candidate []byte, keepBackup bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat original: %w", err)
	}
	mode := info.Mode().Perm()

	if keepBackup {
		if err := os.WriteFile(path+".orig", original, mode); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".refinery-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(candidate); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
