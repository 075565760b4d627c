package refactor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/internal/config"
	"refinery/internal/discovery"
	"refinery/internal/oracle"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestEngine(d *stubDeliberator, cfg config.EngineConfig, opts ...Option) *Engine {
	base := []Option{
		WithValidator(okValidator{}),
		WithFormatter(nopFormatter{}),
	}
	return New(d, cfg, append(base, opts...)...)
}

func TestRun_ImprovesAndWritesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "const a = 1;\n")
	writeFile(t, dir, "b.js", "const b = 2;\n")

	d := appendBanner(0.01)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 1})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, sum.TotalFiles)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Improved)
	assert.Equal(t, 0, sum.Failed)
	assert.InDelta(t, 0.02, sum.TotalCost, 1e-9)

	data, err := os.ReadFile(filepath.Join(dir, "a.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "// improved")
}

func TestRun_BudgetBoundsImprovedFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.js", "b.js", "c.js", "d.js", "e.js"} {
		writeFile(t, dir, name, "const x = 1;\n")
	}

	// Fixed cost 1.0 per call, cap 3.0: exactly floor(3/1) files improve
	// before the pre-file budget check stops the round.
	d := appendBanner(1.0)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 3.0, MaxRounds: 1})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Improved)
	assert.True(t, sum.BudgetExhausted)
	assert.False(t, sum.Converged)
	assert.Equal(t, 2, sum.TotalFiles-sum.Processed, "undone files visible in the summary")
}

func TestRun_SingleInFlightCallMayCrossCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x\n")
	writeFile(t, dir, "b.js", "y\n")

	// First call costs more than the whole cap; it still completes, and
	// only the next file is blocked.
	d := appendBanner(5.0)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 1.0, MaxRounds: 3})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Improved)
	assert.True(t, sum.BudgetExhausted)
	assert.InDelta(t, 5.0, sum.TotalCost, 1e-9)
}

func TestRun_RejectedCandidateLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	const original = "const pristine = true;\n"
	path := writeFile(t, dir, "a.js", original)

	d := appendBanner(0.5)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 1},
		WithValidator(rejectValidator{}))

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	require.Len(t, sum.Results, 1)
	assert.Equal(t, StatusFailed, sum.Results[0].Status)
	assert.Contains(t, sum.Results[0].Err, "rejected")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	// Cost is charged for the attempt even though it was rejected.
	assert.InDelta(t, 0.5, sum.TotalCost, 1e-9)
}

func TestRun_DryRunNeverTouchesDisk(t *testing.T) {
	dir := t.TempDir()
	const original = "const keep = 1;\n"
	path := writeFile(t, dir, "a.js", original)

	d := appendBanner(0.25)
	e := newTestEngine(d, config.EngineConfig{DryRun: true, BudgetCap: 100, MaxRounds: 3})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	// Dry run: exactly one round, improvements reported, nothing written.
	assert.Equal(t, 1, sum.Rounds)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.Improved)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	assert.NoFileExists(t, path+".orig")
}

func TestRun_SkipsBinaryAndOversizeFiles(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "bin.js")
	require.NoError(t, os.WriteFile(binPath, []byte("var a\x00= 1;"), 0644))
	bigPath := filepath.Join(dir, "big.js")
	require.NoError(t, os.WriteFile(bigPath, []byte(strings.Repeat("a", MaxFileSize+1)), 0644))

	for _, strict := range []bool{false, true} {
		d := appendBanner(1.0)
		e := newTestEngine(d, config.EngineConfig{
			BudgetCap:     100,
			MaxRounds:     1,
			StrictRewrite: strict,
			AlignToRules:  strict,
		}, WithRuleChecker(&stubRuleChecker{counts: []int{0}}))

		sum, err := e.Run(context.Background(), dir, "", "")
		require.NoError(t, err)

		assert.Equal(t, 2, sum.Skipped, "strict=%v", strict)
		assert.Equal(t, 0, d.callCount(), "skipped files must not reach the deliberator (strict=%v)", strict)
	}
}

func TestRun_ConvergesWhenNothingImproves(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "already perfect\n")

	d := echoDeliberator(0.1)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 3})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	assert.True(t, sum.Converged)
	assert.Equal(t, 1, sum.Rounds)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, StatusUnchanged, sum.Results[0].Status)
}

func TestRun_MultipleRoundsWhileImproving(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "const x = 1;\n")

	d := appendBanner(0.01)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 3})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	// The stub always proposes a change, so all three rounds run.
	assert.Equal(t, 3, sum.Rounds)
	assert.False(t, sum.Converged)
	assert.Len(t, sum.Results, 3)
	for i, r := range sum.Results {
		assert.Equal(t, i+1, r.Round)
	}
}

func TestRun_DeliberatorErrorIsolatedPerFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.js", "x\n")
	writeFile(t, dir, "good.js", "y\n")

	d := &stubDeliberator{
		cost: 0.1,
		improve: func(req oracle.ImproveRequest, _ int) (string, error) {
			if strings.Contains(req.Path, "bad") {
				return "", errors.New("oracle unavailable")
			}
			return req.Content + "// better\n", nil
		},
	}
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 1})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Improved)
	assert.Equal(t, 1, sum.Failed)
}

func TestRun_PanickingCollaboratorIsCaptured(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x\n")
	writeFile(t, dir, "b.js", "y\n")

	calls := 0
	d := &stubDeliberator{
		cost: 0.1,
		improve: func(req oracle.ImproveRequest, _ int) (string, error) {
			calls++
			if calls == 1 {
				panic("collaborator blew up")
			}
			return req.Content + "// ok\n", nil
		},
	}
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 1})

	sum, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	require.Len(t, sum.Results, 2)
	assert.Equal(t, StatusFailed, sum.Results[0].Status)
	assert.Contains(t, sum.Results[0].Err, "panic")
	assert.Equal(t, StatusImproved, sum.Results[1].Status)
}

func TestRun_CanceledRunIsNotConvergence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x\n")
	writeFile(t, dir, "b.js", "y\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With the context gone every deliberation fails, so the round
	// improves nothing; that must not be reported as convergence.
	d := &stubDeliberator{
		improve: func(oracle.ImproveRequest, int) (string, error) {
			return "", context.Canceled
		},
	}
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 3})

	sum, err := e.Run(ctx, dir, "", "")
	require.NoError(t, err)

	assert.False(t, sum.Converged)
	assert.Equal(t, 1, sum.Rounds)
	assert.Equal(t, 2, sum.Failed)
}

func TestRun_PreconditionFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.txt", "nothing supported\n")

	e := newTestEngine(echoDeliberator(0), config.EngineConfig{BudgetCap: 1})
	_, err := e.Run(context.Background(), dir, "", "")
	assert.True(t, errors.Is(err, discovery.ErrNoFiles))
}

func TestRun_KeepBackupsWritesUndoRecord(t *testing.T) {
	dir := t.TempDir()
	const original = "const v = 1;\n"
	path := writeFile(t, dir, "a.js", original)

	d := appendBanner(0.1)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 1, KeepBackups: true})

	_, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".orig")
	require.NoError(t, err)
	assert.Equal(t, original, string(backup))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, original, string(current))
}

func TestRun_DependencyOrderDrivesProcessing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.js", "const u = require('./util')\n")
	writeFile(t, dir, "util.js", "module.exports = {}\n")

	obs := &recordObserver{}
	d := appendBanner(0.01)
	e := newTestEngine(d, config.EngineConfig{BudgetCap: 100, MaxRounds: 1}, WithObserver(obs))

	_, err := e.Run(context.Background(), dir, "", "")
	require.NoError(t, err)

	require.Len(t, obs.started, 2)
	assert.Equal(t, "util.js", filepath.Base(obs.started[0]), "dependency processed before dependent")
	assert.Equal(t, "app.js", filepath.Base(obs.started[1]))
}
