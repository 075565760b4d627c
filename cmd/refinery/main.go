package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"refinery/internal/config"
	"refinery/internal/history"
	"refinery/internal/logging"
	"refinery/internal/oracle"
	"refinery/internal/refactor"
)

const version = "0.3.0"

var (
	// Global flags
	verbose   bool
	workspace string
	apiKey    string
	model     string

	// Run flags
	dryRun      bool
	budgetCap   float64
	strictMode  bool
	alignRules  bool
	allFiles    bool
	keepBackups bool
	maxRounds   int
	pattern     string
	exclude     string
	timeout     time.Duration

	// History flags
	historyLimit int
	showRunID    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "refinery - dependency-aware multi-file refactoring engine",
	Long: `refinery improves a codebase one file at a time, in dependency order.

It builds a reference graph from the files it finds (imports, script
tags, stylesheet links), schedules depended-upon files first, and sends
each file to an LLM deliberator for a full-file rewrite. Rewrites only
reach disk after passing a syntax gate, and total spend is bounded by a
budget cap. Rounds repeat until nothing improves or the budget runs out.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Refactor the files under a directory (or a single file)",
	Long: `Runs the full pipeline on the given path (default: current directory):

  1. Discover source files (excluding VCS, vendor and build output)
  2. Build the dependency graph from include/reference syntax
  3. Schedule files so dependencies are processed before dependents
  4. Rewrite each file via the deliberator, round by round
  5. Gate every rewrite behind a syntax check before touching disk

Use --dry-run to see what would change without writing anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefactor,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previous runs recorded in this workspace",
	RunE:  showHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the refinery version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("refinery %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Deliberator model override")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing files")
	runCmd.Flags().Float64Var(&budgetCap, "budget", 0, "Spend cap in currency units (0 = config default)")
	runCmd.Flags().BoolVar(&strictMode, "strict", false, "Iterative full-file rewrites per file")
	runCmd.Flags().BoolVar(&alignRules, "align", false, "Drive strict rewrites with the rule checker")
	runCmd.Flags().BoolVar(&allFiles, "all-files", false, "Include unsupported file types")
	runCmd.Flags().BoolVar(&keepBackups, "keep-backups", false, "Retain .orig copies of rewritten files")
	runCmd.Flags().IntVar(&maxRounds, "rounds", 0, "Maximum rounds (0 = config default)")
	runCmd.Flags().StringVar(&pattern, "pattern", "", "Glob narrowing discovery (e.g. '*.go')")
	runCmd.Flags().StringVar(&exclude, "exclude", "", "Glob removing matching paths")
	runCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall run timeout")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&showRunID, "run", "", "Show per-file results for one run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace picks the workspace directory for config, logs and
// history. The run target may live elsewhere.
func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// loadConfig layers config file, environment and flags, strongest last.
func loadConfig(ws string) *config.Config {
	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		logger.Warn("Falling back to default configuration", zap.Error(err))
		cfg = config.DefaultConfig()
	}
	if apiKey != "" {
		cfg.Oracle.APIKey = apiKey
	}
	if model != "" {
		cfg.Oracle.Model = model
	}
	if dryRun {
		cfg.Engine.DryRun = true
	}
	if budgetCap != 0 {
		cfg.Engine.BudgetCap = budgetCap
	}
	if strictMode {
		cfg.Engine.StrictRewrite = true
	}
	if alignRules {
		cfg.Engine.AlignToRules = true
		cfg.Engine.StrictRewrite = true
	}
	if allFiles {
		cfg.Engine.AllFiles = true
	}
	if keepBackups {
		cfg.Engine.KeepBackups = true
	}
	if maxRounds > 0 {
		cfg.Engine.MaxRounds = maxRounds
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}
	return cfg
}

func runRefactor(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	ws := resolveWorkspace()
	cfg := loadConfig(ws)

	if err := logging.Initialize(ws, logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}
	defer logging.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	delib, err := oracle.NewGeminiDeliberator(ctx, oracle.GeminiConfig{
		APIKey:    cfg.Oracle.APIKey,
		Model:     cfg.Oracle.Model,
		MaxTokens: cfg.Oracle.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize deliberator: %w", err)
	}

	engine := refactor.New(delib, cfg.Engine,
		refactor.WithObserver(newProgressObserver(os.Stdout)))
	defer engine.Close()

	logger.Info("Starting run",
		zap.String("root", root),
		zap.Bool("dry_run", cfg.Engine.DryRun),
		zap.Float64("budget", cfg.Engine.BudgetCap))

	sum, err := engine.Run(ctx, root, pattern, exclude)
	if err != nil {
		return err
	}

	fmt.Print(renderSummary(sum))

	if store, herr := history.Open(ws); herr != nil {
		logger.Warn("Run history not recorded", zap.Error(herr))
	} else {
		if rerr := store.RecordRun(sum); rerr != nil {
			logger.Warn("Run history not recorded", zap.Error(rerr))
		}
		store.Close()
	}

	if sum.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", sum.Failed)
	}
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	store, err := history.Open(ws)
	if err != nil {
		return err
	}
	defer store.Close()

	if showRunID != "" {
		results, err := store.RunResults(showRunID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("No results for run %s\n", showRunID)
			return nil
		}
		fmt.Print(renderResults(results))
		return nil
	}

	runs, err := store.RecentRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	fmt.Print(renderRuns(runs))
	return nil
}
