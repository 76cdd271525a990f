package run

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zerotouch/stagecraft/internal/cache"
	"github.com/zerotouch/stagecraft/internal/config"
	"github.com/zerotouch/stagecraft/internal/executor"
	"github.com/zerotouch/stagecraft/internal/repo"
	"github.com/zerotouch/stagecraft/internal/report"
	"github.com/zerotouch/stagecraft/internal/ui"
)

// Options controls a pipeline run.
type Options struct {
	LogLevel string
	NoColor  bool
	NoReport bool
}

// DefaultOptions returns the options used for the bare
// `stagecraft <stage-file>` invocation.
func DefaultOptions() Options {
	return Options{LogLevel: "info"}
}

var (
	flagLogLevel string
	flagNoColor  bool
	flagNoReport bool
)

// Cmd represents the `stagecraft run` command.
var Cmd = &cobra.Command{
	Use:           "run <stage-file>",
	Short:         "Execute the stages defined in a stage file",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunStageFile(cmd.Context(), args[0], Options{
			LogLevel: flagLogLevel,
			NoColor:  flagNoColor,
			NoReport: flagNoReport,
		})
	},
}

func init() {
	Cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	Cmd.Flags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	Cmd.Flags().BoolVar(&flagNoReport, "no-report", false, "Skip writing the run report")
}

// RunStageFile loads a stage file and executes it against the resolved
// repository root. The returned error carries the failing stage's exit code
// when a script fails.
func RunStageFile(ctx context.Context, path string, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env := envSnapshot(os.Environ())
	logger := ui.NewLogger(opts.LogLevel, os.Stderr)
	printer := ui.NewPrinter(os.Stderr, !opts.NoColor && env["NO_COLOR"] == "")

	repoRoot, err := repo.Root(env)
	if err != nil {
		return err
	}

	sf, err := config.Load(path)
	if err != nil {
		return err
	}

	store := cache.New(cache.DefaultPath(repoRoot),
		cache.WithSkipReads(env["SKIP_CACHE"] == "true"))
	if err := store.Init(); err != nil {
		return err
	}

	ex := &executor.Executor{
		RepoRoot:      repoRoot,
		StageFilePath: path,
		Env:           env,
		Cache:         store,
		Runner:        &executor.ExecRunner{Dir: repoRoot},
		Logger:        logger,
		Reporter:      printer,
	}

	start := time.Now()
	res, runErr := ex.Run(ctx, sf)
	elapsed := time.Since(start)

	if !opts.NoReport {
		writeReport(logger, res, sf, path, repoRoot, start, elapsed)
	}
	printer.Summary(res, elapsed)
	return runErr
}

func writeReport(logger *slog.Logger, res *executor.Result, sf *config.StageFile, stageFile, repoRoot string, start time.Time, elapsed time.Duration) {
	w, err := report.NewWriter(report.DefaultDir(repoRoot))
	if err != nil {
		logger.Warn("run report disabled", "error", err)
		return
	}
	rec := report.RunRecord{
		ID:             report.NewRunID(start),
		Timestamp:      start.UTC(),
		StageFile:      stageFile,
		RepoRoot:       repoRoot,
		Revision:       repo.Revision(repoRoot),
		Mode:           sf.Mode,
		Status:         res.Status,
		Stages:         res.Stages,
		PostValidation: res.PostValidation,
		DurationMillis: elapsed.Milliseconds(),
	}
	if _, err := w.Write(rec); err != nil {
		logger.Warn("failed to write run report", "error", err)
	}
}

// envSnapshot turns os.Environ() form into the explicit map the executor
// expands templates against.
func envSnapshot(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}
