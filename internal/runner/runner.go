// Package runner executes generated R scripts against a dataset snapshot.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/utils"
)

const (
	defaultTimeout = 120 * time.Second
	waitDelay      = 2 * time.Second
)

// Files are the per-call paths inside the output directory.
type Files struct {
	Script string
	Data   string
	Plot   string
}

// Naming maps a call ID to file names (not paths).
type Naming func(callID string) Files

// PerCallNaming derives unique names from the call ID so overlapping calls cannot collide.
func PerCallNaming(callID string) Files {
	return Files{
		Script: "_script-" + callID + ".R",
		Data:   "_data-" + callID + ".csv",
		Plot:   "plot-" + callID + ".png",
	}
}

// LegacyNaming uses fixed names. Safe only while calls never overlap.
func LegacyNaming(string) Files {
	return Files{
		Script: "_temp_generated_script.R",
		Data:   "_temp_for_r.csv",
		Plot:   "r_plot.png",
	}
}

// ExecutionResult is the captured outcome of one interpreter run.
type ExecutionResult struct {
	Stdout       string
	Stderr       string
	ArtifactPath string
	ExitCode     int
	Duration     time.Duration
}

// Options configures a Runner.
type Options struct {
	Search    Search
	OutputDir string
	Timeout   time.Duration
	Naming    Naming
	Logger    zerolog.Logger
}

// Runner writes the harness and data snapshot, runs the interpreter and cleans up.
type Runner struct {
	search    Search
	outputDir string
	timeout   time.Duration
	naming    Naming
	logger    zerolog.Logger
}

func New(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Naming == nil {
		opts.Naming = PerCallNaming
	}
	return &Runner{
		search:    opts.Search,
		outputDir: opts.OutputDir,
		timeout:   opts.Timeout,
		naming:    opts.Naming,
		logger:    opts.Logger,
	}
}

// NewFromConfig builds a Runner from the loaded configuration. Discovery is rooted at the working directory.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) *Runner {
	naming := PerCallNaming
	if cfg.LegacyFilenames {
		naming = LegacyNaming
	}
	root, _ := os.Getwd()
	return New(Options{
		Search: Search{
			Explicit:  cfg.Interpreter,
			Root:      root,
			LocalDirs: cfg.LocalRuntimeDirs,
			Name:      cfg.InterpreterName,
		},
		OutputDir: cfg.OutputDir,
		Timeout:   cfg.ScriptTimeout(),
		Naming:    naming,
		Logger:    logger,
	})
}

// Interpreter resolves the interpreter path. Resolution happens on every call so a
// runtime installed while the program runs is picked up.
func (r *Runner) Interpreter() (string, error) {
	return Resolve(r.search)
}

// Paths joins the names for callID onto the output directory.
func (r *Runner) Paths(callID string) Files {
	n := r.naming(callID)
	return Files{
		Script: filepath.Join(r.outputDir, n.Script),
		Data:   filepath.Join(r.outputDir, n.Data),
		Plot:   filepath.Join(r.outputDir, n.Plot),
	}
}

// Run executes code against the dataset at dataPath; sheet picks the XLSX worksheet
// copied into the snapshot, empty meaning the first. The script and data files are
// removed before Run returns on every path. A non-zero exit or timeout yields a
// populated result together with an *ExecutionError.
func (r *Runner) Run(ctx context.Context, callID, code, dataPath, sheet string) (*ExecutionResult, error) {
	interp, err := r.Interpreter()
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(r.outputDir); err != nil {
		return nil, &IOError{Op: "create output dir", Path: r.outputDir, Err: err}
	}
	files := r.Paths(callID)
	log := r.logger.With().Str("call_id", callID).Logger()

	defer func() {
		for _, p := range []string{files.Script, files.Data} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", p).Msg("temp file cleanup failed")
			}
		}
	}()

	if err := os.WriteFile(files.Script, []byte(Harness(code)), 0o600); err != nil {
		return nil, &IOError{Op: "write script", Path: files.Script, Err: err}
	}
	rows, err := dataset.Snapshot(dataPath, files.Data, dataset.Options{Sheet: sheet})
	if err != nil {
		return nil, &IOError{Op: "write data", Path: files.Data, Err: err}
	}
	if err := os.Remove(files.Plot); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &IOError{Op: "remove stale plot", Path: files.Plot, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, interp, files.Script, files.Data, files.Plot)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	log.Debug().Str("interpreter", interp).Stringer("files", files).Int("rows", rows).Dur("timeout", r.timeout).Msg("running script")
	start := time.Now()
	runErr := cmd.Run()
	res := &ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(cmd, runErr),
		Duration: time.Since(start),
	}
	if utils.FileExists(files.Plot) {
		res.ArtifactPath = files.Plot
	}

	ev := log.Debug()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Int("exit_code", res.ExitCode).Dur("elapsed", res.Duration).Str("artifact", res.ArtifactPath).Msg("script finished")

	if runErr == nil {
		return res, nil
	}
	execErr := &ExecutionError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: runErr}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		execErr.TimedOut = true
		execErr.Timeout = r.timeout
	}
	return res, execErr
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// String renders files for log lines.
func (f Files) String() string {
	return fmt.Sprintf("script=%s data=%s plot=%s", f.Script, f.Data, f.Plot)
}
