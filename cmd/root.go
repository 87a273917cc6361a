package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	envFile   string
	debug     bool
	logFormat string
	// Overrides applied on top of the loaded configuration
	flagHTTPTimeoutSec   int
	flagScriptTimeoutSec int
	flagOutputDir        string
	flagModel            string
	flagInterpreter      string

	// Loaded configuration and process logger
	cfg    *cfgpkg.Config
	cfgErr error
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "statloom",
	Short: "statloom: ask questions about a dataset and run the R analysis the model writes",
	Long: `statloom samples a CSV/TSV/XLSX dataset, sends your question to a chat-completions model,
and runs the R script it returns against the full data with Rscript. Reasoning, reply, code,
console output and any plot are reported together.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		if hint := userHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "  Hint:", hint)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.statloom/config.yaml)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file with LLM_API_URL, LLM_API_KEY, LLM_MODEL_NAME (default ./.env if present)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagScriptTimeoutSec, "script-timeout", 0, "R script timeout in seconds (overrides config)")
	pf.StringVar(&flagOutputDir, "output-dir", "", "directory for scripts, data snapshots and plots (overrides config)")
	pf.StringVar(&flagModel, "model", "", "model identifier (overrides config)")
	pf.StringVar(&flagInterpreter, "interpreter", "", "path to Rscript (overrides discovery)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile, envFile)
	cfgErr = err
	if err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		logger = newLogger(os.Stderr, "info", logFormat)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("script-timeout") && flagScriptTimeoutSec > 0 {
		cfg.ScriptTimeoutSec = flagScriptTimeoutSec
	}
	if f.Changed("output-dir") && flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if f.Changed("model") && flagModel != "" {
		cfg.Model = flagModel
	}
	if f.Changed("interpreter") && flagInterpreter != "" {
		cfg.Interpreter = flagInterpreter
	}
	if f.Changed("log-format") && logFormat != "" {
		cfg.LogFormat = logFormat
	}
	logger = newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

func newLogger(w io.Writer, level, format string) zerolog.Logger {
	if debug {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: format, Writer: w})
}

// requireConfig returns the loaded configuration or the load error.
func requireConfig() (*cfgpkg.Config, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, cfgErr
		}
		return nil, fmt.Errorf("%w: no configuration loaded", cfgpkg.ErrMissing)
	}
	return cfg, nil
}
