package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View, set or validate statloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "api_url: %s\n", cfg.APIURL)
		fmt.Fprintf(out, "api_key: %s\n", logging.Redact(cfg.APIKey))
		fmt.Fprintf(out, "model: %s\n", cfg.Model)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "output_dir: %s\n", cfg.OutputDir)
		if cfg.Interpreter != "" {
			fmt.Fprintf(out, "interpreter: %s\n", cfg.Interpreter)
		}
		fmt.Fprintf(out, "interpreter_name: %s\n", cfg.InterpreterName)
		fmt.Fprintf(out, "local_runtime_dirs: %s\n", strings.Join(cfg.LocalRuntimeDirs, ", "))
		fmt.Fprintf(out, "script_timeout_sec: %d\n", cfg.ScriptTimeoutSec)
		fmt.Fprintf(out, "legacy_filenames: %t\n", cfg.LegacyFilenames)
		fmt.Fprintf(out, "prompt_sample_rows: %d\n", cfg.PromptSampleRows)
		fmt.Fprintf(out, "preview_rows: %d\n", cfg.PreviewRows)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Edit the file alone: env, .env and flag overrides must not be persisted.
		fileCfg, err := cfgpkg.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		if err := applySetting(fileCfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(fileCfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the API endpoint, key and model are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
}

func applySetting(c *cfgpkg.Config, key, val string) error {
	switch key {
	case "api_url":
		c.APIURL = val
	case "api_key":
		c.APIKey = val
	case "model":
		c.Model = val
	case "output_dir":
		c.OutputDir = val
	case "interpreter":
		c.Interpreter = val
	case "interpreter_name":
		c.InterpreterName = val
	case "local_runtime_dirs":
		var dirs []string
		for _, d := range strings.Split(val, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		c.LocalRuntimeDirs = dirs
	case "log_level":
		if _, err := zerolog.ParseLevel(strings.ToLower(val)); err != nil {
			return fmt.Errorf("invalid log_level: %s", val)
		}
		c.LogLevel = val
	case "log_format":
		switch val {
		case "console", "json":
			c.LogFormat = val
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "legacy_filenames":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for legacy_filenames: %v", val)
		}
		c.LegacyFilenames = b
	case "http_timeout_sec", "script_timeout_sec", "prompt_sample_rows", "preview_rows":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		switch key {
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "script_timeout_sec":
			c.ScriptTimeoutSec = i
		case "prompt_sample_rows":
			c.PromptSampleRows = i
		case "preview_rows":
			c.PreviewRows = i
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
