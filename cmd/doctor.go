package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/runner"
	"github.com/KaramelBytes/statloom/internal/utils"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, output directory and the R interpreter",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c, err := requireConfig()
		if err != nil {
			return err
		}
		failed := false

		if client, err := ai.NewClientFromConfig(c, logger); err != nil {
			fmt.Fprintf(out, "✗ API configuration: %v\n", err)
			if hint := userHint(err); hint != "" {
				fmt.Fprintf(out, "  Hint: %s\n", hint)
			}
			failed = true
		} else {
			fmt.Fprintf(out, "✓ API configuration: model %s at %s\n", client.Model(), c.APIURL)
		}

		if err := utils.EnsureDir(c.OutputDir); err != nil {
			fmt.Fprintf(out, "✗ Output directory %s: %v\n", c.OutputDir, err)
			failed = true
		} else {
			fmt.Fprintf(out, "✓ Output directory: %s\n", c.OutputDir)
		}

		path, err := runner.NewFromConfig(c, logger).Interpreter()
		switch {
		case errors.Is(err, runner.ErrInterpreterNotFound):
			// Questions still get answers; only code execution is unavailable.
			fmt.Fprintf(out, "⚠ R interpreter: %v\n  Hint: %s\n", err, userHint(err))
		case err != nil:
			fmt.Fprintf(out, "✗ R interpreter: %v\n", err)
			failed = true
		default:
			fmt.Fprintf(out, "✓ R interpreter: %s\n", path)
		}

		if failed {
			return errors.New("doctor found problems")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
