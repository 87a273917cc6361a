package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/statloom/internal/session"
	"github.com/KaramelBytes/statloom/internal/utils"
)

var (
	askDataPath string
	askSheet    string
	askJSON     bool
	askQuiet    bool
	askOutput   string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question about a dataset and run the returned R code",
	Example: `  statloom ask --data sales.csv "Plot monthly revenue"
  statloom ask --data survey.xlsx --sheet Responses --json "Summarise age by region"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return errors.New("question must not be empty")
		}
		if askDataPath == "" {
			return errors.New("--data is required")
		}
		if !utils.FileExists(askDataPath) {
			return fmt.Errorf("data file not found: %s", askDataPath)
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}

		svc, err := buildService(c, logger)
		if err != nil {
			return err
		}
		res := svc.ProcessRequest(cmd.Context(), session.Request{Prompt: question, DataPath: askDataPath, Sheet: askSheet})

		if err := writeResult(res, outputOptions{
			JSON:       askJSON,
			Quiet:      askQuiet,
			OutputPath: askOutput,
			Writer:     cmd.OutOrStdout(),
		}); err != nil {
			return err
		}
		if err := turnError(res); err != nil {
			return err
		}
		// The reply stands; only the script could not run.
		if hint := userHint(res.ExecErr); hint != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Hint:", hint)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askDataPath, "data", "", "dataset to analyse (.csv, .tsv or .xlsx)")
	askCmd.Flags().StringVar(&askSheet, "sheet", "", "worksheet name for .xlsx input (default first sheet)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result record as JSON")
	askCmd.Flags().BoolVar(&askQuiet, "quiet", false, "print only the model's reply text")
	askCmd.Flags().StringVar(&askOutput, "output", "", "also save the result record as JSON to this path")
}
