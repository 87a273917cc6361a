package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/statloom/internal/dataset"
)

var (
	pvRows    int
	pvSheet   string
	pvProfile bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show the first rows of a CSV/TSV/XLSX file and a column profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		rows := pvRows
		if rows <= 0 {
			rows = 50
			if cfg != nil && cfg.PreviewRows > 0 {
				rows = cfg.PreviewRows
			}
		}
		out := cmd.OutOrStdout()

		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			names, err := dataset.SheetNames(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Sheets: %s\n\n", strings.Join(names, ", "))
		}

		tbl, err := dataset.OpenWith(path, dataset.Options{Limit: rows, Sheet: pvSheet})
		if err != nil {
			return err
		}
		if len(tbl.Columns) == 0 {
			return errors.New("dataset has no columns")
		}
		fmt.Fprintln(out, tbl.Summary())
		fmt.Fprintln(out)
		fmt.Fprint(out, tbl.Markdown())
		if pvProfile {
			fmt.Fprintln(out)
			fmt.Fprint(out, tbl.ProfileMarkdown())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().IntVar(&pvRows, "rows", 0, "number of data rows to show (default preview_rows from config)")
	previewCmd.Flags().StringVar(&pvSheet, "sheet", "", "worksheet name for .xlsx input (default first sheet)")
	previewCmd.Flags().BoolVar(&pvProfile, "profile", true, "append a per-column profile of the sampled rows")
}
