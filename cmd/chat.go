package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/statloom/internal/session"
	"github.com/KaramelBytes/statloom/internal/tui"
	"github.com/KaramelBytes/statloom/internal/utils"
)

var (
	chatDataPath string
	chatSheet    string
	chatLogFile  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive analysis session for a dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if chatDataPath == "" {
			return errors.New("--data is required")
		}
		if !utils.FileExists(chatDataPath) {
			return fmt.Errorf("data file not found: %s", chatDataPath)
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}

		// The terminal belongs to the UI; logs go to a file.
		logPath := chatLogFile
		if logPath == "" {
			logPath = filepath.Join(c.OutputDir, "statloom.log")
		}
		if err := utils.EnsureDir(filepath.Dir(logPath)); err != nil {
			return err
		}
		lf, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer lf.Close()
		log := newLogger(lf, c.LogLevel, "json")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svc, err := buildService(c, log)
		if err != nil {
			return err
		}
		disp := session.NewDispatcher(svc, log)
		model := tui.New(ctx, tui.Options{
			DataPath:    chatDataPath,
			Sheet:       chatSheet,
			PreviewRows: c.PreviewRows,
			Submitter:   disp,
			Logger:      log,
		})
		log.Info().Str("data", chatDataPath).Msg("chat session started")
		_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		// Abandon any in-flight turn; its goroutine observes ctx.
		cancel()
		disp.Wait()
		log.Info().Msg("chat session ended")
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("run ui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatDataPath, "data", "", "dataset to analyse (.csv, .tsv or .xlsx)")
	chatCmd.Flags().StringVar(&chatSheet, "sheet", "", "worksheet name for .xlsx input (default first sheet)")
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "log file (default <output_dir>/statloom.log)")
}
