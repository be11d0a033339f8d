package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"expensetracker/internal/api"
	"expensetracker/internal/cli"
	"expensetracker/internal/log"
	"expensetracker/internal/tui"
	"expensetracker/internal/view"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(log.Default(log.ComponentApp))

	logFile, err := cli.OpenLogFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "expense-tracker:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := cli.SetupLogger(log.ComponentApp, logFile)
	logger.Info("Starting expense-tracker", "api", cfg.APIBaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	ctrl := view.NewController(client, logger)

	if _, err := tea.NewProgram(tui.New(ctx, ctrl, logger), tea.WithAltScreen()).Run(); err != nil {
		logger.Error("Terminal UI failed", log.FieldError, err)
		fmt.Fprintln(os.Stderr, "expense-tracker:", err)
		os.Exit(1)
	}
	logger.Info("expense-tracker exited")
}
