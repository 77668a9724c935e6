package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/lox/holdemtables/internal/watch"
)

var CLI struct {
	Server   string `short:"s" long:"server" default:"ws://localhost:8080/ws" help:"Server WebSocket URL"`
	Table    string `arg:"" default:"main" help:"Table to watch"`
	LogFile  string `long:"log-file" default:"holdem-watch.log" help:"Where to write logs while the screen is in use"`
	LogLevel string `short:"l" long:"log-level" default:"info" help:"Log level"`
	NoColor  bool   `long:"no-color" env:"NO_COLOR" help:"Disable colors"`
}

func main() {
	ctx := kong.Parse(&CLI)

	f, err := os.OpenFile(CLI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		ctx.Exit(1)
	}
	defer f.Close()

	logger := log.New(f)
	if level, err := log.ParseLevel(CLI.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if CLI.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	dial := func(ctx context.Context) (*watch.Client, error) {
		return watch.Dial(ctx, CLI.Server, CLI.Table, logger)
	}
	model := watch.NewModel(CLI.Table, dial, logger)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		ctx.Exit(1)
	}
	if err := model.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Disconnected: %v\n", err)
		ctx.Exit(1)
	}
}
