package main

import (
	"log/slog"
	"os"

	"github.com/dwizi/poke-monitor/internal/cli"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	if err := cli.NewRoot(logger, level).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
