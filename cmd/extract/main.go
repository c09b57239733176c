package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/logging"
)

type CLI struct {
	Run     RunCommand     `cmd:"run" default:"withargs" help:"Extract structured data from a document image."`
	Version VersionCommand `cmd:"version" help:"Print the version."`
}

var version = "dev"

type VersionCommand struct{}

func (VersionCommand) Run() error {
	_, err := os.Stdout.WriteString(version + "\n")
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("extract"),
		kong.Description("Extract invoice or purchase order data from an image using the configured vision model."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(); err != nil {
		logger, _ := logging.New(config.LogConfig{Level: "error", Format: "console"})
		logger.Error("extraction failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
