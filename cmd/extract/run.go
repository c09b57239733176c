package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/export"
	"docextract/internal/llm"
	_ "docextract/internal/llm/claude"
	_ "docextract/internal/llm/gemini"
	_ "docextract/internal/llm/openai"
	"docextract/internal/logging"
	"docextract/internal/metrics"
	"docextract/internal/resilience"
	"docextract/internal/service"
)

type RunCommand struct {
	File     string `arg:"" help:"Path to a PNG or JPEG document image." type:"existingfile"`
	DocType  string `help:"Document type: invoice or po." enum:"invoice,po" default:"invoice" short:"t"`
	Format   string `help:"Output format." enum:"json,csv,xlsx" default:"json" short:"f"`
	Output   string `help:"Write output to this file instead of stdout." short:"o" type:"path"`
	LogLevel string `help:"The log level to use." env:"DOCEXTRACT_LOG_LEVEL" default:"warn"`
}

func (c RunCommand) Run(ctx context.Context) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.Log.Level = c.LogLevel

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	model, err := llm.NewChain(&cfg.Model, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize model client: %w", err)
	}
	executor := resilience.NewExecutor(
		resilience.PolicyFromConfig(cfg.Resilience, cfg.Model.PrimaryConfig().MaxRetries),
		logger,
	)
	svc := service.NewExtractionService(model, executor, metrics.New(), logger, &cfg.Upload)

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	contentType, err := detectContentType(c.File, f)
	if err != nil {
		return err
	}

	result, err := svc.Extract(ctx, service.ExtractInput{
		File:         f,
		Filename:     filepath.Base(c.File),
		ContentType:  contentType,
		DocumentType: c.DocType,
	})
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if c.Output != "" {
		file, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
		}()
		out = file
	}
	return writeResult(out, c.Format, result)
}

// detectContentType uses the file extension and falls back to sniffing the
// first 512 bytes. The reader is rewound afterwards.
func detectContentType(path string, f io.ReadSeeker) (string, error) {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind image: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}

func writeResult(w io.Writer, format string, result *domain.ExtractionResult) error {
	switch format {
	case "csv":
		return export.WriteCSV(w, export.Flatten(result.Data))
	case "xlsx":
		return export.WriteXLSX(w, export.Flatten(result.Data))
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}
