package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/extraction"
	"docextract/internal/llm"
	"docextract/internal/metrics"
	"docextract/internal/port"
	"docextract/internal/resilience"
)

// ModelOperation names the outbound model call in the resilience executor.
const ModelOperation = "model.complete"

const rawLogLimit = 2048

// ExtractInput is the DTO for one extraction request. File is nil when the
// request carried no image part.
type ExtractInput struct {
	File         io.Reader
	Filename     string
	ContentType  string
	DocumentType string
}

// ExtractionService defines the extraction contract.
type ExtractionService interface {
	Extract(ctx context.Context, input ExtractInput) (*domain.ExtractionResult, error)
}

type extractionService struct {
	model    port.VisionModel
	executor *resilience.Executor
	metrics  *metrics.Metrics
	logger   *zap.Logger
	maxBytes int64
}

// NewExtractionService creates a new ExtractionService implementation.
func NewExtractionService(
	model port.VisionModel,
	executor *resilience.Executor,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg *config.UploadConfig,
) ExtractionService {
	return &extractionService{
		model:    model,
		executor: executor,
		metrics:  m,
		logger:   logger,
		maxBytes: cfg.MaxBytes(),
	}
}

func (s *extractionService) Extract(ctx context.Context, input ExtractInput) (*domain.ExtractionResult, error) {
	result, err := s.extract(ctx, input)

	docType := input.DocumentType
	if _, parseErr := domain.ParseDocumentType(docType); parseErr != nil {
		docType = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	s.metrics.ObserveExtraction(docType, outcome)

	return result, err
}

func (s *extractionService) extract(ctx context.Context, input ExtractInput) (*domain.ExtractionResult, error) {
	doc, docType, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveUpload(len(doc.Data))

	req := port.VisionRequest{
		SystemPrompt: extraction.BuildPrompt(docType),
		UserPrompt:   extraction.UserPrompt,
		Image:        doc.Data,
		ContentType:  doc.ContentType,
	}

	resp, err := s.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("raw model response",
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.String("text", llm.Truncate(resp.Text, rawLogLimit)))

	data, err := extraction.Decode(extraction.Normalize(resp.Text))
	if err != nil {
		s.logger.Warn("model response is not valid JSON",
			zap.String("provider", resp.Provider),
			zap.String("text", llm.Truncate(resp.Text, rawLogLimit)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("document extracted",
		zap.String("doc_type", string(docType)),
		zap.String("provider", resp.Provider),
		zap.Strings("fields", sortedKeys(data)))

	return &domain.ExtractionResult{
		DocumentType: docType,
		Data:         data,
		Raw:          resp.Text,
		Model:        resp.Model,
		Provider:     resp.Provider,
	}, nil
}

// validate runs the fail-fast checks in order (presence, media type,
// document type) and only then reads the image into memory.
func (s *extractionService) validate(input ExtractInput) (*domain.UploadedDocument, domain.DocumentType, error) {
	if input.File == nil || input.DocumentType == "" {
		return nil, "", domain.ErrMissingInput
	}
	if !domain.IsAllowedImageType(input.ContentType) {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, input.ContentType)
	}
	docType, err := domain.ParseDocumentType(input.DocumentType)
	if err != nil {
		return nil, "", err
	}

	data, err := s.readAll(input.File)
	if err != nil {
		return nil, "", err
	}

	return &domain.UploadedDocument{
		Filename:    input.Filename,
		ContentType: domain.NormalizeContentType(input.ContentType),
		Data:        data,
	}, docType, nil
}

func (s *extractionService) readAll(r io.Reader) ([]byte, error) {
	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrFileTooLarge
		}
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, domain.ErrFileTooLarge
	}
	return data, nil
}

// invoke performs the outbound call through the executor and maps failures
// onto the external-service error kinds.
func (s *extractionService) invoke(ctx context.Context, req port.VisionRequest) (*port.VisionResponse, error) {
	var resp *port.VisionResponse
	err := s.executor.Execute(ctx, ModelOperation, func(ctx context.Context) error {
		start := time.Now()
		out, err := s.model.Complete(ctx, req)
		provider := providerOf(out, err)
		s.metrics.ObserveModelCall(provider, err, time.Since(start))
		if err != nil {
			return err
		}
		resp = out
		return nil
	}, classifyModelError)
	if err == nil {
		return resp, nil
	}

	s.logger.Error("document understanding call failed", zap.Error(err))

	var rlErr *llm.RateLimitError
	if resilience.IsCircuitOpen(err) || errors.As(err, &rlErr) {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrExternalService, err)
}

func classifyModelError(err error) resilience.Classification {
	if errors.Is(err, context.Canceled) {
		return resilience.Classification{}
	}
	return resilience.Classification{
		Retryable:     llm.IsRetryable(err),
		RecordFailure: true,
	}
}

func providerOf(resp *port.VisionResponse, err error) string {
	if resp != nil && resp.Provider != "" {
		return resp.Provider
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Provider
	}
	var rlErr *llm.RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.Provider
	}
	return "unknown"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
