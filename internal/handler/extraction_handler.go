package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/service"
)

const (
	imageField   = "image"
	docTypeField = "doc_type"

	// multipartOverhead is the body allowance above the image limit for
	// boundaries, part headers and the doc_type field.
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

// ExtractionHandler serves the upload form and the extraction endpoints.
type ExtractionHandler struct {
	extractionService service.ExtractionService
	logger            *zap.Logger
	maxBytes          int64
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(extractionService service.ExtractionService, logger *zap.Logger, cfg *config.UploadConfig) *ExtractionHandler {
	return &ExtractionHandler{
		extractionService: extractionService,
		logger:            logger,
		maxBytes:          cfg.MaxBytes(),
	}
}

// Index handles GET /
func (h *ExtractionHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage(nil, ""))
}

// ExtractPage handles POST /extract-text and renders either the result page
// or the form again with the error message.
func (h *ExtractionHandler) ExtractPage(c *gin.Context) {
	result, docType, err := h.extract(c)
	if err != nil {
		status, code, msg := reportError(c, h.logger, err)
		c.HTML(status, "index.html", indexPage(&pageError{Kind: code, Message: msg}, docType))
		return
	}

	c.HTML(http.StatusOK, "result.html", gin.H{
		"DocType":  result.DocumentType,
		"Data":     result.Data,
		"Provider": result.Provider,
		"Model":    result.Model,
	})
}

// Extract handles POST /api/v1/extract
func (h *ExtractionHandler) Extract(c *gin.Context) {
	result, _, err := h.extract(c)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, result)
}

func (h *ExtractionHandler) extract(c *gin.Context) (*domain.ExtractionResult, string, error) {
	input, closeFn, err := h.bindInput(c)
	defer closeFn()
	if err != nil {
		return nil, input.DocumentType, err
	}

	result, err := h.extractionService.Extract(c.Request.Context(), input)
	return result, input.DocumentType, err
}

// bindInput reads the multipart form into an ExtractInput. A request without
// an image part yields an input with a nil File so the service reports the
// missing input.
func (h *ExtractionHandler) bindInput(c *gin.Context) (service.ExtractInput, func(), error) {
	noop := func() {}
	var input service.ExtractInput

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return input, noop, domain.ErrFileTooLarge
		}
		h.logger.Debug("request is not a multipart form", zap.Error(err))
	}

	input.DocumentType = c.Request.PostForm.Get(docTypeField)

	form := c.Request.MultipartForm
	if form == nil || len(form.File[imageField]) == 0 {
		return input, noop, nil
	}

	header := form.File[imageField][0]
	file, err := header.Open()
	if err != nil {
		return input, noop, err
	}

	input.File = file
	input.Filename = header.Filename
	input.ContentType = header.Header.Get("Content-Type")
	return input, func() { _ = file.Close() }, nil
}

type pageError struct {
	Kind    string
	Message string
}

// indexPage keeps the submitted document type selected when it is valid.
func indexPage(pe *pageError, selected string) gin.H {
	if _, err := domain.ParseDocumentType(selected); err != nil {
		selected = string(domain.DocumentTypeInvoice)
	}
	page := gin.H{
		"DocTypes": domain.DocumentTypes,
		"Selected": selected,
	}
	if pe != nil {
		page["Error"] = pe.Message
		page["ErrorKind"] = pe.Kind
	}
	return page
}
