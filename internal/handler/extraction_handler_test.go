package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/handler"
	"docextract/internal/llm"
	"docextract/internal/metrics"
	"docextract/internal/resilience"
	"docextract/internal/service"
	"docextract/internal/web"
	"docextract/mocks"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func init() {
	gin.SetMode(gin.TestMode)
}

type uploadPart struct {
	filename    string
	contentType string
	data        []byte
}

// multipartBody builds a form with an optional image part and doc_type field.
func multipartBody(t *testing.T, image *uploadPart, docType *string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, image.filename))
		h.Set("Content-Type", image.contentType)
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image.data)
		require.NoError(t, err)
	}
	if docType != nil {
		require.NoError(t, writer.WriteField("doc_type", *docType))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func strPtr(s string) *string { return &s }

func newRouter(t *testing.T, svc service.ExtractionService, maxMB int64) *gin.Engine {
	t.Helper()
	tmpl, err := web.Templates()
	require.NoError(t, err)

	h := handler.NewExtractionHandler(svc, zap.NewNop(), &config.UploadConfig{MaxFileSizeMB: maxMB})
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", h.Index)
	r.POST("/extract-text", h.ExtractPage)
	r.POST("/api/v1/extract", h.Extract)
	return r
}

func post(r *gin.Engine, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	r.ServeHTTP(w, req)
	return w
}

func invoiceResult() *domain.ExtractionResult {
	return &domain.ExtractionResult{
		DocumentType: domain.DocumentTypeInvoice,
		Data: map[string]any{
			"invoice_number": "INV-1",
			"total_amount":   json.Number("42"),
		},
		Model:    "gpt-4o",
		Provider: "openai",
	}
}

func TestIndex_RendersForm(t *testing.T) {
	r := newRouter(t, new(mocks.MockExtractionService), 1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/extract-text"`)
	assert.Contains(t, w.Body.String(), `<option value="invoice" selected>invoice</option>`)
	assert.NotContains(t, w.Body.String(), `class="error"`)
}

func TestExtractPage_Success(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Extract", mock.Anything, mock.MatchedBy(func(in service.ExtractInput) bool {
		data, _ := io.ReadAll(in.File)
		return in.DocumentType == "invoice" &&
			in.ContentType == "image/png" &&
			in.Filename == "scan.png" &&
			bytes.Equal(data, pngBytes)
	})).Return(invoiceResult(), nil).Once()

	body, ct := multipartBody(t, &uploadPart{"scan.png", "image/png", pngBytes}, strPtr("invoice"))
	w := post(newRouter(t, svc, 1), "/extract-text", body, ct)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Extracted invoice data")
	assert.Contains(t, w.Body.String(), "INV-1")
	assert.NotContains(t, w.Body.String(), `class="error"`)
	svc.AssertExpectations(t)
}

func TestExtractPage_MissingImage(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Extract", mock.Anything, mock.MatchedBy(func(in service.ExtractInput) bool {
		return in.File == nil && in.DocumentType == "po"
	})).Return(nil, domain.ErrMissingInput).Once()

	body, ct := multipartBody(t, nil, strPtr("po"))
	w := post(newRouter(t, svc, 1), "/extract-text", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing file or document type")
	assert.Contains(t, w.Body.String(), `data-kind="MISSING_INPUT"`)
	assert.Contains(t, w.Body.String(), `<option value="po" selected>`)
}

func TestExtractPage_NotMultipart(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Extract", mock.Anything, mock.MatchedBy(func(in service.ExtractInput) bool {
		return in.File == nil && in.DocumentType == "invoice"
	})).Return(nil, domain.ErrMissingInput).Once()

	w := post(newRouter(t, svc, 1), "/extract-text",
		bytes.NewBufferString("doc_type=invoice"), "application/x-www-form-urlencoded")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing file or document type")
}

func TestExtractPage_ErrorMessages(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"unsupported", domain.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType,
			"Invalid file type. Only PNG, JPG, and JPEG are allowed."},
		{"doc type", domain.ErrInvalidDocumentType, http.StatusBadRequest,
			"Invalid document type. Choose either &#39;invoice&#39; or &#39;po&#39;."},
		{"parse", domain.ErrResponseParse, http.StatusBadGateway, "Failed to parse extracted data."},
		{"external", fmt.Errorf("%w: boom", domain.ErrExternalService), http.StatusBadGateway,
			"Failed to process the image. Please try again."},
		{"unavailable", fmt.Errorf("%w: rate limited", domain.ErrServiceUnavailable), http.StatusServiceUnavailable,
			"Failed to process the image. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockExtractionService)
			svc.On("Extract", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			body, ct := multipartBody(t, &uploadPart{"scan.gif", "image/gif", pngBytes}, strPtr("invoice"))
			w := post(newRouter(t, svc, 1), "/extract-text", body, ct)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
			assert.NotContains(t, w.Body.String(), "Extracted invoice data")
		})
	}
}

func TestExtractPage_BodyTooLarge(t *testing.T) {
	svc := new(mocks.MockExtractionService)

	big := make([]byte, 3<<20)
	body, ct := multipartBody(t, &uploadPart{"scan.png", "image/png", big}, strPtr("invoice"))
	w := post(newRouter(t, svc, 1), "/extract-text", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `data-kind="FILE_TOO_LARGE"`)
	svc.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestExtractAPI_Success(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Extract", mock.Anything, mock.Anything).Return(invoiceResult(), nil).Once()

	body, ct := multipartBody(t, &uploadPart{"scan.jpg", "image/jpeg", pngBytes}, strPtr("invoice"))
	w := post(newRouter(t, svc, 1), "/api/v1/extract", body, ct)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			DocumentType string         `json:"document_type"`
			Data         map[string]any `json:"data"`
			Provider     string         `json:"provider"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "invoice", resp.Data.DocumentType)
	assert.Equal(t, "INV-1", resp.Data.Data["invoice_number"])
	assert.Equal(t, float64(42), resp.Data.Data["total_amount"])
	assert.Equal(t, "openai", resp.Data.Provider)
}

func TestExtractAPI_Error(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("unexpected")).Once()

	body, ct := multipartBody(t, &uploadPart{"scan.png", "image/png", pngBytes}, strPtr("invoice"))
	w := post(newRouter(t, svc, 1), "/api/v1/extract", body, ct)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}

func TestExtractPage_QuotaExhaustedShowsProcessingError(t *testing.T) {
	model := new(mocks.MockVisionModel)
	model.On("Complete", mock.Anything, mock.Anything).
		Return(nil, llm.NewRateLimitError("openai", errors.New("insufficient_quota"), 0)).Once()

	logger := zap.NewNop()
	upload := &config.UploadConfig{MaxFileSizeMB: 1}
	svc := service.NewExtractionService(
		model,
		resilience.NewExecutor(resilience.DefaultPolicy(), logger),
		metrics.New(),
		logger,
		upload,
	)

	body, ct := multipartBody(t, &uploadPart{"scan.png", "image/png", pngBytes}, strPtr("invoice"))
	w := post(newRouter(t, svc, 1), "/extract-text", body, ct)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to process the image. Please try again.")
	assert.Contains(t, w.Body.String(), `data-kind="EXTERNAL_SERVICE_ERROR"`)
	model.AssertNumberOfCalls(t, "Complete", 1)
}
