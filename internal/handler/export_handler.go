package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docextract/internal/export"
	"docextract/internal/extraction"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler turns a rendered extraction result into a downloadable file.
type ExportHandler struct {
	logger *zap.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(logger *zap.Logger) *ExportHandler {
	return &ExportHandler{logger: logger}
}

// Export handles POST /export
// Form fields: data (the extraction result as JSON), format (csv or xlsx)
// and an optional doc_type used to name the download.
func (h *ExportHandler) Export(c *gin.Context) {
	format := c.DefaultPostForm("format", formatCSV)
	if format != formatCSV && format != formatXLSX {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx")
		return
	}

	data, err := extraction.Decode(c.PostForm("data"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_DATA", "data must be a JSON object")
		return
	}

	fields := export.Flatten(data)
	filename := export.BuildFilename(c.PostForm(docTypeField), format, time.Now())

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == formatXLSX {
		contentType = xlsxContentType
		err = export.WriteXLSX(&buf, fields)
	} else {
		err = export.WriteCSV(&buf, fields)
	}
	if err != nil {
		h.logger.Error("export failed", zap.String("format", format), zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "EXPORT_FAILED", "failed to build export file")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
