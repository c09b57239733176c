package domain

import (
	"fmt"
	"mime"
	"strings"
)

// DocumentType selects which extraction prompt variant is used.
type DocumentType string

const (
	DocumentTypeInvoice       DocumentType = "invoice"
	DocumentTypePurchaseOrder DocumentType = "po"
)

// DocumentTypes lists the accepted document-type tags in display order.
var DocumentTypes = []DocumentType{DocumentTypeInvoice, DocumentTypePurchaseOrder}

// ParseDocumentType validates a caller-supplied tag.
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocumentTypeInvoice, DocumentTypePurchaseOrder:
		return DocumentType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, s)
	}
}

// Label returns the human-readable name used in prompts and templates.
func (d DocumentType) Label() string {
	switch d {
	case DocumentTypeInvoice:
		return "invoice"
	case DocumentTypePurchaseOrder:
		return "purchase order"
	default:
		return string(d)
	}
}

// AllowedImageTypes is the allow-list of declared MIME types for uploads.
var AllowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
}

// NormalizeContentType lower-cases a declared content type and drops any parameters.
func NormalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

// IsAllowedImageType reports whether the declared content type is on the allow-list.
func IsAllowedImageType(contentType string) bool {
	return AllowedImageTypes[NormalizeContentType(contentType)]
}
