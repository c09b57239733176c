package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/domain"
	"docextract/internal/export"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestDetectContentType(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"png extension", "scan.png", "image/png"},
		{"jpeg extension", "scan.JPG", "image/jpeg"},
		{"no extension sniffs bytes", "scan", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.filename)
			require.NoError(t, os.WriteFile(path, pngHeader, 0o600))
			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()

			ct, err := detectContentType(path, f)

			require.NoError(t, err)
			assert.Equal(t, tt.want, ct)

			// reader is rewound for the upload
			first := make([]byte, 1)
			_, err = f.Read(first)
			require.NoError(t, err)
			assert.Equal(t, byte(0x89), first[0])
		})
	}
}

func TestWriteResult(t *testing.T) {
	result := &domain.ExtractionResult{
		DocumentType: domain.DocumentTypePurchaseOrder,
		Data:         map[string]any{"po_number": "PO-3"},
		Provider:     "openai",
		Model:        "gpt-4o",
	}

	var jsonOut bytes.Buffer
	require.NoError(t, writeResult(&jsonOut, "json", result))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	assert.Equal(t, "po", decoded["document_type"])
	assert.Equal(t, map[string]any{"po_number": "PO-3"}, decoded["data"])

	var csvOut bytes.Buffer
	require.NoError(t, writeResult(&csvOut, "csv", result))
	assert.True(t, bytes.HasPrefix(csvOut.Bytes(), export.BOM))
	assert.Contains(t, csvOut.String(), "po_number,PO-3")
}
