package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docextract/internal/export"
)

func sampleData() map[string]any {
	return map[string]any{
		"po_number":        "PO-7",
		"total_amount":     json.Number("42.50"),
		"supplier_details": map[string]any{"name": "ACME", "location": "Berlin"},
		"items": []any{
			map[string]any{"item_name": "Bolt", "quantity": json.Number("3")},
		},
		"notes":   nil,
		"paid":    false,
		"tags":    []any{},
		"ship_to": map[string]any{},
	}
}

func TestFlatten(t *testing.T) {
	fields := export.Flatten(sampleData())

	assert.Equal(t, []export.Field{
		{Path: "items[0].item_name", Value: "Bolt"},
		{Path: "items[0].quantity", Value: "3"},
		{Path: "notes", Value: ""},
		{Path: "paid", Value: "false"},
		{Path: "po_number", Value: "PO-7"},
		{Path: "ship_to", Value: "{}"},
		{Path: "supplier_details.location", Value: "Berlin"},
		{Path: "supplier_details.name", Value: "ACME"},
		{Path: "tags", Value: "[]"},
		{Path: "total_amount", Value: "42.50"},
	}, fields)
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, export.Flatten(map[string]any{}))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	err := export.WriteCSV(&buf, []export.Field{{Path: "a", Value: "1"}, {Path: "b.c", Value: "x,y"}})
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(buf.Bytes(), export.BOM))
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(export.BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Field", "Value"}, {"a", "1"}, {"b.c", "x,y"}}, records)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer

	err := export.WriteXLSX(&buf, export.Flatten(sampleData()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Extraction")
	require.NoError(t, err)
	require.Len(t, rows, 11)
	assert.Equal(t, []string{"Field", "Value"}, rows[0])
	assert.Equal(t, []string{"items[0].item_name", "Bolt"}, rows[1])
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "invoice_2026-03-04.csv", export.BuildFilename("invoice", "csv", now))
	assert.Equal(t, "purchase_order_2026-03-04.xlsx", export.BuildFilename("purchase order", "xlsx", now))
	assert.Equal(t, "extraction_2026-03-04.csv", export.BuildFilename("../..", "csv", now))
}
