package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

const sheetName = "Extraction"

var header = []string{"Field", "Value"}

// Field is one leaf of a flattened extraction result.
type Field struct {
	Path  string
	Value string
}

// Flatten walks a decoded JSON value and returns its leaves with dotted
// object paths and indexed array paths, e.g. "items[0].price". Object keys
// are visited in sorted order.
func Flatten(data map[string]any) []Field {
	var out []Field
	flatten("", data, &out)
	return out
}

func flatten(prefix string, v any, out *[]Field) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 && prefix != "" {
			*out = append(*out, Field{Path: prefix, Value: "{}"})
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			flatten(path, t[k], out)
		}
	case []any:
		if len(t) == 0 {
			*out = append(*out, Field{Path: prefix, Value: "[]"})
			return
		}
		for i, item := range t {
			flatten(prefix+"["+strconv.Itoa(i)+"]", item, out)
		}
	default:
		*out = append(*out, Field{Path: prefix, Value: scalarString(t)})
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// WriteCSV writes the fields as a two-column CSV prefixed with a UTF-8 BOM.
func WriteCSV(w io.Writer, fields []Field) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, f := range fields {
		if err := cw.Write([]string{f.Path, f.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the fields to a single-sheet workbook.
func WriteXLSX(w io.Writer, fields []Field) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, field := range fields {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{field.Path, field.Value}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "B", 60); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename replaces characters outside [a-zA-Z0-9_-] with "_",
// collapses runs of underscores and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {prefix}_{YYYY-MM-DD}.{ext} for Content-Disposition.
func BuildFilename(prefix, ext string, now time.Time) string {
	name := SanitizeFilename(prefix)
	if name == "" {
		name = "extraction"
	}
	return fmt.Sprintf("%s_%s.%s", name, now.Format("2006-01-02"), ext)
}
