package extraction

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"docextract/internal/domain"
)

const fence = "```"

// Normalize strips surrounding whitespace and a markdown code fence (with an
// optional language tag such as "json") that the model may have wrapped its
// answer in. It does not otherwise touch the content.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		// Drop the language tag, if any, up to the end of the opening line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(s[:nl]); isLanguageTag(tag) {
				s = s[nl+1:]
			}
		} else {
			s = stripInlineTag(s)
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

// stripInlineTag drops a language tag glued to the payload on a one-line
// fence, e.g. "json{...}```".
func stripInlineTag(s string) string {
	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), fence))
	if isLanguageTag(body) {
		return ""
	}
	start := strings.IndexAny(s, "{[")
	if start > 0 && isLanguageTag(strings.TrimSpace(s[:start])) {
		return s[start:]
	}
	return s
}

func isLanguageTag(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// Decode parses normalized model output. It accepts exactly one JSON object
// and keeps numbers as json.Number so they render as the model wrote them.
func Decode(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResponseParse, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: top-level value is not an object", domain.ErrResponseParse)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", domain.ErrResponseParse)
	}
	return out, nil
}

// EncodeDataURI embeds data as a base64 data URI. The non-standard
// "image/jpg" is sent as "image/jpeg".
func EncodeDataURI(contentType string, data []byte) string {
	ct := DataURIMediaType(contentType)
	var buf bytes.Buffer
	buf.Grow(len("data:;base64,") + len(ct) + base64.StdEncoding.EncodedLen(len(data)))
	buf.WriteString("data:")
	buf.WriteString(ct)
	buf.WriteString(";base64,")
	buf.WriteString(base64.StdEncoding.EncodeToString(data))
	return buf.String()
}

// DataURIMediaType returns the canonical media type for an allowed image type.
func DataURIMediaType(contentType string) string {
	ct := domain.NormalizeContentType(contentType)
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}
