package web

import (
	"embed"
	"encoding/json"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(files, "templates/*.html")
}

// FuncMap holds the helpers used to render untyped extraction results.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"isMap": func(v any) bool {
			_, ok := v.(map[string]any)
			return ok
		},
		"isList": func(v any) bool {
			_, ok := v.([]any)
			return ok
		},
		"scalar": func(v any) any {
			if v == nil {
				return "-"
			}
			return v
		},
		"toJSON": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		"toPrettyJSON": func(v any) (string, error) {
			b, err := json.MarshalIndent(v, "", "  ")
			return string(b), err
		},
	}
}
