package tablesync

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"table-sync/core/reconcile"
	"table-sync/core/utils"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a desired-state document.
type Format string

const (
	// FormatJSON documents are decoded with numbers kept exact.
	FormatJSON Format = "json"
	// FormatYAML documents cover both .yaml and .yml files.
	FormatYAML Format = "yaml"
)

// FormatFromName picks the document format from a file or object name.
// Unknown extensions fall back to JSON.
func FormatFromName(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// isDocument reports whether an object name looks like a desired-state document.
func isDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ParseDocument decodes data and merges its rows into desired.
// A key already present in desired, or repeated inside the document, is a
// configuration error, as is a column repeated inside one row.
func ParseDocument(data []byte, format Format, keyColumn string, desired reconcile.DesiredState) error {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return &reconcile.ConfigurationError{Field: "document", Reason: fmt.Sprintf("invalid YAML: %v", err)}
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return &reconcile.ConfigurationError{Field: "document", Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		// Decoding keeps the last of repeated object keys; yaml.v3 rejects them itself.
		if err := checkDuplicateKeys(data); err != nil {
			return err
		}
	}

	switch d := doc.(type) {
	case nil:
		return nil
	case []any:
		return addRowList(d, keyColumn, desired)
	default:
		m, ok := stringMap(doc)
		if !ok {
			return &reconcile.ConfigurationError{
				Field:  "document",
				Reason: fmt.Sprintf("expected an object or an array of rows, got %T", doc),
			}
		}
		return addRowMap(m, desired)
	}
}

func addRowMap(doc map[string]any, desired reconcile.DesiredState) error {
	for key, raw := range doc {
		row, ok := stringMap(raw)
		if !ok {
			return &reconcile.ConfigurationError{Field: "row " + key, Reason: fmt.Sprintf("expected an object, got %T", raw)}
		}
		if err := addRow(key, row, desired); err != nil {
			return err
		}
	}
	return nil
}

func addRowList(doc []any, keyColumn string, desired reconcile.DesiredState) error {
	for i, raw := range doc {
		row, ok := stringMap(raw)
		if !ok {
			return &reconcile.ConfigurationError{Field: fmt.Sprintf("row %d", i), Reason: fmt.Sprintf("expected an object, got %T", raw)}
		}
		key, ok := row[keyColumn]
		if !ok || key == nil {
			return &reconcile.ConfigurationError{Field: fmt.Sprintf("row %d", i), Reason: fmt.Sprintf("missing key column %q", keyColumn)}
		}
		if err := addRow(key, row, desired); err != nil {
			return err
		}
	}
	return nil
}

func addRow(key any, row map[string]any, desired reconcile.DesiredState) error {
	k, err := reconcile.NewValue(key)
	if err != nil {
		return &reconcile.ConfigurationError{Field: "key", Reason: err.Error()}
	}
	if _, dup := desired[k.String()]; dup {
		return &reconcile.ConfigurationError{Field: "key", Reason: fmt.Sprintf("duplicate key %s", k.String())}
	}
	return desired.Set(key, row)
}

type jsonFrame struct {
	object    bool
	expectKey bool
	seen      map[string]struct{}
}

// checkDuplicateKeys walks the JSON tokens of data and reports the first
// object key that appears twice in the same object. The top-level object
// holds row keys, nested objects hold columns.
func checkDuplicateKeys(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var stack []*jsonFrame
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &reconcile.ConfigurationError{Field: "document", Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}

		var top *jsonFrame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}

		if top != nil && top.object && top.expectKey {
			if tok == json.Delim('}') {
				stack = stack[:len(stack)-1]
				continue
			}
			key, _ := tok.(string)
			if _, dup := top.seen[key]; dup {
				field := "document"
				if len(stack) > 1 {
					field = "row"
				}
				return &reconcile.ConfigurationError{Field: field, Reason: fmt.Sprintf("duplicate key %s", key)}
			}
			top.seen[key] = struct{}{}
			top.expectKey = false
			continue
		}

		if top != nil && top.object {
			top.expectKey = true
		}
		switch tok {
		case json.Delim('{'):
			stack = append(stack, &jsonFrame{object: true, expectKey: true, seen: map[string]struct{}{}})
		case json.Delim('['):
			stack = append(stack, &jsonFrame{})
		case json.Delim(']'):
			stack = stack[:len(stack)-1]
		}
	}
}

// stringMap normalizes the map shapes produced by the JSON and YAML decoders.
func stringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[utils.ToString(k)] = val
		}
		return out, true
	}
	return nil, false
}
