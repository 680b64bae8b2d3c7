// Package jsonutil holds small helpers around gjson and sjson path editing.
package jsonutil

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RawValue marshals a value into raw JSON bytes for sjson.SetRawBytes calls.
// Byte slices are taken as already encoded JSON. It returns false when the
// value cannot be represented.
func RawValue(value any) ([]byte, bool) {
	if value == nil {
		return nil, false
	}
	if typed, ok := value.([]byte); ok {
		return typed, gjson.ValidBytes(typed)
	}
	raw, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return nil, false
	}
	return raw, true
}

// Set writes value at path.
func Set(doc []byte, path string, value any) ([]byte, error) {
	raw, ok := RawValue(value)
	if !ok {
		return sjson.DeleteBytes(doc, path)
	}
	return sjson.SetRawBytes(doc, path, raw)
}

// EscapeKey escapes a single object key for use inside a gjson/sjson path.
func EscapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Join builds a path from escaped keys.
func Join(keys ...string) string {
	escaped := make([]string, len(keys))
	for i, k := range keys {
		escaped[i] = EscapeKey(k)
	}
	return strings.Join(escaped, ".")
}

// IsEmptyObject reports whether r is an object without keys.
func IsEmptyObject(r gjson.Result) bool {
	return r.IsObject() && len(r.Map()) == 0
}

// Pretty re-indents doc with two spaces and a trailing newline.
func Pretty(doc []byte) []byte {
	out := gjson.GetBytes(doc, "@pretty").Raw
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out)
}
