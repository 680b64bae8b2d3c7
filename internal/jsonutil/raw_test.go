package jsonutil

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestRawValue(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{name: "nil", value: nil},
		{name: "string is quoted", value: "a.b", want: `"a.b"`, wantOK: true},
		{name: "raw bytes pass through", value: []byte(`{"x":1}`), want: `{"x":1}`, wantOK: true},
		{name: "invalid raw bytes", value: []byte(`{x`), want: `{x`},
		{name: "slice", value: []string{"a", "b"}, want: `["a","b"]`, wantOK: true},
		{name: "unsupported", value: func() {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := RawValue(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if tt.want != "" && string(raw) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, raw)
			}
		})
	}
}

func TestSetWithEscapedKey(t *testing.T) {
	doc, err := Set([]byte(`{}`), Join("models", "gpt-4.1"), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gjson.GetBytes(doc, `models.gpt-4\.1`).IsObject() {
		t.Fatalf("expected nested key with dot, got %s", doc)
	}

	doc, err = Set(doc, Join("models", "gpt-4.1"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsEmptyObject(gjson.GetBytes(doc, "models")) {
		t.Errorf("expected nil value to delete the key, got %s", doc)
	}
}

func TestPretty(t *testing.T) {
	got := string(Pretty([]byte(`{"a":{"b":1}}`)))
	if !strings.HasPrefix(got, "{\n  \"a\": {") {
		t.Errorf("expected two-space indentation, got %q", got)
	}
	if !strings.HasSuffix(got, "}\n") {
		t.Errorf("expected trailing newline, got %q", got)
	}
	if gjson.Get(got, "a.b").Int() != 1 {
		t.Errorf("expected content preserved, got %q", got)
	}
}
