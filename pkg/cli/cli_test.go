package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCommandError(t *testing.T) {
	base := errors.New("connection refused")
	err := NewCommandError("status", base)

	if got := err.Error(); !strings.Contains(got, "status") || !strings.Contains(got, "connection refused") {
		t.Errorf("Error() = %q, want command and cause", got)
	}
	if !errors.Is(err, base) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatText)

	if err := f.FormatTo(&buf, "hello"); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}
	if got := buf.String(); got != "hello\n" {
		t.Errorf("FormatTo wrote %q, want %q", got, "hello\n")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatJSON)

	data := map[string]int{"total": 3}
	if err := f.FormatTo(&buf, data); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}

	var decoded map[string]int
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["total"] != 3 {
		t.Errorf("decoded total = %d, want 3", decoded["total"])
	}
	if !strings.Contains(buf.String(), "  ") {
		t.Error("expected indented output")
	}
}

func TestNewFormatterDefault(t *testing.T) {
	if _, ok := NewFormatter("csv").(*TextFormatter); !ok {
		t.Error("unknown format should fall back to text")
	}
}
