package artifact

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		records  []json.RawMessage
		expected string
	}{
		{
			name:     "nil records",
			records:  nil,
			expected: "[]",
		},
		{
			name:     "empty records",
			records:  []json.RawMessage{},
			expected: "[]",
		},
		{
			name:     "two records indented",
			records:  []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)},
			expected: "[\n  {\n    \"id\": 1\n  },\n  {\n    \"id\": 2\n  }\n]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.records)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Encode() = %q, want %q", data, tt.expected)
			}
		})
	}
}

func TestEncode_InvalidRecord(t *testing.T) {
	_, err := Encode([]json.RawMessage{json.RawMessage(`{broken`)})
	if err == nil {
		t.Error("Expected error for invalid record")
	}
}

func TestDecode(t *testing.T) {
	records, err := Decode([]byte("[\n  {\"id\": 1},\n  {\"id\": 2}\n]"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Decode() returned %d records, want 2", len(records))
	}
	if !strings.Contains(string(records[1]), `"id": 2`) {
		t.Errorf("records[1] = %s", records[1])
	}

	empty, err := Decode([]byte("[]"))
	if err != nil {
		t.Fatalf("Decode([]) error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Decode([]) = %v, want empty non-nil slice", empty)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, input := range []string{`{"id":1}`, `null`, `[1,`, ``} {
		if _, err := Decode([]byte(input)); !errors.Is(err, ErrInvalidArtifact) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidArtifact", input, err)
		}
	}
}

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "default prefix",
			key:      Key{Name: "leetcode_all_problems.json"},
			expected: "harvest:artifact:leetcode_all_problems.json",
		},
		{
			name:     "custom prefix trimmed",
			key:      Key{Prefix: "test:", Name: "run"},
			expected: "test:run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}

	if got := (Key{Name: "x"}).MetaKey(); got != "harvest:artifact:x:meta" {
		t.Errorf("MetaKey() = %q", got)
	}
}
