package memory

import "testing"

func TestNormalize_PlainStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple text", "remember to water the plants"},
		{"multiline text", "line one\nline two"},
		{"prefixed text", "Tool execution result: all good"},
		{"unicode text", "用户喜欢喝咖啡"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.input {
				t.Errorf("Normalize(%q) = %q, want input unchanged", tt.input, got)
			}
		})
	}
}

func TestNormalize_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"empty string", ""},
		{"empty list", []any{}},
		{"empty map", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != "" {
				t.Errorf("Normalize(%v) = %q, want empty string", tt.input, got)
			}
		})
	}
}

func TestNormalize_JSONStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "list of text records",
			input: `[{"text": "a"}, {"text": "b"}]`,
			want:  "a\nb",
		},
		{
			name:  "single text record",
			input: `{"text": "hello"}`,
			want:  "hello",
		},
		{
			name:  "list of plain strings",
			input: `["a", "b"]`,
			want:  "a\nb",
		},
		{
			name:  "escaped quotes",
			input: `{\"text\": \"hi\"}`,
			want:  "hi",
		},
		{
			name:  "record without text field",
			input: `{"id": "m1"}`,
			want:  `{"id":"m1"}`,
		},
		{
			name:  "malformed json falls back to input",
			input: `[not json at all`,
			want:  `[not json at all`,
		},
		{
			name:  "records with empty text skipped",
			input: `[{"text": "a"}, {"text": ""}, {"text": "b"}]`,
			want:  "a\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_StructuredValues(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "list of record maps",
			input: []any{map[string]any{"text": "a"}, map[string]any{"text": "b"}},
			want:  "a\nb",
		},
		{
			name:  "map with text",
			input: map[string]any{"text": "hello"},
			want:  "hello",
		},
		{
			name: "nested json string in text field",
			input: map[string]any{
				"text": `{"text": "inner"}`,
			},
			want: "inner",
		},
		{
			name:  "scalar",
			input: float64(42),
			want:  "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		`[{"text": "a"}, {"text": "b"}]`,
		`{"text": "hello"}`,
		`{"id": "m1"}`,
		`[not json at all`,
		"",
		"Tool execution result: done",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestNormalize_DeepNesting(t *testing.T) {
	// Build a response nested past the recursion guard; it must terminate
	// and produce something rather than recurse unbounded.
	inner := any("core")
	for i := 0; i < 20; i++ {
		inner = map[string]any{"text": inner}
	}

	if got := Normalize(inner); got == "" {
		t.Error("expected non-empty output for deeply nested input")
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`\"quoted\"`, `"quoted"`},
		{`line\nbreak`, "line\nbreak"},
		{`你好`, "你好"},
		{`no escapes`, "no escapes"},
	}

	for _, tt := range tests {
		if got := unescape(tt.input); got != tt.want {
			t.Errorf("unescape(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
