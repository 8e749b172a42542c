package attributes

import (
	"testing"

	"github.com/mrzor/sockstamp/internal/config"
)

func TestEvaluator_Simple(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "test.attr", Expression: `env["FOO"]`},
		{Name: "stage", Expression: `transport + "/" + stage`},
	}

	evaluator, err := NewEvaluator(attrs)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(&Scope{
		Environ:   map[string]string{"FOO": "bar"},
		Transport: "tcp",
		Stage:     "SCM_TSTAMP_ACK",
	})

	if len(result) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(result))
	}
	if result[0].Key != "test.attr" || result[0].Value.AsString() != "bar" {
		t.Errorf("result[0] = %v=%q, want test.attr=bar", result[0].Key, result[0].Value.AsString())
	}
	if result[1].Value.AsString() != "tcp/SCM_TSTAMP_ACK" {
		t.Errorf("result[1].Value = %q, want tcp/SCM_TSTAMP_ACK", result[1].Value.AsString())
	}
}

func TestEvaluator_NumericScope(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "slow", Expression: `avg > 50000`},
		{Name: "window", Expression: `window * 2`},
	}

	evaluator, err := NewEvaluator(attrs)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(&Scope{Window: 60, Avg: 75000})
	if len(result) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(result))
	}
	if result[0].Value.AsString() != "true" {
		t.Errorf("slow = %q, want true", result[0].Value.AsString())
	}
	if result[1].Value.AsString() != "120" {
		t.Errorf("window = %q, want 120", result[1].Value.AsString())
	}
}

func TestEvaluator_MapExpansion(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "expanded", Expression: `env`},
	}

	evaluator, err := NewEvaluator(attrs)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(&Scope{Environ: map[string]string{"FOO": "bar", "BAZ.X": "qux"}})
	if len(result) != 2 {
		t.Fatalf("Expected 2 attributes (map expansion), got %d", len(result))
	}

	got := make(map[string]string)
	for _, attr := range result {
		got[string(attr.Key)] = attr.Value.AsString()
	}
	if got["expanded.FOO"] != "bar" {
		t.Errorf("expanded.FOO = %q, want bar", got["expanded.FOO"])
	}
	if got["expanded.BAZ_X"] != "qux" {
		t.Errorf("expanded.BAZ_X = %q, want qux", got["expanded.BAZ_X"])
	}
}

func TestSanitizeAttributeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"with-dash", "with_dash"},
		{"with.dot", "with_dot"},
		{"with space", "with_space"},
		{"special!@#$%", "special_____"},
		{"mixed-123.test", "mixed_123_test"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeAttributeName(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeAttributeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvaluator_InvalidExpression(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "bad", Expression: `invalid syntax here`},
	}

	if _, err := NewEvaluator(attrs); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestEvaluator_UnknownVariable(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "bad", Expression: `cmdline`},
	}

	if _, err := NewEvaluator(attrs); err == nil {
		t.Error("Expected error for undeclared variable")
	}
}

func TestEvaluator_RuntimeErrorSkipsAttribute(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "good", Expression: `stage`},
		{Name: "bad", Expression: `window % (window - window)`},
	}

	evaluator, err := NewEvaluator(attrs)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(&Scope{Stage: "direct", Window: 600})
	if len(result) < 1 || result[0].Value.AsString() != "direct" {
		t.Fatalf("Expected good attribute first, got %v", result)
	}
}

func TestEvaluator_MissingKey(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "missing", Expression: `env["MISSING"]`},
	}

	evaluator, err := NewEvaluator(attrs)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(&Scope{})
	if len(result) != 1 {
		t.Fatalf("Expected 1 attribute, got %d", len(result))
	}
	if result[0].Value.AsString() != "" {
		t.Errorf("result[0].Value = %q, want empty string", result[0].Value.AsString())
	}
}

func TestEvaluator_NilScope(t *testing.T) {
	evaluator, err := NewEvaluator([]config.CustomAttribute{{Name: "test", Expression: `env["FOO"]`}})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	if result := evaluator.Evaluate(nil); result != nil {
		t.Error("Expected nil result for nil scope")
	}
}
