package tokenizer

import "testing"

func TestSupported(t *testing.T) {
	for _, kind := range []string{"anthropic", "llama", "heuristic", "titan", "Anthropic", " nova "} {
		if !Supported(kind) {
			t.Errorf("Expected tokenizer %q to be supported", kind)
		}
	}
	if Supported("tiktoken") {
		t.Error("Expected tokenizer 'tiktoken' to be unsupported")
	}
	if Supported("") {
		t.Error("Expected empty tokenizer kind to be unsupported")
	}
}

func TestCount_UnsupportedKind(t *testing.T) {
	if _, err := Count("bogus", "some text"); err == nil {
		t.Fatal("Expected error for unsupported tokenizer kind")
	}
}

func TestCount_EmptyText(t *testing.T) {
	for _, kind := range []string{"anthropic", "llama", "heuristic"} {
		n, err := Count(kind, "")
		if err != nil {
			t.Fatalf("Count(%q, \"\") error: %v", kind, err)
		}
		if n != 0 {
			t.Errorf("Expected 0 tokens for empty text with %q, got %d", kind, n)
		}
	}
}

func TestCount_NonEmptyTextIsPositive(t *testing.T) {
	for _, kind := range []string{"anthropic", "llama", "qwen", "heuristic", "titan"} {
		n, err := Count(kind, "a")
		if err != nil {
			t.Fatalf("Count(%q, \"a\") error: %v", kind, err)
		}
		if n < 1 {
			t.Errorf("Expected at least 1 token for %q, got %d", kind, n)
		}
	}
}

func TestCount_Deterministic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."
	first, err := Count("anthropic", text)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	for i := 0; i < 5; i++ {
		n, err := Count("anthropic", text)
		if err != nil {
			t.Fatalf("Count error: %v", err)
		}
		if n != first {
			t.Fatalf("Expected deterministic count %d, got %d on iteration %d", first, n, i)
		}
	}
}

func TestCount_DenserForLlama(t *testing.T) {
	text := "Structured output evaluation across heterogeneous model providers."
	anthropic, _ := Count("anthropic", text)
	llama, _ := Count("llama", text)
	if llama <= anthropic {
		t.Errorf("Expected llama estimate (%d) above anthropic estimate (%d)", llama, anthropic)
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		name     string
		in, out  int
		priceIn  float64
		priceOut float64
		want     float64
	}{
		{"reference pricing", 10, 5, 0.008, 0.024, 0.0002},
		{"zero tokens", 0, 0, 0.008, 0.024, 0},
		{"input only", 1000, 0, 0.002, 0.006, 0.002},
		{"rounded to micro-USD", 1, 1, 0.0000004, 0.0000004, 0},
	}
	for _, tt := range tests {
		got := Cost(tt.in, tt.out, tt.priceIn, tt.priceOut)
		if got != tt.want {
			t.Errorf("%s: Cost(%d, %d) = %v, want %v", tt.name, tt.in, tt.out, got, tt.want)
		}
	}
}

func TestCost_Idempotent(t *testing.T) {
	first := Cost(1234, 5678, 0.0006, 0.0008)
	for i := 0; i < 10; i++ {
		if got := Cost(1234, 5678, 0.0006, 0.0008); got != first {
			t.Fatalf("Expected identical cost %v, got %v", first, got)
		}
	}
}
