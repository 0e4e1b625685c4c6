package tokenizer

import (
	"fmt"
	"math"
	"strings"
)

// Token estimators per tokenizer family. Exact tokenization is
// provider-internal; these heuristics track the observed ratios closely
// enough for cross-model cost comparison, and they are deterministic, which
// the aggregation layer depends on.

// supported lists the accepted tokenizer kinds, normalized to lower case.
var supported = map[string]bool{
	"anthropic": true,
	"llama":     true,
	"qwen":      true,
	"alibaba":   true,
	"amazon":    true,
	"titan":     true,
	"nova":      true,
	"heuristic": true,
}

// Supported reports whether kind names a known tokenizer. The registry
// checks this at load time so a misconfigured model fails before any paid
// call is made.
func Supported(kind string) bool {
	return supported[normalize(kind)]
}

// Count estimates the token count of text under the given tokenizer kind.
// An empty text always counts as zero tokens; non-empty text counts as at
// least one.
func Count(kind, text string) (int, error) {
	k := normalize(kind)
	if !supported[k] {
		return 0, fmt.Errorf("unsupported tokenizer %q", kind)
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	words := len(strings.Fields(text))
	chars := len(text)

	var estimate int
	switch k {
	case "anthropic":
		// ~4 chars per token plus a word-boundary correction.
		estimate = int(float64(chars)/4 + float64(words)*0.25)
	case "llama", "qwen", "alibaba":
		// SentencePiece-style vocabularies run denser, ~3.5 chars per token.
		estimate = int(float64(chars)/3.5 + float64(words)*0.3)
	default:
		// General heuristic: weighted blend of character and word counts.
		estimate = int((float64(chars)/4)*0.7 + (float64(words)*1.3)*0.3)
	}

	if estimate < 1 {
		estimate = 1
	}
	return estimate, nil
}

// Cost converts token counts to USD using per-1K-token pricing. Pure
// function, rounded to 6 decimal places so repeated computation over the
// same inputs is byte-identical.
func Cost(inputTokens, outputTokens int, inputPer1K, outputPer1K float64) float64 {
	cost := float64(inputTokens)/1000.0*inputPer1K + float64(outputTokens)/1000.0*outputPer1K
	return math.Round(cost*1e6) / 1e6
}

func normalize(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
