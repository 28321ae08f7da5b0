package algorithms

import (
	"math"
	"testing"
)

func TestJaroSimilarity(t *testing.T) {
	tests := []struct {
		name string
		s1   string
		s2   string
		want float64
		eps  float64
	}{
		{"identical", "sales", "sales", 1.0, 0.0001},
		{"case insensitive", "Sales", "SALES", 1.0, 0.0001},
		{"both empty", "", "", 1.0, 0.0001},
		{"one empty", "sales", "", 0.0, 0.0001},
		{"no overlap", "abc", "xyz", 0.0, 0.0001},
		{"classic martha", "martha", "marhta", 0.9444, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JaroSimilarity(tt.s1, tt.s2)
			if math.Abs(got-tt.want) > tt.eps {
				t.Errorf("JaroSimilarity(%q, %q) = %v, want %v", tt.s1, tt.s2, got, tt.want)
			}
		})
	}
}

func TestJaroWinklerSimilarity(t *testing.T) {
	// Общий префикс должен давать бонус относительно чистого Jaro
	jaro := JaroSimilarity("sales_amount", "sales_amt")
	winkler := JaroWinklerSimilarity("sales_amount", "sales_amt")

	if winkler <= jaro {
		t.Errorf("Jaro-Winkler (%v) expected to exceed Jaro (%v) on shared prefix", winkler, jaro)
	}
	if winkler > 1.0 {
		t.Errorf("Jaro-Winkler = %v, must not exceed 1.0", winkler)
	}

	// Ниже порога 0.7 бонус за префикс не применяется
	low := JaroWinklerSimilarity("abcdefgh", "zyxwvuts")
	if low != JaroSimilarity("abcdefgh", "zyxwvuts") {
		t.Error("prefix bonus must not apply below 0.7 base similarity")
	}
}

func TestLCSSimilarity(t *testing.T) {
	if got := LCSSimilarity("date", "date"); got != 1.0 {
		t.Errorf("LCSSimilarity identical = %v, want 1.0", got)
	}
	// LCS("abcd","abd") = 3, maxLen = 4
	if got := LCSSimilarity("abcd", "abd"); math.Abs(got-0.75) > 0.0001 {
		t.Errorf("LCSSimilarity(abcd, abd) = %v, want 0.75", got)
	}
	if got := LCSSimilarity("", ""); got != 1.0 {
		t.Errorf("LCSSimilarity empty = %v, want 1.0", got)
	}
}

func TestNgramSimilarity(t *testing.T) {
	if got := NgramSimilarity("region", "region", 2); got != 1.0 {
		t.Errorf("bigram identical = %v, want 1.0", got)
	}
	if got := NgramSimilarity("ab", "cd", 2); got != 0.0 {
		t.Errorf("bigram disjoint = %v, want 0.0", got)
	}

	partial := NgramSimilarity("customer_name", "customer", 2)
	if partial <= 0.0 || partial >= 1.0 {
		t.Errorf("bigram partial overlap = %v, want in (0,1)", partial)
	}
}

func TestHybridSimilarity(t *testing.T) {
	// Результат всегда в [0,1]
	pairs := [][2]string{
		{"txn_dt", "date"},
		{"sales_amt", "sales"},
		{"prod_sku", "product"},
		{"", "anything"},
		{"region", "region"},
	}

	for _, pair := range pairs {
		got := HybridSimilarity(pair[0], pair[1], nil)
		if got < 0.0 || got > 1.0 {
			t.Errorf("HybridSimilarity(%q, %q) = %v, out of [0,1]", pair[0], pair[1], got)
		}
	}

	if got := HybridSimilarity("quantity", "quantity", nil); math.Abs(got-1.0) > 0.0001 {
		t.Errorf("HybridSimilarity identical = %v, want 1.0", got)
	}
}

func TestSimilarityWeightsNormalize(t *testing.T) {
	weights := &SimilarityWeights{JaroWinkler: 2, LCS: 1, Ngram: 1}
	weights.Normalize()

	total := weights.JaroWinkler + weights.LCS + weights.Ngram
	if math.Abs(total-1.0) > 0.0001 {
		t.Errorf("normalized weights sum = %v, want 1.0", total)
	}

	// Нулевые веса не должны приводить к делению на ноль
	zero := &SimilarityWeights{}
	zero.Normalize()
	if zero.JaroWinkler != 0 {
		t.Error("normalizing zero weights must be a no-op")
	}
}
