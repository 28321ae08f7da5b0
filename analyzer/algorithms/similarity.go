package algorithms

import (
	"math"
	"strings"
)

// JaroSimilarity вычисляет сходство Jaro между двумя строками
func JaroSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)

	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	// Окно совпадений
	matchWindow := max(len1, len2)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	matches1 := make([]bool, len1)
	matches2 := make([]bool, len2)
	matches := 0

	for i := 0; i < len1; i++ {
		start := max(0, i-matchWindow)
		end := min(len2, i+matchWindow+1)

		for j := start; j < end; j++ {
			if matches2[j] || r1[i] != r2[j] {
				continue
			}
			matches1[i] = true
			matches2[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Транспозиции
	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matches1[i] {
			continue
		}
		for !matches2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	return (float64(matches)/float64(len1) +
		float64(matches)/float64(len2) +
		(float64(matches)-float64(transpositions)/2.0)/float64(matches)) / 3.0
}

// JaroWinklerSimilarity вычисляет сходство Jaro-Winkler.
// Бонус за общий префикс применяется только при базовом сходстве >= 0.7
func JaroWinklerSimilarity(s1, s2 string) float64 {
	jaro := JaroSimilarity(s1, s2)

	if jaro < 0.7 {
		return jaro
	}

	// Длина общего префикса (максимум 4)
	prefixLen := 0
	maxPrefix := 4
	r1, r2 := []rune(strings.ToLower(s1)), []rune(strings.ToLower(s2))
	minLen := min(len(r1), len(r2))

	for i := 0; i < minLen && i < maxPrefix; i++ {
		if r1[i] == r2[i] {
			prefixLen++
		} else {
			break
		}
	}

	p := 0.1
	winkler := jaro + float64(prefixLen)*p*(1.0-jaro)

	return math.Min(winkler, 1.0)
}

// LCSSimilarity вычисляет сходство на основе наибольшей общей подпоследовательности
func LCSSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	lcs := longestCommonSubsequence(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))

	if maxLen == 0 {
		return 1.0
	}

	return float64(lcs) / float64(maxLen)
}

// longestCommonSubsequence вычисляет длину наибольшей общей подпоследовательности
func longestCommonSubsequence(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)

	if len1 == 0 || len2 == 0 {
		return 0
	}

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			if r1[i-1] == r2[j-1] {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix[len1][len2]
}

// NgramSimilarity вычисляет схожесть на основе N-грамм (коэффициент Жаккара)
func NgramSimilarity(s1, s2 string, n int) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	ngrams1 := generateNgrams(s1, n)
	ngrams2 := generateNgrams(s2, n)

	if len(ngrams1) == 0 && len(ngrams2) == 0 {
		return 1.0
	}
	if len(ngrams1) == 0 || len(ngrams2) == 0 {
		return 0.0
	}

	intersection := 0
	union := make(map[string]bool)

	for ngram := range ngrams1 {
		union[ngram] = true
		if ngrams2[ngram] {
			intersection++
		}
	}

	for ngram := range ngrams2 {
		union[ngram] = true
	}

	if len(union) == 0 {
		return 0.0
	}

	return float64(intersection) / float64(len(union))
}

// generateNgrams генерирует N-граммы из строки
func generateNgrams(text string, n int) map[string]bool {
	ngrams := make(map[string]bool)
	runes := []rune(text)

	if len(runes) < n {
		if len(runes) > 0 {
			ngrams[string(runes)] = true
		}
		return ngrams
	}

	for i := 0; i <= len(runes)-n; i++ {
		ngrams[string(runes[i:i+n])] = true
	}

	return ngrams
}

// SimilarityWeights веса для комбинированной метрики схожести заголовков
type SimilarityWeights struct {
	JaroWinkler float64 // Вес для Jaro-Winkler (опечатки, перестановки)
	LCS         float64 // Вес для LCS (общие подпоследовательности)
	Ngram       float64 // Вес для биграмм (частичные совпадения)
}

// DefaultSimilarityWeights возвращает веса по умолчанию
func DefaultSimilarityWeights() *SimilarityWeights {
	return &SimilarityWeights{
		JaroWinkler: 0.5,
		LCS:         0.25,
		Ngram:       0.25,
	}
}

// Normalize нормализует веса так, чтобы их сумма была равна 1.0
func (sw *SimilarityWeights) Normalize() {
	total := sw.JaroWinkler + sw.LCS + sw.Ngram
	if total == 0 {
		return
	}
	sw.JaroWinkler /= total
	sw.LCS /= total
	sw.Ngram /= total
}

// HybridSimilarity вычисляет комбинированную схожесть двух заголовков.
// Комбинирует Jaro-Winkler, LCS и биграммы для более устойчивого результата
func HybridSimilarity(s1, s2 string, weights *SimilarityWeights) float64 {
	if weights == nil {
		weights = DefaultSimilarityWeights()
	}

	var similarity float64

	if weights.JaroWinkler > 0 {
		similarity += JaroWinklerSimilarity(s1, s2) * weights.JaroWinkler
	}
	if weights.LCS > 0 {
		similarity += LCSSimilarity(s1, s2) * weights.LCS
	}
	if weights.Ngram > 0 {
		similarity += NgramSimilarity(s1, s2, 2) * weights.Ngram
	}

	return math.Min(similarity, 1.0)
}
