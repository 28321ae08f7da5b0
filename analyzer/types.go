package analyzer

import (
	"fmt"

	"schemamapper/analyzer/algorithms"
	"schemamapper/schema"
)

// Имена методов локального анализа
const (
	MethodRule  = "rule"
	MethodFuzzy = "fuzzy"
	MethodType  = "type"
)

// Config конфигурация локального анализатора
type Config struct {
	// Веса сигналов; нормализуются к сумме 1.0 перед использованием
	RuleWeight  float64 `json:"rule_weight"`
	FuzzyWeight float64 `json:"fuzzy_weight"`
	TypeWeight  float64 `json:"type_weight"`

	// Порог отсечения fuzzy-совпадений
	FuzzyThreshold float64 `json:"fuzzy_threshold"`

	// Частичные rule-совпадения по вхождению подстроки
	EnablePartialRules bool `json:"enable_partial_rules"`
	MinAliasLength     int  `json:"min_alias_length"`

	// Веса гибридной метрики схожести
	Similarity *algorithms.SimilarityWeights `json:"similarity,omitempty"`
}

// DefaultConfig возвращает конфигурацию анализатора по умолчанию
func DefaultConfig() *Config {
	return &Config{
		RuleWeight:         0.4,
		FuzzyWeight:        0.3,
		TypeWeight:         0.3,
		FuzzyThreshold:     0.75,
		EnablePartialRules: true,
		MinAliasLength:     3,
		Similarity:         algorithms.DefaultSimilarityWeights(),
	}
}

// Validate проверяет корректность конфигурации анализатора
func (c *Config) Validate() error {
	if c.RuleWeight < 0 || c.FuzzyWeight < 0 || c.TypeWeight < 0 {
		return fmt.Errorf("analyzer weights must be non-negative")
	}
	if c.RuleWeight+c.FuzzyWeight+c.TypeWeight == 0 {
		return fmt.Errorf("analyzer weights must not all be zero")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be within [0,1], got %v", c.FuzzyThreshold)
	}
	if c.MinAliasLength < 1 {
		return fmt.Errorf("min alias length must be at least 1, got %d", c.MinAliasLength)
	}
	return nil
}

// NormalizedWeights возвращает веса сигналов, приведенные к сумме 1.0
func (c *Config) NormalizedWeights() (rule, fuzzy, typ float64) {
	total := c.RuleWeight + c.FuzzyWeight + c.TypeWeight
	if total == 0 {
		return 0, 0, 0
	}
	return c.RuleWeight / total, c.FuzzyWeight / total, c.TypeWeight / total
}

// MethodResult результат одного метода анализа для колонки
type MethodResult struct {
	Scores     map[schema.CanonicalType]float64 `json:"scores"`
	BestMatch  schema.CanonicalType             `json:"best_match,omitempty"`
	Confidence float64                          `json:"confidence"`
}

// ColumnAnalysis итог локального анализа одной колонки.
// Все уверенности лежат в [0,1]; рекомендованный тип — argmax финальных оценок
type ColumnAnalysis struct {
	OriginalHeader   string `json:"original_header"`
	NormalizedHeader string `json:"normalized_header"`

	Rule  MethodResult `json:"rule"`
	Fuzzy MethodResult `json:"fuzzy"`
	Type  MethodResult `json:"type"`

	FinalScores           map[schema.CanonicalType]float64 `json:"final_scores"`
	RecommendedType       schema.CanonicalType             `json:"recommended_type,omitempty"`
	RecommendedConfidence float64                          `json:"recommended_confidence"`
	RecommendedSource     string                           `json:"recommended_source,omitempty"`
}

// SecondBestScore возвращает вторую по величине финальную оценку
func (ca *ColumnAnalysis) SecondBestScore() float64 {
	var best, second float64
	for _, score := range ca.FinalScores {
		if score > best {
			second = best
			best = score
		} else if score > second {
			second = score
		}
	}
	return second
}
