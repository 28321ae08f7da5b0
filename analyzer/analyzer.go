package analyzer

import (
	"fmt"
	"log"

	"schemamapper/preprocessing"
	"schemamapper/schema"
)

// sourcePriority приоритет источников при равенстве финальных оценок:
// rule > fuzzy > type
var sourcePriority = map[string]int{
	MethodRule:  3,
	MethodFuzzy: 2,
	MethodType:  1,
}

// LocalAnalyzer локальный анализатор колонок.
// Комбинирует rule-, fuzzy- и type-сигналы во взвешенную оценку
// уверенности по каждому каноническому типу. Не выполняет сетевых вызовов
type LocalAnalyzer struct {
	config *Config
	rule   Scorer
	fuzzy  Scorer
	typ    Scorer
}

// NewLocalAnalyzer создает локальный анализатор
func NewLocalAnalyzer(config *Config) (*LocalAnalyzer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer config: %w", err)
	}

	return &LocalAnalyzer{
		config: config,
		rule:   NewRuleScorer(config),
		fuzzy:  NewFuzzyScorer(config),
		typ:    NewTypeScorer(),
	}, nil
}

// AnalyzeColumn анализирует одну колонку.
// Чистая функция от (метаданные колонки, конфигурация): вход не мутируется
func (la *LocalAnalyzer) AnalyzeColumn(col preprocessing.ColumnMetadata) *ColumnAnalysis {
	ruleScores := la.rule.Score(col)
	fuzzyScores := la.fuzzy.Score(col)
	typeScores := la.typ.Score(col)

	ruleWeight, fuzzyWeight, typeWeight := la.config.NormalizedWeights()

	finalScores := make(map[schema.CanonicalType]float64)
	for canonical, score := range ruleScores {
		finalScores[canonical] += score * ruleWeight
	}
	for canonical, score := range fuzzyScores {
		finalScores[canonical] += score * fuzzyWeight
	}
	for canonical, score := range typeScores {
		finalScores[canonical] += score * typeWeight
	}

	analysis := &ColumnAnalysis{
		OriginalHeader:   col.OriginalHeader,
		NormalizedHeader: col.NormalizedHeader,
		Rule:             buildMethodResult(ruleScores),
		Fuzzy:            buildMethodResult(fuzzyScores),
		Type:             buildMethodResult(typeScores),
		FinalScores:      finalScores,
	}

	recommended, confidence := argmaxWithPriority(finalScores, ruleScores, fuzzyScores, typeScores)
	if recommended != "" {
		analysis.RecommendedType = recommended
		analysis.RecommendedConfidence = confidence
		analysis.RecommendedSource = dominantSource(recommended, ruleScores, fuzzyScores, typeScores)
	}

	return analysis
}

// AnalyzeFile анализирует все колонки загрузки в порядке следования
func (la *LocalAnalyzer) AnalyzeFile(metadata *preprocessing.FileMetadata) ([]*ColumnAnalysis, error) {
	if metadata == nil {
		return nil, fmt.Errorf("file metadata is nil")
	}

	results := make([]*ColumnAnalysis, 0, len(metadata.Columns))
	for _, col := range metadata.Columns {
		analysis := la.AnalyzeColumn(col)
		results = append(results, analysis)
	}

	log.Printf("[LocalAnalyzer] Analyzed %d columns of %s", len(results), metadata.FileName)
	return results, nil
}

// buildMethodResult собирает результат метода: карта оценок и лучшее совпадение
func buildMethodResult(scores map[schema.CanonicalType]float64) MethodResult {
	result := MethodResult{Scores: scores}
	for canonical, score := range scores {
		if score > result.Confidence {
			result.Confidence = score
			result.BestMatch = canonical
		}
	}
	return result
}

// argmaxWithPriority возвращает канонический тип с максимальной финальной
// оценкой. Равенство разрешается приоритетом источника (rule > fuzzy > type),
// затем фиксированным порядком типов схемы для детерминизма
func argmaxWithPriority(
	finalScores map[schema.CanonicalType]float64,
	ruleScores, fuzzyScores, typeScores map[schema.CanonicalType]float64,
) (schema.CanonicalType, float64) {
	var best schema.CanonicalType
	bestScore := 0.0
	bestPriority := 0

	for _, canonical := range schema.AllTypes() {
		score, ok := finalScores[canonical]
		if !ok || score == 0 {
			continue
		}

		priority := sourcePriority[dominantSource(canonical, ruleScores, fuzzyScores, typeScores)]

		if score > bestScore || (score == bestScore && priority > bestPriority) {
			best = canonical
			bestScore = score
			bestPriority = priority
		}
	}

	return best, bestScore
}

// dominantSource возвращает метод с наибольшим вкладом для данного типа
func dominantSource(
	canonical schema.CanonicalType,
	ruleScores, fuzzyScores, typeScores map[schema.CanonicalType]float64,
) string {
	rule := ruleScores[canonical]
	fuzzy := fuzzyScores[canonical]
	typ := typeScores[canonical]

	// При равных вкладах побеждает более приоритетный источник
	switch {
	case rule >= fuzzy && rule >= typ && rule > 0:
		return MethodRule
	case fuzzy >= typ && fuzzy > 0:
		return MethodFuzzy
	case typ > 0:
		return MethodType
	default:
		return ""
	}
}
