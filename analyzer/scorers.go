package analyzer

import (
	"strings"

	"schemamapper/analyzer/algorithms"
	"schemamapper/preprocessing"
	"schemamapper/schema"
)

// Scorer источник сигнала для локального анализа.
// Возвращает оценки уверенности по каноническим типам для одной колонки
type Scorer interface {
	Name() string
	Score(col preprocessing.ColumnMetadata) map[schema.CanonicalType]float64
}

// RuleScorer сопоставление нормализованного заголовка со словарем алиасов.
// Точное совпадение (в том числе по стеммам) дает 1.0; частичное совпадение
// по вхождению подстроки дает 0.8 * (min(len)/max(len))
type RuleScorer struct {
	aliases map[schema.CanonicalType][]string
	stemmer *EnglishStemmer

	enablePartial  bool
	minAliasLength int
}

// NewRuleScorer создает rule-скорер на словаре алиасов канонической схемы
func NewRuleScorer(cfg *Config) *RuleScorer {
	return &RuleScorer{
		aliases:        schema.AliasDictionary(),
		stemmer:        NewEnglishStemmer(),
		enablePartial:  cfg.EnablePartialRules,
		minAliasLength: cfg.MinAliasLength,
	}
}

// Name возвращает имя метода
func (rs *RuleScorer) Name() string { return MethodRule }

// Score вычисляет rule-оценки для колонки
func (rs *RuleScorer) Score(col preprocessing.ColumnMetadata) map[schema.CanonicalType]float64 {
	header := col.NormalizedHeader
	if header == "" {
		return nil
	}

	stemmedHeader := rs.stemmer.StemPhrase(header)
	scores := make(map[schema.CanonicalType]float64)

	for canonical, aliases := range rs.aliases {
		best := 0.0

		for _, alias := range aliases {
			score := rs.matchAlias(header, stemmedHeader, alias)
			if score > best {
				best = score
			}
			if best >= 1.0 {
				break
			}
		}

		if best > 0 {
			scores[canonical] = best
		}
	}

	return scores
}

// matchAlias оценивает совпадение заголовка с одним алиасом
func (rs *RuleScorer) matchAlias(header, stemmedHeader, alias string) float64 {
	if header == alias {
		return 1.0
	}
	if stemmedHeader == rs.stemmer.StemPhrase(alias) {
		return 1.0
	}

	if !rs.enablePartial || len(alias) < rs.minAliasLength {
		return 0.0
	}

	if strings.Contains(header, alias) || strings.Contains(alias, header) {
		shorter, longer := len(alias), len(header)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.8 * float64(shorter) / float64(longer)
	}

	return 0.0
}

// FuzzyScorer нечеткое сопоставление заголовка с алиасами по гибридной метрике.
// Оценки ниже порога отбрасываются
type FuzzyScorer struct {
	aliases   map[schema.CanonicalType][]string
	weights   *algorithms.SimilarityWeights
	threshold float64
}

// NewFuzzyScorer создает fuzzy-скорер
func NewFuzzyScorer(cfg *Config) *FuzzyScorer {
	weights := cfg.Similarity
	if weights == nil {
		weights = algorithms.DefaultSimilarityWeights()
	}

	return &FuzzyScorer{
		aliases:   schema.AliasDictionary(),
		weights:   weights,
		threshold: cfg.FuzzyThreshold,
	}
}

// Name возвращает имя метода
func (fs *FuzzyScorer) Name() string { return MethodFuzzy }

// Score вычисляет fuzzy-оценки для колонки
func (fs *FuzzyScorer) Score(col preprocessing.ColumnMetadata) map[schema.CanonicalType]float64 {
	header := col.NormalizedHeader
	if header == "" {
		return nil
	}

	scores := make(map[schema.CanonicalType]float64)

	for canonical, aliases := range fs.aliases {
		best := 0.0
		for _, alias := range aliases {
			similarity := algorithms.HybridSimilarity(header, alias, fs.weights)
			if similarity > best {
				best = similarity
			}
		}

		if best >= fs.threshold {
			scores[canonical] = best
		}
	}

	return scores
}

// Базовые уверенности type-эвристик по семействам типов данных
const (
	typeScoreDatetime  = 0.70
	typeScoreNumeric   = 0.50
	typeScoreQuantity  = 0.40
	typeScoreText      = 0.40
	typeScoreIDLike    = 0.60
	typeScoreNumericID = 0.30
)

// TypeScorer эвристики по типу данных и паттернам значений колонки
type TypeScorer struct{}

// NewTypeScorer создает type-скорер
func NewTypeScorer() *TypeScorer { return &TypeScorer{} }

// Name возвращает имя метода
func (ts *TypeScorer) Name() string { return MethodType }

// Score вычисляет type-оценки для колонки.
// Таблица эвристик: numeric -> {Sales, Amount, Quantity},
// datetime -> {Date}, text -> {Product, Region, Customer},
// уникальные значения -> {Transaction_ID}
func (ts *TypeScorer) Score(col preprocessing.ColumnMetadata) map[schema.CanonicalType]float64 {
	scores := make(map[schema.CanonicalType]float64)

	switch col.DType {
	case preprocessing.DTypeDatetime:
		scores[schema.Date] = typeScoreDatetime
	case preprocessing.DTypeNumeric:
		scores[schema.Sales] = typeScoreNumeric
		scores[schema.Amount] = typeScoreNumeric
		scores[schema.Quantity] = typeScoreQuantity
		if col.IDLike {
			scores[schema.TransactionID] = typeScoreNumericID
		}
	case preprocessing.DTypeText:
		scores[schema.Product] = typeScoreText
		scores[schema.Region] = typeScoreText
		scores[schema.Customer] = typeScoreText
		if col.IDLike {
			scores[schema.TransactionID] = typeScoreIDLike
		}
	}

	return scores
}
