package evaluator

import (
	"fmt"
	"log"

	"schemamapper/analyzer"
	"schemamapper/schema"
)

// SourceLLM источник рекомендации, полученной LLM-эскалацией.
// Колонка с таким источником уже эскалировалась и повторно в LLM не уходит
const SourceLLM = "llm"

// Evaluator категоризирует локальные оценки и маршрутизирует действия.
// Детерминированная машина состояний: категория определяется только
// уверенностью, действие — категорией, критичностью типа и настройками
type Evaluator struct {
	config *Config
}

// NewEvaluator создает новый оценщик уверенности
func NewEvaluator(config *Config) (*Evaluator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	return &Evaluator{config: config}, nil
}

// Categorize относит уверенность к категории.
// Нижние границы включительны: c >= 0.90 AUTO_MAP, 0.70 <= c < 0.90 SUGGESTED,
// c < 0.70 UNCERTAIN
func (e *Evaluator) Categorize(confidence float64) ConfidenceCategory {
	switch {
	case confidence >= e.config.AutoMapThreshold:
		return CategoryAutoMap
	case confidence >= e.config.SuggestedMin:
		return CategorySuggested
	default:
		return CategoryUncertain
	}
}

// EvaluateColumn принимает решение по одной колонке
func (e *Evaluator) EvaluateColumn(analysis *analyzer.ColumnAnalysis) *ColumnDecision {
	decision := &ColumnDecision{
		OriginalHeader: analysis.OriginalHeader,
		Analysis:       analysis,
	}

	// Колонка без единого кандидата: нечего предлагать и нечего уточнять
	if len(analysis.FinalScores) == 0 || analysis.RecommendedType == "" {
		decision.Category = CategoryUncertain
		decision.Action = ActionIgnore
		decision.Priority = PriorityLow
		return decision
	}

	confidence := analysis.RecommendedConfidence
	critical := schema.IsCritical(analysis.RecommendedType)

	decision.Category = e.Categorize(confidence)
	decision.Action = e.routeAction(decision.Category, confidence, critical, analysis)
	decision.Priority = e.priority(decision.Category, critical)
	decision.EnabledAnalytics = schema.EnabledProducts(analysis.RecommendedType)

	return decision
}

// routeAction маршрутизирует действие по категории
func (e *Evaluator) routeAction(
	category ConfidenceCategory,
	confidence float64,
	critical bool,
	analysis *analyzer.ColumnAnalysis,
) ActionType {
	switch category {
	case CategoryAutoMap:
		if confidence >= e.config.ApplyThreshold {
			return ActionAutoApply
		}
		return ActionSuggestReview

	case CategorySuggested:
		if !critical {
			return ActionSuggestReview
		}
		if e.config.PreferLLM && analysis.RecommendedSource != SourceLLM {
			return ActionSendToGPT
		}
		return ActionUserConfirmation

	default: // CategoryUncertain
		// Вторая альтернатива близка к лучшей: неоднозначность, которую
		// способен разрешить LLM по одному заголовку
		if analysis.RecommendedSource != SourceLLM &&
			analysis.SecondBestScore() >= confidence*e.config.AmbiguityRatio &&
			analysis.SecondBestScore() > 0 {
			return ActionSendToGPT
		}
		return ActionUserConfirmation
	}
}

// priority определяет приоритет колонки для подтверждения
func (e *Evaluator) priority(category ConfidenceCategory, critical bool) int {
	switch {
	case critical && category != CategoryAutoMap:
		return PriorityHigh
	case critical:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// EvaluateFile агрегирует решения по всем колонкам в стратегию маппинга
func (e *Evaluator) EvaluateFile(analyses []*analyzer.ColumnAnalysis) *MappingStrategy {
	strategy := &MappingStrategy{
		Decisions:       make([]*ColumnDecision, 0, len(analyses)),
		CategoryCounts:  make(map[ConfidenceCategory]int),
		ActionCounts:    make(map[ActionType]int),
		ColumnsByAction: make(map[ActionType][]string),
	}

	autoApplied := make(map[schema.CanonicalType]bool)
	proposed := make(map[schema.CanonicalType]bool)

	for _, analysis := range analyses {
		decision := e.EvaluateColumn(analysis)
		strategy.Decisions = append(strategy.Decisions, decision)
		strategy.CategoryCounts[decision.Category]++
		strategy.ActionCounts[decision.Action]++
		strategy.ColumnsByAction[decision.Action] = append(
			strategy.ColumnsByAction[decision.Action], decision.OriginalHeader)

		if decision.Action == ActionIgnore || analysis.RecommendedType == "" {
			continue
		}
		proposed[analysis.RecommendedType] = true
		if decision.Action == ActionAutoApply {
			autoApplied[analysis.RecommendedType] = true
		}
	}

	strategy.ImmediateAnalytics = schema.FeasibleProducts(autoApplied)
	strategy.PotentialAnalytics = schema.FeasibleProducts(proposed)

	log.Printf("[Evaluator] Strategy: %d columns, auto=%d gpt=%d confirm=%d ignore=%d",
		len(strategy.Decisions),
		strategy.ActionCounts[ActionAutoApply],
		strategy.ActionCounts[ActionSendToGPT],
		strategy.ActionCounts[ActionUserConfirmation],
		strategy.ActionCounts[ActionIgnore])

	return strategy
}
