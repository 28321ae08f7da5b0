package evaluator

import (
	"fmt"

	"schemamapper/analyzer"
	"schemamapper/schema"
)

// ConfidenceCategory категория уверенности лучшей локальной оценки колонки
type ConfidenceCategory string

const (
	CategoryAutoMap   ConfidenceCategory = "AUTO_MAP"
	CategorySuggested ConfidenceCategory = "SUGGESTED"
	CategoryUncertain ConfidenceCategory = "UNCERTAIN"
)

// ActionType маршрутизированное действие для колонки.
// В любой момент у колонки ровно одно действие
type ActionType string

const (
	ActionAutoApply        ActionType = "AUTO_APPLY"
	ActionSuggestReview    ActionType = "SUGGEST_REVIEW"
	ActionSendToGPT        ActionType = "SEND_TO_GPT"
	ActionUserConfirmation ActionType = "USER_CONFIRMATION"
	ActionIgnore           ActionType = "IGNORE"
)

// Приоритеты колонок для пользовательского подтверждения
const (
	PriorityHigh   = 1 // критична для аналитики
	PriorityMedium = 2
	PriorityLow    = 3
)

// Config конфигурация оценщика уверенности
type Config struct {
	// Границы категорий
	AutoMapThreshold float64 `json:"auto_map_threshold"`
	SuggestedMin     float64 `json:"suggested_min"`

	// Собственный порог вызывающей стороны для авто-применения
	ApplyThreshold float64 `json:"apply_threshold"`

	// Доля от лучшей оценки, при которой вторая альтернатива считается
	// разрешимой через LLM
	AmbiguityRatio float64 `json:"ambiguity_ratio"`

	// Предпочитать LLM-эскалацию пользовательскому подтверждению
	PreferLLM bool `json:"prefer_llm"`
}

// DefaultConfig возвращает конфигурацию оценщика по умолчанию
func DefaultConfig() *Config {
	return &Config{
		AutoMapThreshold: 0.90,
		SuggestedMin:     0.70,
		ApplyThreshold:   0.90,
		AmbiguityRatio:   0.70,
		PreferLLM:        true,
	}
}

// Validate проверяет корректность конфигурации оценщика
func (c *Config) Validate() error {
	if c.AutoMapThreshold < 0 || c.AutoMapThreshold > 1 {
		return fmt.Errorf("auto map threshold must be within [0,1], got %v", c.AutoMapThreshold)
	}
	if c.SuggestedMin < 0 || c.SuggestedMin > 1 {
		return fmt.Errorf("suggested min must be within [0,1], got %v", c.SuggestedMin)
	}
	if c.SuggestedMin >= c.AutoMapThreshold {
		return fmt.Errorf("suggested min (%v) must be below auto map threshold (%v)",
			c.SuggestedMin, c.AutoMapThreshold)
	}
	if c.ApplyThreshold < 0 || c.ApplyThreshold > 1 {
		return fmt.Errorf("apply threshold must be within [0,1], got %v", c.ApplyThreshold)
	}
	if c.AmbiguityRatio <= 0 || c.AmbiguityRatio > 1 {
		return fmt.Errorf("ambiguity ratio must be within (0,1], got %v", c.AmbiguityRatio)
	}
	return nil
}

// ColumnDecision решение оценщика по одной колонке
type ColumnDecision struct {
	OriginalHeader   string                   `json:"original_header"`
	Analysis         *analyzer.ColumnAnalysis `json:"analysis"`
	Category         ConfidenceCategory       `json:"category"`
	Action           ActionType               `json:"action"`
	Priority         int                      `json:"priority"`
	EnabledAnalytics []string                 `json:"enabled_analytics,omitempty"`
}

// MappingStrategy агрегат решений по всем колонкам загрузки
type MappingStrategy struct {
	Decisions []*ColumnDecision `json:"decisions"`

	CategoryCounts  map[ConfidenceCategory]int `json:"category_counts"`
	ActionCounts    map[ActionType]int         `json:"action_counts"`
	ColumnsByAction map[ActionType][]string    `json:"columns_by_action"`

	// Аналитика, выполнимая на уже авто-применяемых типах
	ImmediateAnalytics []string `json:"immediate_analytics"`
	// Аналитика, выполнимая при подтверждении всех предложенных типов
	PotentialAnalytics []string `json:"potential_analytics"`
}

// DecisionFor возвращает решение по оригинальному заголовку
func (ms *MappingStrategy) DecisionFor(header string) (*ColumnDecision, bool) {
	for _, d := range ms.Decisions {
		if d.OriginalHeader == header {
			return d, true
		}
	}
	return nil, false
}

// ColumnsWithAction возвращает заголовки колонок с данным действием
func (ms *MappingStrategy) ColumnsWithAction(action ActionType) []string {
	return ms.ColumnsByAction[action]
}

// AutoAppliedTypes возвращает набор канонических типов авто-применяемых колонок
func (ms *MappingStrategy) AutoAppliedTypes() map[schema.CanonicalType]bool {
	result := make(map[schema.CanonicalType]bool)
	for _, d := range ms.Decisions {
		if d.Action == ActionAutoApply && d.Analysis.RecommendedType != "" {
			result[d.Analysis.RecommendedType] = true
		}
	}
	return result
}
