package confirmation

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"schemamapper/escalation"
	"schemamapper/evaluator"
	"schemamapper/schema"
)

// Engine собирает дропдауны подтверждения из локальных решений и ответов LLM
// и управляет жизненным циклом сессий подтверждения
type Engine struct {
	store SessionStore
}

// NewEngine создает движок подтверждения поверх хранилища сессий
func NewEngine(store SessionStore) *Engine {
	return &Engine{store: store}
}

// candidate объединенный кандидат из локального анализа и LLM
type candidate struct {
	canonical  schema.CanonicalType
	confidence float64
	sources    []string
	rationale  []string
}

// BuildSession строит сессию подтверждения из стратегии маппинга и ответа LLM.
// Дропдауны создаются для каждой колонки, не разрешенной автоматически;
// авто-применяемые колонки попадают в сессию уже смаппленными
func (e *Engine) BuildSession(userID, fileName string, strategy *evaluator.MappingStrategy, llm *escalation.GPTResponse) (*UserConfirmationSession, error) {
	if strategy == nil {
		return nil, fmt.Errorf("mapping strategy is required")
	}
	if llm == nil {
		llm = escalation.EmptyResponse()
	}

	autoApplied := make(map[string]schema.CanonicalType)
	var dropdowns []DropdownConfiguration

	for _, decision := range strategy.Decisions {
		if decision.Action == evaluator.ActionAutoApply {
			autoApplied[decision.OriginalHeader] = decision.Analysis.RecommendedType
			continue
		}

		dropdowns = append(dropdowns, e.buildDropdown(decision, llm))
	}

	// Критичные колонки первыми, внутри приоритета — по лучшей уверенности
	sort.SliceStable(dropdowns, func(i, j int) bool {
		if dropdowns[i].Priority != dropdowns[j].Priority {
			return dropdowns[i].Priority < dropdowns[j].Priority
		}
		return bestConfidence(dropdowns[i]) > bestConfidence(dropdowns[j])
	})

	session := newSession(uuid.New().String(), userID, fileName, dropdowns, autoApplied)

	if err := e.store.Put(session); err != nil {
		return nil, fmt.Errorf("failed to store confirmation session: %w", err)
	}

	log.Printf("[Confirmation] Created session %s: %d auto-applied, %d pending columns",
		session.ID, len(autoApplied), len(dropdowns))
	return session, nil
}

// Session возвращает активную сессию по идентификатору
func (e *Engine) Session(id string) (*UserConfirmationSession, error) {
	session, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("confirmation session %s not found or expired", id)
	}
	return session, nil
}

// Finalize собирает итоговый маппинг завершенной сессии и удаляет ее из хранилища
func (e *Engine) Finalize(id string) (*FinalMapping, error) {
	session, err := e.Session(id)
	if err != nil {
		return nil, err
	}

	final, err := session.AssembleFinalMapping()
	if err != nil {
		return nil, err
	}

	e.store.Delete(id)

	log.Printf("[Confirmation] Finalized session %s: %d mappings, %d collisions resolved",
		id, len(final.Mappings), len(final.ResolvedCollisions))
	return final, nil
}

// buildDropdown строит дропдаун одной колонки из локальных оценок и результата LLM
func (e *Engine) buildDropdown(decision *evaluator.ColumnDecision, llm *escalation.GPTResponse) DropdownConfiguration {
	merged := make(map[schema.CanonicalType]*candidate)

	for canonical, score := range decision.Analysis.FinalScores {
		if score <= 0 {
			continue
		}
		merged[canonical] = &candidate{
			canonical:  canonical,
			confidence: score,
			sources:    []string{"local"},
			rationale:  []string{fmt.Sprintf("local analysis score %.2f", score)},
		}
	}

	if result, ok := llm.Mappings[decision.OriginalHeader]; ok {
		if existing, exists := merged[result.Canonical]; exists {
			// Совпадающий кандидат: берется максимум уверенности, источники объединяются
			if result.Confidence > existing.confidence {
				existing.confidence = result.Confidence
			}
			existing.sources = append(existing.sources, "llm")
			existing.rationale = append(existing.rationale, result.Reasoning)
		} else {
			merged[result.Canonical] = &candidate{
				canonical:  result.Canonical,
				confidence: result.Confidence,
				sources:    []string{"llm"},
				rationale:  []string{result.Reasoning},
			}
		}
	}

	ranked := make([]*candidate, 0, len(merged))
	for _, c := range merged {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].confidence != ranked[j].confidence {
			return ranked[i].confidence > ranked[j].confidence
		}
		return ranked[i].canonical < ranked[j].canonical
	})
	if len(ranked) > maxOptionsPerColumn {
		ranked = ranked[:maxOptionsPerColumn]
	}

	options := make([]DropdownOption, 0, len(ranked)+1)
	for _, c := range ranked {
		options = append(options, DropdownOption{
			Canonical:        c.canonical,
			DisplayName:      string(c.canonical),
			Confidence:       c.confidence,
			Sources:          c.sources,
			Rationale:        strings.Join(c.rationale, "; "),
			EnabledAnalytics: schema.EnabledProducts(c.canonical),
		})
	}

	// Вариант Ignore присутствует в каждом дропдауне
	options = append(options, DropdownOption{
		Canonical:   schema.Ignore,
		DisplayName: string(schema.Ignore),
		Rationale:   "exclude this column from analytics",
	})

	return DropdownConfiguration{
		OriginalHeader: decision.OriginalHeader,
		Priority:       decision.Priority,
		Options:        options,
		Guidance:       buildGuidance(decision, ranked),
	}
}

// buildGuidance формирует подсказку пользователю для колонки
func buildGuidance(decision *evaluator.ColumnDecision, ranked []*candidate) string {
	if len(ranked) == 0 {
		return fmt.Sprintf("No candidate found for %q, select a type manually or ignore the column", decision.OriginalHeader)
	}

	best := ranked[0]
	guidance := fmt.Sprintf("Best candidate for %q is %s (%.0f%% confidence)",
		decision.OriginalHeader, best.canonical, best.confidence*100)

	if decision.Priority == evaluator.PriorityHigh {
		enabled := schema.EnabledProducts(best.canonical)
		if len(enabled) > 0 {
			guidance += fmt.Sprintf("; confirming it unlocks: %s", strings.Join(enabled, ", "))
		}
	}
	return guidance
}

// bestConfidence возвращает уверенность верхнего кандидата дропдауна
func bestConfidence(d DropdownConfiguration) float64 {
	if len(d.Options) == 0 {
		return 0
	}
	return d.Options[0].Confidence
}
