package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"schemamapper/analyzer"
	"schemamapper/confirmation"
	"schemamapper/escalation"
	"schemamapper/evaluator"
	"schemamapper/knowledge"
	"schemamapper/preprocessing"
	"schemamapper/schema"
)

// SourceKnowledgeBase источник рекомендации для колонок, разрешенных базой знаний
const SourceKnowledgeBase = "knowledge"

// Config конфигурация конвейера
type Config struct {
	// Минимальная уверенность записи базы знаний, при которой колонка
	// минует локальный анализ и эскалацию
	KBShortCircuitThreshold float64 `json:"kb_short_circuit_threshold"`
}

// DefaultConfig возвращает конфигурацию конвейера по умолчанию
func DefaultConfig() *Config {
	return &Config{KBShortCircuitThreshold: 0.90}
}

// Validate проверяет корректность конфигурации конвейера
func (c *Config) Validate() error {
	if c.KBShortCircuitThreshold < 0 || c.KBShortCircuitThreshold > 1 {
		return fmt.Errorf("kb short-circuit threshold must be within [0,1], got %v", c.KBShortCircuitThreshold)
	}
	return nil
}

// Result итог прогона загрузки через конвейер до пользовательского подтверждения
type Result struct {
	Metadata *preprocessing.FileMetadata           `json:"metadata"`
	Strategy *evaluator.MappingStrategy            `json:"strategy"`
	Session  *confirmation.UserConfirmationSession `json:"session"`

	// Колонки, разрешенные базой знаний без анализа
	KBResolved []string `json:"kb_resolved,omitempty"`
	// Колонки, отправленные на LLM-эскалацию
	Escalated []string `json:"escalated,omitempty"`
}

// pendingContext состояние незавершенной сессии для write-back при финализации
type pendingContext struct {
	metadata *preprocessing.FileMetadata
	strategy *evaluator.MappingStrategy
}

// Pipeline последовательный конвейер маппинга колонок:
// препроцессинг, база знаний, локальный анализ, оценка уверенности,
// LLM-эскалация и пользовательское подтверждение.
// Отказ эскалации или базы знаний деградирует конвейер, но не останавливает его
type Pipeline struct {
	config       *Config
	preprocessor *preprocessing.Preprocessor
	analyzer     *analyzer.LocalAnalyzer
	evaluator    *evaluator.Evaluator
	escalator    *escalation.Escalator
	confirmation *confirmation.Engine
	kb           *knowledge.KnowledgeBase
	normalizer   *preprocessing.HeaderNormalizer

	mu      sync.Mutex
	pending map[string]pendingContext
}

// New создает конвейер. Эскалатор и база знаний опциональны:
// без них соответствующие стадии пропускаются
func New(
	config *Config,
	localAnalyzer *analyzer.LocalAnalyzer,
	confidenceEvaluator *evaluator.Evaluator,
	escalator *escalation.Escalator,
	confirmationEngine *confirmation.Engine,
	kb *knowledge.KnowledgeBase,
) (*Pipeline, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if localAnalyzer == nil || confidenceEvaluator == nil || confirmationEngine == nil {
		return nil, fmt.Errorf("analyzer, evaluator and confirmation engine are required")
	}

	return &Pipeline{
		config:       config,
		preprocessor: preprocessing.NewPreprocessor(),
		analyzer:     localAnalyzer,
		evaluator:    confidenceEvaluator,
		escalator:    escalator,
		confirmation: confirmationEngine,
		kb:           kb,
		normalizer:   preprocessing.NewHeaderNormalizer(),
		pending:      make(map[string]pendingContext),
	}, nil
}

// Analyze прогоняет загрузку через все стадии до подтверждения
func (p *Pipeline) Analyze(ctx context.Context, userID, fileName string, r io.Reader) (*Result, error) {
	dataset, err := preprocessing.ReadDataset(fileName, r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	metadata, err := p.preprocessor.Process(dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess %s: %w", fileName, err)
	}

	analyses, kbResolved := p.analyzeWithKnowledge(userID, metadata)

	strategy := p.evaluator.EvaluateFile(analyses)

	llm, escalated := p.escalate(ctx, strategy, fileName)

	// Ответы LLM вливаются в анализы, и колонки переоцениваются: уверенный
	// ответ снимает колонку с пользовательского подтверждения
	if len(llm.Mappings) > 0 {
		mergeEscalation(analyses, llm)
		strategy = p.evaluator.EvaluateFile(analyses)
	}

	session, err := p.confirmation.BuildSession(userID, fileName, strategy, llm)
	if err != nil {
		return nil, fmt.Errorf("failed to build confirmation session: %w", err)
	}

	p.mu.Lock()
	p.pending[session.ID] = pendingContext{metadata: metadata, strategy: strategy}
	p.mu.Unlock()

	log.Printf("[Pipeline] %s: %d columns, %d from knowledge base, %d escalated",
		fileName, len(metadata.Columns), len(kbResolved), len(escalated))

	return &Result{
		Metadata:   metadata,
		Strategy:   strategy,
		Session:    session,
		KBResolved: kbResolved,
		Escalated:  escalated,
	}, nil
}

// analyzeWithKnowledge анализирует колонки, разрешая известные заголовки
// базой знаний без локального анализа
func (p *Pipeline) analyzeWithKnowledge(userID string, metadata *preprocessing.FileMetadata) ([]*analyzer.ColumnAnalysis, []string) {
	var analyses []*analyzer.ColumnAnalysis
	var kbResolved []string

	for _, col := range metadata.Columns {
		if entry := p.knowledgeHit(userID, col.NormalizedHeader); entry != nil {
			analyses = append(analyses, knowledgeAnalysis(col, entry))
			kbResolved = append(kbResolved, col.OriginalHeader)
			continue
		}
		analyses = append(analyses, p.analyzer.AnalyzeColumn(col))
	}

	return analyses, kbResolved
}

// knowledgeHit возвращает запись базы знаний, достаточную для короткого замыкания.
// Отказ базы знаний не останавливает конвейер
func (p *Pipeline) knowledgeHit(userID, normalizedHeader string) *knowledge.Entry {
	if p.kb == nil {
		return nil
	}

	entry, ok, err := p.kb.Lookup(userID, normalizedHeader)
	if err != nil {
		log.Printf("[Pipeline] Knowledge base lookup failed, falling back to analysis: %v", err)
		return nil
	}
	if !ok || entry.Confidence < p.config.KBShortCircuitThreshold {
		return nil
	}
	return entry
}

// knowledgeAnalysis синтезирует результат анализа из записи базы знаний
func knowledgeAnalysis(col preprocessing.ColumnMetadata, entry *knowledge.Entry) *analyzer.ColumnAnalysis {
	return &analyzer.ColumnAnalysis{
		OriginalHeader:        col.OriginalHeader,
		NormalizedHeader:      col.NormalizedHeader,
		FinalScores:           map[schema.CanonicalType]float64{entry.Canonical: entry.Confidence},
		RecommendedType:       entry.Canonical,
		RecommendedConfidence: entry.Confidence,
		RecommendedSource:     SourceKnowledgeBase,
	}
}

// mergeEscalation вливает результаты эскалации в анализы колонок.
// Ответ LLM добавляется в финальные оценки; если он сильнее локальной
// рекомендации, рекомендация замещается с источником SourceLLM
func mergeEscalation(analyses []*analyzer.ColumnAnalysis, llm *escalation.GPTResponse) {
	for _, analysis := range analyses {
		result, ok := llm.Mappings[analysis.OriginalHeader]
		if !ok {
			continue
		}

		if analysis.FinalScores == nil {
			analysis.FinalScores = make(map[schema.CanonicalType]float64)
		}
		if result.Confidence > analysis.FinalScores[result.Canonical] {
			analysis.FinalScores[result.Canonical] = result.Confidence
		}
		if result.Confidence > analysis.RecommendedConfidence {
			analysis.RecommendedType = result.Canonical
			analysis.RecommendedConfidence = result.Confidence
			analysis.RecommendedSource = evaluator.SourceLLM
		}
	}
}

// escalate отправляет неуверенные колонки в LLM; без эскалатора стадия пропускается
func (p *Pipeline) escalate(ctx context.Context, strategy *evaluator.MappingStrategy, fileName string) (*escalation.GPTResponse, []string) {
	headers := strategy.ColumnsWithAction(evaluator.ActionSendToGPT)
	if p.escalator == nil || len(headers) == 0 {
		return escalation.EmptyResponse(), nil
	}

	return p.escalator.Escalate(ctx, headers, fileName), headers
}

// Session возвращает активную сессию подтверждения
func (p *Pipeline) Session(id string) (*confirmation.UserConfirmationSession, error) {
	return p.confirmation.Session(id)
}

// Finalize завершает сессию: собирает итоговый маппинг и записывает
// подтверждения и события обратной связи в базу знаний
func (p *Pipeline) Finalize(sessionID string) (*confirmation.FinalMapping, error) {
	p.mu.Lock()
	pctx, hasContext := p.pending[sessionID]
	p.mu.Unlock()

	session, err := p.confirmation.Session(sessionID)
	if err != nil {
		return nil, err
	}
	selections := session.Selections()

	final, err := p.confirmation.Finalize(sessionID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	delete(p.pending, sessionID)
	p.mu.Unlock()

	if p.kb != nil {
		p.writeBack(session.UserID, final, selections, pctx, hasContext)
	}
	return final, nil
}

// writeBack записывает подтверждения и события обратной связи в базу знаний
func (p *Pipeline) writeBack(
	userID string,
	final *confirmation.FinalMapping,
	selections map[string]confirmation.UserSelection,
	pctx pendingContext,
	hasContext bool,
) {
	for header, canonical := range final.Mappings {
		if canonical == schema.Ignore {
			continue
		}

		source := knowledge.SourceAutoApplied
		if _, ok := selections[header]; ok {
			source = knowledge.SourceUserConfirmed
		}

		err := p.kb.RecordConfirmation(knowledge.Confirmation{
			UserID:           userID,
			OriginalHeader:   header,
			NormalizedHeader: p.normalizedHeader(header, pctx, hasContext),
			Canonical:        canonical,
			Source:           source,
		})
		if err != nil {
			log.Printf("[Pipeline] Failed to persist confirmation for %q: %v", header, err)
		}
	}

	if !hasContext {
		return
	}

	// События обратной связи только для колонок с локальным предсказанием.
	// Выбор Ignore тоже событие: предсказание было, пользователь его отверг
	for header, selection := range selections {
		decision, ok := pctx.strategy.DecisionFor(header)
		if !ok || decision.Analysis == nil || decision.Analysis.RecommendedType == "" {
			continue
		}

		confirmed := selection.Selected

		err := p.kb.RecordFeedbackEvent(
			decision.Analysis.NormalizedHeader,
			decision.Analysis.RecommendedType,
			confirmed,
			decision.Analysis.RecommendedConfidence,
			decision.Analysis.RecommendedSource,
		)
		if err != nil {
			log.Printf("[Pipeline] Failed to record feedback for %q: %v", header, err)
		}
	}
}

// normalizedHeader возвращает нормализованный заголовок из метаданных сессии
// либо нормализует заново, если контекст уже вытеснен
func (p *Pipeline) normalizedHeader(header string, pctx pendingContext, hasContext bool) string {
	if hasContext {
		if col, ok := pctx.metadata.Column(header); ok {
			return col.NormalizedHeader
		}
	}
	return p.normalizer.Normalize(header)
}
