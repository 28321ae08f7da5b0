package evaluator

import (
	"testing"

	"schemamapper/analyzer"
	"schemamapper/schema"
)

func analysisWith(header string, recommended schema.CanonicalType, confidence float64, scores map[schema.CanonicalType]float64) *analyzer.ColumnAnalysis {
	if scores == nil {
		scores = map[schema.CanonicalType]float64{recommended: confidence}
	}
	return &analyzer.ColumnAnalysis{
		OriginalHeader:        header,
		NormalizedHeader:      header,
		FinalScores:           scores,
		RecommendedType:       recommended,
		RecommendedConfidence: confidence,
		RecommendedSource:     analyzer.MethodRule,
	}
}

func TestCategorizeBoundaries(t *testing.T) {
	e, err := NewEvaluator(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEvaluator failed: %v", err)
	}

	tests := []struct {
		confidence float64
		want       ConfidenceCategory
	}{
		{1.00, CategoryAutoMap},
		{0.95, CategoryAutoMap},
		{0.90, CategoryAutoMap}, // нижняя граница включительно
		{0.899, CategorySuggested},
		{0.70, CategorySuggested}, // нижняя граница включительно
		{0.699, CategoryUncertain},
		{0.10, CategoryUncertain},
		{0.0, CategoryUncertain},
	}

	for _, tt := range tests {
		if got := e.Categorize(tt.confidence); got != tt.want {
			t.Errorf("Categorize(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

func TestAutoMapRouting(t *testing.T) {
	e, _ := NewEvaluator(DefaultConfig())

	decision := e.EvaluateColumn(analysisWith("txn_dt", schema.Date, 0.95, nil))
	if decision.Category != CategoryAutoMap {
		t.Errorf("category = %s, want AUTO_MAP", decision.Category)
	}
	if decision.Action != ActionAutoApply {
		t.Errorf("action = %s, want AUTO_APPLY", decision.Action)
	}

	// Выше границы категории, но ниже собственного порога применения
	cfg := DefaultConfig()
	cfg.ApplyThreshold = 0.97
	strict, _ := NewEvaluator(cfg)

	decision = strict.EvaluateColumn(analysisWith("txn_dt", schema.Date, 0.95, nil))
	if decision.Action != ActionSuggestReview {
		t.Errorf("action = %s, want SUGGEST_REVIEW when below apply threshold", decision.Action)
	}
}

func TestSuggestedRouting(t *testing.T) {
	// Критичный тип + предпочтение LLM
	cfg := DefaultConfig()
	cfg.PreferLLM = true
	e, _ := NewEvaluator(cfg)

	decision := e.EvaluateColumn(analysisWith("sales_col", schema.Sales, 0.80, nil))
	if decision.Action != ActionSendToGPT {
		t.Errorf("action = %s, want SEND_TO_GPT for critical suggested with prefer-LLM", decision.Action)
	}

	// Критичный тип без предпочтения LLM
	cfg = DefaultConfig()
	cfg.PreferLLM = false
	e, _ = NewEvaluator(cfg)

	decision = e.EvaluateColumn(analysisWith("sales_col", schema.Sales, 0.80, nil))
	if decision.Action != ActionUserConfirmation {
		t.Errorf("action = %s, want USER_CONFIRMATION for critical suggested without prefer-LLM", decision.Action)
	}
}

func TestLLMResultIsNotReEscalated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreferLLM = true
	e, _ := NewEvaluator(cfg)

	// Критичный тип в SUGGESTED, но ответ уже получен от LLM
	fromLLM := analysisWith("sales_col", schema.Sales, 0.80, nil)
	fromLLM.RecommendedSource = SourceLLM

	decision := e.EvaluateColumn(fromLLM)
	if decision.Action != ActionUserConfirmation {
		t.Errorf("action = %s, want USER_CONFIRMATION for an already-escalated column", decision.Action)
	}

	// Неоднозначность после ответа LLM тоже не эскалируется повторно
	ambiguous := analysisWith("val", schema.Amount, 0.50, map[schema.CanonicalType]float64{
		schema.Amount: 0.50,
		schema.Sales:  0.45,
	})
	ambiguous.RecommendedSource = SourceLLM

	decision = e.EvaluateColumn(ambiguous)
	if decision.Action != ActionUserConfirmation {
		t.Errorf("action = %s, want USER_CONFIRMATION instead of a second escalation", decision.Action)
	}
}

func TestUncertainRouting(t *testing.T) {
	e, _ := NewEvaluator(DefaultConfig())

	// Вторая альтернатива >= 70% лучшей: разрешимо через LLM
	ambiguous := analysisWith("val", schema.Amount, 0.50, map[schema.CanonicalType]float64{
		schema.Amount: 0.50,
		schema.Sales:  0.45,
	})
	decision := e.EvaluateColumn(ambiguous)
	if decision.Action != ActionSendToGPT {
		t.Errorf("action = %s, want SEND_TO_GPT for resolvable ambiguity", decision.Action)
	}

	// Одинокий слабый кандидат: только пользователь
	lone := analysisWith("region_q", schema.Region, 0.55, map[schema.CanonicalType]float64{
		schema.Region:  0.55,
		schema.Product: 0.10,
	})
	decision = e.EvaluateColumn(lone)
	if decision.Action != ActionUserConfirmation {
		t.Errorf("action = %s, want USER_CONFIRMATION for unresolvable uncertainty", decision.Action)
	}
}

func TestEmptyAnalysisIgnored(t *testing.T) {
	e, _ := NewEvaluator(DefaultConfig())

	empty := &analyzer.ColumnAnalysis{
		OriginalHeader: "blank",
		FinalScores:    map[schema.CanonicalType]float64{},
	}
	decision := e.EvaluateColumn(empty)
	if decision.Action != ActionIgnore {
		t.Errorf("action = %s, want IGNORE for column without candidates", decision.Action)
	}
	if decision.Priority != PriorityLow {
		t.Errorf("priority = %d, want %d", decision.Priority, PriorityLow)
	}
}

func TestEvaluateFileAggregation(t *testing.T) {
	e, _ := NewEvaluator(DefaultConfig())

	// Пример из постановки: три колонки с rule-попаданиями 0.95
	analyses := []*analyzer.ColumnAnalysis{
		analysisWith("txn_dt", schema.Date, 0.95, nil),
		analysisWith("sales_amt", schema.Sales, 0.95, nil),
		analysisWith("prod_sku", schema.Product, 0.95, nil),
	}

	strategy := e.EvaluateFile(analyses)

	if strategy.ActionCounts[ActionAutoApply] != 3 {
		t.Fatalf("auto-apply count = %d, want 3", strategy.ActionCounts[ActionAutoApply])
	}

	immediate := make(map[string]bool)
	for _, name := range strategy.ImmediateAnalytics {
		immediate[name] = true
	}
	if !immediate["Sales Summary"] {
		t.Error("Sales Summary must be immediately feasible")
	}
	if !immediate["Product Performance"] {
		t.Error("Product Performance must be immediately feasible")
	}
	if immediate["Regional Sales"] {
		t.Error("Regional Sales must not be feasible without Region")
	}
}

func TestEvaluateFilePotentialAnalytics(t *testing.T) {
	e, _ := NewEvaluator(DefaultConfig())

	analyses := []*analyzer.ColumnAnalysis{
		analysisWith("txn_dt", schema.Date, 0.95, nil),
		// Region лишь предложен, не авто-применен
		analysisWith("area", schema.Region, 0.80, nil),
		analysisWith("sales_amt", schema.Sales, 0.95, nil),
	}

	strategy := e.EvaluateFile(analyses)

	potential := make(map[string]bool)
	for _, name := range strategy.PotentialAnalytics {
		potential[name] = true
	}
	if !potential["Regional Sales"] {
		t.Error("Regional Sales must be potentially feasible with proposed Region")
	}

	immediate := make(map[string]bool)
	for _, name := range strategy.ImmediateAnalytics {
		immediate[name] = true
	}
	if immediate["Regional Sales"] {
		t.Error("Regional Sales must not be immediately feasible")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"auto map above 1", func(c *Config) { c.AutoMapThreshold = 1.2 }, true},
		{"suggested above auto map", func(c *Config) { c.SuggestedMin = 0.95 }, true},
		{"zero ambiguity ratio", func(c *Config) { c.AmbiguityRatio = 0 }, true},
		{"negative apply threshold", func(c *Config) { c.ApplyThreshold = -0.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
