package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"schemamapper/analyzer"
	"schemamapper/escalation"
	"schemamapper/evaluator"
	"schemamapper/feedback"
	"schemamapper/knowledge"
	"schemamapper/pipeline"
)

// Config конфигурация сервера
type Config struct {
	// Сервер
	Port string `json:"port"`

	// Время жизни сессий подтверждения
	SessionTTL             time.Duration `json:"session_ttl"`
	SessionCleanupInterval time.Duration `json:"session_cleanup_interval"`

	// Стадии конвейера
	Analyzer   *analyzer.Config   `json:"analyzer"`
	Evaluator  *evaluator.Config  `json:"evaluator"`
	Escalation *escalation.Config `json:"escalation"`
	Knowledge  *knowledge.Config  `json:"knowledge"`
	Feedback   *feedback.Config   `json:"feedback"`
	Pipeline   *pipeline.Config   `json:"pipeline"`
}

// LoadConfig загружает конфигурацию из переменных окружения.
// Некорректное значение любой стадии приводит к отказу старта
func LoadConfig() (*Config, error) {
	config := &Config{
		Port: getEnv("SERVER_PORT", "8080"),

		SessionTTL:             getEnvDuration("SESSION_TTL", 1*time.Hour),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),

		Analyzer:   loadAnalyzerConfig(),
		Evaluator:  loadEvaluatorConfig(),
		Escalation: loadEscalationConfig(),
		Knowledge:  loadKnowledgeConfig(),
		Feedback:   loadFeedbackConfig(),
		Pipeline:   loadPipelineConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// loadAnalyzerConfig загружает конфигурацию локального анализатора
func loadAnalyzerConfig() *analyzer.Config {
	cfg := analyzer.DefaultConfig()
	cfg.RuleWeight = getEnvFloat("ANALYZER_RULE_WEIGHT", cfg.RuleWeight)
	cfg.FuzzyWeight = getEnvFloat("ANALYZER_FUZZY_WEIGHT", cfg.FuzzyWeight)
	cfg.TypeWeight = getEnvFloat("ANALYZER_TYPE_WEIGHT", cfg.TypeWeight)
	cfg.FuzzyThreshold = getEnvFloat("ANALYZER_FUZZY_THRESHOLD", cfg.FuzzyThreshold)
	cfg.EnablePartialRules = getEnv("ANALYZER_PARTIAL_RULES", "true") == "true"
	cfg.MinAliasLength = getEnvInt("ANALYZER_MIN_ALIAS_LENGTH", cfg.MinAliasLength)
	return cfg
}

// loadEvaluatorConfig загружает конфигурацию оценщика уверенности
func loadEvaluatorConfig() *evaluator.Config {
	cfg := evaluator.DefaultConfig()
	cfg.AutoMapThreshold = getEnvFloat("EVALUATOR_AUTO_MAP_THRESHOLD", cfg.AutoMapThreshold)
	cfg.SuggestedMin = getEnvFloat("EVALUATOR_SUGGESTED_MIN", cfg.SuggestedMin)
	cfg.ApplyThreshold = getEnvFloat("EVALUATOR_APPLY_THRESHOLD", cfg.ApplyThreshold)
	cfg.AmbiguityRatio = getEnvFloat("EVALUATOR_AMBIGUITY_RATIO", cfg.AmbiguityRatio)
	cfg.PreferLLM = getEnv("EVALUATOR_PREFER_LLM", "true") == "true"
	return cfg
}

// loadEscalationConfig загружает конфигурацию LLM-эскалации.
// Без API-ключа эскалация отключается, конвейер деградирует до локального анализа
func loadEscalationConfig() *escalation.Config {
	cfg := escalation.DefaultConfig()
	cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.Model = getEnv("ESCALATION_MODEL", cfg.Model)
	cfg.BaseURL = getEnv("ESCALATION_BASE_URL", cfg.BaseURL)
	cfg.Timeout = getEnvDuration("ESCALATION_TIMEOUT", cfg.Timeout)
	cfg.MaxColumnsPerRequest = getEnvInt("ESCALATION_BATCH_SIZE", cfg.MaxColumnsPerRequest)
	cfg.CacheTTL = getEnvDuration("ESCALATION_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheCleanupInterval = getEnvDuration("ESCALATION_CACHE_CLEANUP", cfg.CacheCleanupInterval)
	cfg.MaxRetries = getEnvInt("ESCALATION_MAX_RETRIES", cfg.MaxRetries)
	cfg.RequestsPerSecond = getEnvFloat("ESCALATION_REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
	return cfg
}

// loadKnowledgeConfig загружает конфигурацию базы знаний
func loadKnowledgeConfig() *knowledge.Config {
	cfg := knowledge.DefaultConfig()
	cfg.Path = getEnv("KNOWLEDGE_DB_PATH", cfg.Path)
	cfg.DecayWindow = getEnvDuration("KNOWLEDGE_DECAY_WINDOW", cfg.DecayWindow)
	cfg.DecayFactor = getEnvFloat("KNOWLEDGE_DECAY_FACTOR", cfg.DecayFactor)
	cfg.DecayFloor = getEnvFloat("KNOWLEDGE_DECAY_FLOOR", cfg.DecayFloor)
	cfg.RetryMaxAttempts = getEnvInt("KNOWLEDGE_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	cfg.RetryInterval = getEnvDuration("KNOWLEDGE_RETRY_INTERVAL", cfg.RetryInterval)
	cfg.RetryQueueCap = getEnvInt("KNOWLEDGE_RETRY_QUEUE_CAP", cfg.RetryQueueCap)
	return cfg
}

// loadFeedbackConfig загружает конфигурацию анализатора обратной связи
func loadFeedbackConfig() *feedback.Config {
	cfg := feedback.DefaultConfig()
	cfg.CalibrationBins = getEnvInt("FEEDBACK_CALIBRATION_BINS", cfg.CalibrationBins)
	cfg.MinSampleSize = getEnvInt("FEEDBACK_MIN_SAMPLE_SIZE", cfg.MinSampleSize)
	cfg.AutoMapTargetAccuracy = getEnvFloat("FEEDBACK_AUTO_MAP_TARGET", cfg.AutoMapTargetAccuracy)
	cfg.RelaxationAccuracy = getEnvFloat("FEEDBACK_RELAXATION_ACCURACY", cfg.RelaxationAccuracy)
	cfg.ThresholdStep = getEnvFloat("FEEDBACK_THRESHOLD_STEP", cfg.ThresholdStep)
	return cfg
}

// loadPipelineConfig загружает конфигурацию конвейера
func loadPipelineConfig() *pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.KBShortCircuitThreshold = getEnvFloat("PIPELINE_KB_THRESHOLD", cfg.KBShortCircuitThreshold)
	return cfg
}

// EscalationEnabled проверяет, настроена ли LLM-эскалация
func (c *Config) EscalationEnabled() bool {
	return c.Escalation != nil && c.Escalation.APIKey != ""
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
