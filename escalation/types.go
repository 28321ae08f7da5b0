package escalation

import (
	"fmt"
	"time"

	"schemamapper/schema"
)

// Config конфигурация LLM-эскалации
type Config struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`

	// Таймаут одного запроса к LLM
	Timeout time.Duration `json:"timeout"`

	// Максимум заголовков в одном batch-запросе
	MaxColumnsPerRequest int `json:"max_columns_per_request"`

	// Кэш ответов по хэшу набора заголовков
	CacheTTL             time.Duration `json:"cache_ttl"`
	CacheCleanupInterval time.Duration `json:"cache_cleanup_interval"`

	// Повторные попытки при 5xx/429
	MaxRetries int `json:"max_retries"`

	// Запросов в секунду между последовательными батчами
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// DefaultConfig возвращает конфигурацию эскалации по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Model:                "openai/gpt-4o-mini",
		BaseURL:              "https://openrouter.ai/api/v1",
		Timeout:              30 * time.Second,
		MaxColumnsPerRequest: 10,
		CacheTTL:             24 * time.Hour,
		CacheCleanupInterval: 1 * time.Hour,
		MaxRetries:           3,
		RequestsPerSecond:    1,
	}
}

// Validate проверяет корректность конфигурации эскалации
func (c *Config) Validate() error {
	if c.MaxColumnsPerRequest < 1 {
		return fmt.Errorf("max columns per request must be at least 1, got %d", c.MaxColumnsPerRequest)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("LLM timeout must be at least 1 second, got %v", c.Timeout)
	}
	if c.CacheTTL < time.Minute {
		return fmt.Errorf("cache TTL must be at least 1 minute, got %v", c.CacheTTL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	return nil
}

// GPTRequest один batch-запрос к LLM: только заголовки, никаких значений ячеек
type GPTRequest struct {
	Headers     []string `json:"headers"`
	FileContext string   `json:"file_context,omitempty"`
	Prompt      string   `json:"prompt"`
}

// wireMapping элемент проволочного формата ответа LLM.
// Уверенность на проводе в шкале 0-100
type wireMapping struct {
	Original   string  `json:"original"`
	MappedTo   *string `json:"mapped_to"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// wireResponse проволочный формат ответа LLM
type wireResponse struct {
	Mappings []wireMapping `json:"mappings"`
}

// MappingResult валидированный результат LLM по одному заголовку.
// Уверенность приведена к [0,1]
type MappingResult struct {
	Canonical  schema.CanonicalType `json:"canonical"`
	Confidence float64              `json:"confidence"`
	Reasoning  string               `json:"reasoning"`
}

// GPTResponse разобранный и валидированный ответ на batch-запрос
type GPTResponse struct {
	Mappings  map[string]MappingResult `json:"mappings"`
	FromCache bool                     `json:"from_cache"`
}

// EmptyResponse возвращает пустой ответ (деградация при отказе LLM)
func EmptyResponse() *GPTResponse {
	return &GPTResponse{Mappings: make(map[string]MappingResult)}
}
