package escalation

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"
)

// Escalator батчирует неуверенные колонки и отправляет их заголовки в LLM.
// Отказ LLM никогда не останавливает конвейер: возвращается пустой результат,
// и колонка уходит на пользовательское подтверждение
type Escalator struct {
	config  *Config
	client  ChatClient
	cache   *ResponseCache
	limiter *rate.Limiter
}

// NewEscalator создает эскалатор с OpenRouter-клиентом
func NewEscalator(config *Config) (*Escalator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escalation config: %w", err)
	}

	return NewEscalatorWithClient(config, NewOpenRouterClient(config))
}

// NewEscalatorWithClient создает эскалатор с произвольным ChatClient
func NewEscalatorWithClient(config *Config, client ChatClient) (*Escalator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escalation config: %w", err)
	}

	return &Escalator{
		config:  config,
		client:  client,
		cache:   NewResponseCache(config.CacheTTL, config.CacheCleanupInterval),
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}, nil
}

// Escalate отправляет заголовки в LLM батчами и сливает результаты.
// Батчи выполняются последовательно с rate-limit задержкой между ними
func (e *Escalator) Escalate(ctx context.Context, headers []string, fileContext string) *GPTResponse {
	if len(headers) == 0 {
		return EmptyResponse()
	}

	merged := EmptyResponse()

	for start := 0; start < len(headers); start += e.config.MaxColumnsPerRequest {
		end := start + e.config.MaxColumnsPerRequest
		if end > len(headers) {
			end = len(headers)
		}
		batch := headers[start:end]

		response := e.escalateBatch(ctx, batch, fileContext)
		for header, result := range response.Mappings {
			merged.Mappings[header] = result
		}
	}

	log.Printf("[Escalator] Escalated %d headers, resolved %d", len(headers), len(merged.Mappings))
	return merged
}

// escalateBatch выполняет один batch-запрос с кэшем и деградацией
func (e *Escalator) escalateBatch(ctx context.Context, batch []string, fileContext string) *GPTResponse {
	key := CacheKey(batch, fileContext)

	if cached, ok := e.cache.Get(key); ok {
		log.Printf("[Escalator] Cache HIT for batch of %d headers", len(batch))
		return cached
	}

	// Rate limit между последовательными сетевыми вызовами
	if err := e.limiter.Wait(ctx); err != nil {
		log.Printf("[Escalator] Rate limiter wait aborted: %v", err)
		return EmptyResponse()
	}

	requestCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	raw, err := e.client.ChatCompletion(requestCtx, SystemPrompt(), BuildPrompt(batch, fileContext))
	if err != nil {
		// Деградация: локальные результаты и пользователь остаются fallback-ом
		log.Printf("[Escalator] LLM request failed, falling back to empty mapping: %v", err)
		return EmptyResponse()
	}

	response, err := ParseResponse(raw)
	if err != nil {
		log.Printf("[Escalator] Malformed LLM response, falling back to empty mapping: %v", err)
		return EmptyResponse()
	}

	e.cache.Set(key, response)
	return response
}

// CacheStats возвращает статистику кэша ответов
func (e *Escalator) CacheStats() CacheStats {
	return e.cache.Stats()
}
