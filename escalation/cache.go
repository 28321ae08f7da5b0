package escalation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// ResponseCache кэш ответов LLM по хэшу набора заголовков.
// Идентичный набор заголовков с тем же контекстом файла в пределах TTL
// не порождает повторного сетевого вызова
type ResponseCache struct {
	ttl  time.Duration
	data map[string]*cacheEntry
	mu   sync.RWMutex

	hits   int64
	misses int64
}

type cacheEntry struct {
	response  *GPTResponse
	timestamp time.Time
}

// CacheStats статистика кэша ответов
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// NewResponseCache создает новый кэш ответов.
// При cleanupInterval > 0 запускается периодическая очистка устаревших записей
func NewResponseCache(ttl, cleanupInterval time.Duration) *ResponseCache {
	cache := &ResponseCache{
		ttl:  ttl,
		data: make(map[string]*cacheEntry),
	}

	if cleanupInterval > 0 {
		go cache.startCleanup(cleanupInterval)
	}

	return cache
}

// CacheKey детерминированный ключ: sha256 отсортированных заголовков и контекста
func CacheKey(headers []string, fileContext string) string {
	sorted := make([]string, len(headers))
	copy(sorted, headers)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	h.Write([]byte{0x00})
	h.Write([]byte(fileContext))

	return hex.EncodeToString(h.Sum(nil))
}

// Get возвращает закэшированный ответ, если он не старше TTL
func (c *ResponseCache) Get(key string) (*GPTResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.data[key]
	if !exists || time.Since(entry.timestamp) > c.ttl {
		c.misses++
		return nil, false
	}

	c.hits++

	// Копия с пометкой источника: кэшированный ответ не мутируется
	copied := &GPTResponse{
		Mappings:  entry.response.Mappings,
		FromCache: true,
	}
	return copied, true
}

// Set сохраняет ответ в кэш
func (c *ResponseCache) Set(key string, response *GPTResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		response:  response,
		timestamp: time.Now(),
	}
}

// Stats возвращает статистику кэша
func (c *ResponseCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.data),
	}
}

// startCleanup запускает периодическую очистку устаревших записей
func (c *ResponseCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

// cleanup удаляет записи старше TTL
func (c *ResponseCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.data, key)
		}
	}
}
