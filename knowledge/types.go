package knowledge

import (
	"fmt"
	"time"

	"schemamapper/schema"
)

// Источники записей базы знаний
const (
	SourceUserConfirmed = "user_confirmed"
	SourceAutoApplied   = "auto_applied"
	SourceLLM           = "llm"
)

// Config конфигурация базы знаний
type Config struct {
	// Путь к файлу SQLite (":memory:" для тестов)
	Path string `json:"path"`

	// Записи, не подтверждавшиеся дольше окна, теряют уверенность
	DecayWindow time.Duration `json:"decay_window"`
	DecayFactor float64       `json:"decay_factor"`
	DecayFloor  float64       `json:"decay_floor"`

	// Очередь повторных попыток отложенной записи
	RetryMaxAttempts int           `json:"retry_max_attempts"`
	RetryInterval    time.Duration `json:"retry_interval"`
	RetryQueueCap    int           `json:"retry_queue_cap"`
}

// DefaultConfig возвращает конфигурацию базы знаний по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Path:             "knowledge.db",
		DecayWindow:      90 * 24 * time.Hour,
		DecayFactor:      0.1,
		DecayFloor:       0.1,
		RetryMaxAttempts: 3,
		RetryInterval:    5 * time.Second,
		RetryQueueCap:    100,
	}
}

// Validate проверяет корректность конфигурации базы знаний
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("knowledge base path is required")
	}
	if c.DecayFactor < 0 || c.DecayFactor >= 1 {
		return fmt.Errorf("decay factor must be within [0,1), got %v", c.DecayFactor)
	}
	if c.DecayFloor < 0 || c.DecayFloor > 1 {
		return fmt.Errorf("decay floor must be within [0,1], got %v", c.DecayFloor)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.RetryQueueCap < 1 {
		return fmt.Errorf("retry queue capacity must be at least 1, got %d", c.RetryQueueCap)
	}
	return nil
}

// Confirmation подтвержденное соответствие заголовка каноническому типу,
// подлежащее записи в базу знаний
type Confirmation struct {
	UserID           string               `json:"user_id"`
	OriginalHeader   string               `json:"original_header"`
	NormalizedHeader string               `json:"normalized_header"`
	Canonical        schema.CanonicalType `json:"canonical"`
	Source           string               `json:"source"`
}

// Entry запись базы знаний. Уникальный ключ (user_id, original_header,
// canonical); поиск идет по нормализованному заголовку
type Entry struct {
	UserID           string               `json:"user_id"`
	OriginalHeader   string               `json:"original_header"`
	NormalizedHeader string               `json:"normalized_header"`
	Canonical        schema.CanonicalType `json:"canonical"`
	Confidence       float64              `json:"confidence"`
	Source           string               `json:"source"`
	Confirmed        bool                 `json:"confirmed"`
	TimesSeen        int                  `json:"times_seen"`
	Version          int                  `json:"version"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	LastSeen         time.Time            `json:"last_seen"`
}

// AggregateStats анонимизированная статистика базы знаний.
// Не содержит заголовков и иных данных загрузок
type AggregateStats struct {
	TotalEntries    int                          `json:"total_entries"`
	DistinctUsers   int                          `json:"distinct_users"`
	EntriesByType   map[schema.CanonicalType]int `json:"entries_by_type"`
	EntriesBySource map[string]int               `json:"entries_by_source"`
	AvgConfidence   float64                      `json:"avg_confidence"`
	DecayedEntries  int                          `json:"decayed_entries"`
}
