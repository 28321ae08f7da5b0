package knowledge

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"schemamapper/schema"
)

// KnowledgeBase постоянное хранилище подтвержденных соответствий заголовков.
// Подтвержденный заголовок при повторной загрузке минует локальный анализ
// и эскалацию
type KnowledgeBase struct {
	conn   *sql.DB
	config *Config
	queue  *retryQueue
}

// Open открывает базу знаний и применяет миграции
func Open(config *Config) (*KnowledgeBase, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid knowledge base config: %w", err)
	}

	conn, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}

	// Для in-memory SQLite требуется ровно одно соединение, иначе каждое
	// новое соединение получает пустую БД без таблиц
	if isInMemoryPath(config.Path) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		// SQLite плохо переносит много одновременных соединений
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(3)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping knowledge base: %w", err)
	}

	// WAL улучшает конкурентность чтения; отказ не критичен
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("[KnowledgeBase] Warning: failed to enable WAL mode: %v", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate knowledge base: %w", err)
	}

	kb := &KnowledgeBase{conn: conn, config: config}
	kb.queue = newRetryQueue(kb, config)

	return kb, nil
}

// isInMemoryPath определяет, что путь относится к in-memory SQLite
func isInMemoryPath(path string) bool {
	if path == ":memory:" {
		return true
	}
	return strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory")
}

// Close останавливает фоновую очередь и закрывает соединение
func (kb *KnowledgeBase) Close() error {
	kb.queue.stop()
	return kb.conn.Close()
}

// RecordConfirmation фиксирует подтвержденное соответствие.
// Повторное подтверждение того же ключа увеличивает times_seen и version;
// подтверждение пользователем всегда выставляет уверенность 1.0.
// При отказе записи операция уходит в очередь повторных попыток
func (kb *KnowledgeBase) RecordConfirmation(conf Confirmation) error {
	if conf.OriginalHeader == "" {
		return fmt.Errorf("original header is required")
	}
	if !schema.IsValid(string(conf.Canonical)) || conf.Canonical == schema.Ignore {
		return fmt.Errorf("cannot record confirmation for type %q", conf.Canonical)
	}
	if conf.UserID == "" {
		conf.UserID = "anonymous"
	}
	if conf.NormalizedHeader == "" {
		conf.NormalizedHeader = conf.OriginalHeader
	}

	if err := kb.writeConfirmation(conf); err != nil {
		log.Printf("[KnowledgeBase] Write failed, queueing retry: %v", err)
		kb.queue.enqueue(writeOp{conf: conf})
		return nil
	}
	return nil
}

// writeConfirmation выполняет собственно upsert записи
func (kb *KnowledgeBase) writeConfirmation(conf Confirmation) error {
	confidence := 1.0
	confirmed := 1
	if conf.Source != SourceUserConfirmed {
		confidence = 0.95
		confirmed = 0
	}

	query := `
		INSERT INTO kb_entries(user_id, original_header, normalized_header, canonical_type,
			confidence, source, confirmed, times_seen, last_seen, version, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, original_header, canonical_type) DO UPDATE SET
			normalized_header = excluded.normalized_header,
			confidence        = excluded.confidence,
			source            = excluded.source,
			confirmed         = excluded.confirmed,
			times_seen        = times_seen + 1,
			last_seen         = CURRENT_TIMESTAMP,
			version           = version + 1,
			updated_at        = CURRENT_TIMESTAMP
	`
	_, err := kb.conn.Exec(query, conf.UserID, conf.OriginalHeader, conf.NormalizedHeader,
		string(conf.Canonical), confidence, conf.Source, confirmed)
	if err != nil {
		return fmt.Errorf("failed to upsert kb entry: %w", err)
	}
	return nil
}

// Lookup возвращает лучшую запись пользователя для нормализованного заголовка.
// Один заголовок может иметь историю по нескольким типам; выигрывает запись
// с наибольшей уверенностью, при равенстве — подтвержденная позже
func (kb *KnowledgeBase) Lookup(userID, normalizedHeader string) (*Entry, bool, error) {
	query := `
		SELECT user_id, original_header, normalized_header, canonical_type, confidence,
			source, confirmed, times_seen, last_seen, version, created_at, updated_at
		FROM kb_entries
		WHERE user_id = ? AND normalized_header = ?
		ORDER BY confidence DESC, last_seen DESC
		LIMIT 1
	`
	row := kb.conn.QueryRow(query, userID, normalizedHeader)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to lookup kb entry: %w", err)
	}
	return entry, true, nil
}

// LookupBatch возвращает известные записи для набора нормализованных заголовков
func (kb *KnowledgeBase) LookupBatch(userID string, normalizedHeaders []string) (map[string]*Entry, error) {
	result := make(map[string]*Entry)
	for _, header := range normalizedHeaders {
		entry, ok, err := kb.Lookup(userID, header)
		if err != nil {
			return nil, err
		}
		if ok {
			result[header] = entry
		}
	}
	return result, nil
}

// HeaderConsensus возвращает анонимизированный межпользовательский консенсус:
// сколько разных пользователей подтвердили каждый тип для заголовка
func (kb *KnowledgeBase) HeaderConsensus(normalizedHeader string) (map[schema.CanonicalType]int, error) {
	rows, err := kb.conn.Query(`
		SELECT canonical_type, COUNT(DISTINCT user_id)
		FROM kb_entries
		WHERE normalized_header = ? AND confirmed = 1
		GROUP BY canonical_type
	`, normalizedHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to query header consensus: %w", err)
	}
	defer rows.Close()

	consensus := make(map[schema.CanonicalType]int)
	for rows.Next() {
		var canonical string
		var users int
		if err := rows.Scan(&canonical, &users); err != nil {
			return nil, fmt.Errorf("failed to scan consensus row: %w", err)
		}
		consensus[schema.CanonicalType(canonical)] = users
	}
	return consensus, rows.Err()
}

// scanner общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	var entry Entry
	var canonical string
	var confirmed int
	err := s.Scan(&entry.UserID, &entry.OriginalHeader, &entry.NormalizedHeader, &canonical,
		&entry.Confidence, &entry.Source, &confirmed, &entry.TimesSeen, &entry.LastSeen,
		&entry.Version, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.Canonical = schema.CanonicalType(canonical)
	entry.Confirmed = confirmed == 1
	return &entry, nil
}

// ApplyDecay снижает уверенность записей, не подтверждавшихся дольше окна.
// Записи никогда не удаляются: уверенность опускается не ниже пола.
// Возвращает число затронутых записей
func (kb *KnowledgeBase) ApplyDecay() (int, error) {
	cutoff := time.Now().Add(-kb.config.DecayWindow).UTC()

	// last_seen хранится в формате CURRENT_TIMESTAMP (UTC),
	// поэтому порог приводится к тому же формату через datetime()
	query := `
		UPDATE kb_entries
		SET confidence = MAX(confidence * (1.0 - ?), ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE last_seen < datetime(?, 'unixepoch') AND confidence > ?
	`
	result, err := kb.conn.Exec(query, kb.config.DecayFactor, kb.config.DecayFloor, cutoff.Unix(), kb.config.DecayFloor)
	if err != nil {
		return 0, fmt.Errorf("failed to apply decay: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count decayed entries: %w", err)
	}

	if affected > 0 {
		log.Printf("[KnowledgeBase] Decayed %d stale entries", affected)
	}
	return int(affected), nil
}

// Aggregates возвращает анонимизированную статистику базы знаний
func (kb *KnowledgeBase) Aggregates() (*AggregateStats, error) {
	stats := &AggregateStats{
		EntriesByType:   make(map[schema.CanonicalType]int),
		EntriesBySource: make(map[string]int),
	}

	rows, err := kb.conn.Query(`SELECT canonical_type, source, confidence FROM kb_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query kb aggregates: %w", err)
	}
	defer rows.Close()

	var confidenceSum float64
	for rows.Next() {
		var canonical, source string
		var confidence float64
		if err := rows.Scan(&canonical, &source, &confidence); err != nil {
			return nil, fmt.Errorf("failed to scan kb aggregate row: %w", err)
		}

		stats.TotalEntries++
		stats.EntriesByType[schema.CanonicalType(canonical)]++
		stats.EntriesBySource[source]++
		confidenceSum += confidence
		if confidence < 1.0 {
			stats.DecayedEntries++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kb aggregates: %w", err)
	}

	if stats.TotalEntries > 0 {
		stats.AvgConfidence = confidenceSum / float64(stats.TotalEntries)
	}

	if err := kb.conn.QueryRow(`SELECT COUNT(DISTINCT user_id) FROM kb_entries`).Scan(&stats.DistinctUsers); err != nil {
		return nil, fmt.Errorf("failed to count distinct users: %w", err)
	}
	return stats, nil
}

// RecordFeedbackEvent записывает событие обратной связи для метрик качества
func (kb *KnowledgeBase) RecordFeedbackEvent(normalizedHeader string, predicted, confirmed schema.CanonicalType, confidence float64, method string) error {
	accepted := 0
	if predicted == confirmed {
		accepted = 1
	}

	query := `
		INSERT INTO feedback_events(normalized_header, predicted_type, confirmed_type, confidence, method, accepted)
		VALUES(?, ?, ?, ?, ?, ?)
	`
	if _, err := kb.conn.Exec(query, normalizedHeader, string(predicted), string(confirmed), confidence, method, accepted); err != nil {
		return fmt.Errorf("failed to record feedback event: %w", err)
	}
	return nil
}

// FeedbackEvents возвращает накопленные события обратной связи
func (kb *KnowledgeBase) FeedbackEvents() ([]FeedbackEvent, error) {
	rows, err := kb.conn.Query(`
		SELECT normalized_header, predicted_type, confirmed_type, confidence, method, accepted, created_at
		FROM feedback_events
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback events: %w", err)
	}
	defer rows.Close()

	var events []FeedbackEvent
	for rows.Next() {
		var event FeedbackEvent
		var predicted, confirmed string
		var accepted int
		if err := rows.Scan(&event.NormalizedHeader, &predicted, &confirmed,
			&event.Confidence, &event.Method, &accepted, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback event: %w", err)
		}
		event.Predicted = schema.CanonicalType(predicted)
		event.Confirmed = schema.CanonicalType(confirmed)
		event.Accepted = accepted == 1
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback events: %w", err)
	}
	return events, nil
}

// AdoptThreshold сохраняет принятое значение порога или веса.
// Прежние принятия не перезаписываются: журнал хранит всю историю
func (kb *KnowledgeBase) AdoptThreshold(name string, value float64) error {
	query := `INSERT INTO active_thresholds(name, value) VALUES(?, ?)`
	if _, err := kb.conn.Exec(query, name, value); err != nil {
		return fmt.Errorf("failed to adopt threshold %s: %w", name, err)
	}

	log.Printf("[KnowledgeBase] Adopted threshold %s = %v", name, value)
	return nil
}

// ActiveThresholds возвращает действующие пороги: последнее принятое
// значение для каждого имени
func (kb *KnowledgeBase) ActiveThresholds() (map[string]float64, error) {
	rows, err := kb.conn.Query(`
		SELECT t.name, t.value
		FROM active_thresholds t
		WHERE t.id = (SELECT MAX(id) FROM active_thresholds WHERE name = t.name)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active thresholds: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		result[name] = value
	}
	return result, rows.Err()
}

// ThresholdHistory возвращает историю принятий порога в порядке принятия
func (kb *KnowledgeBase) ThresholdHistory(name string) ([]ThresholdRecord, error) {
	rows, err := kb.conn.Query(`
		SELECT name, value, adopted_at
		FROM active_thresholds
		WHERE name = ?
		ORDER BY id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold history: %w", err)
	}
	defer rows.Close()

	var records []ThresholdRecord
	for rows.Next() {
		var record ThresholdRecord
		if err := rows.Scan(&record.Name, &record.Value, &record.AdoptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan threshold record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// PendingRetries возвращает текущую длину очереди повторных попыток
func (kb *KnowledgeBase) PendingRetries() int {
	return kb.queue.size()
}

// UnresolvedWrites возвращает подтверждения, которые не удалось записать
// после исчерпания повторных попыток
func (kb *KnowledgeBase) UnresolvedWrites() []Confirmation {
	return kb.queue.unresolved()
}

// ThresholdRecord одно принятие порога из журнала
type ThresholdRecord struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	AdoptedAt time.Time `json:"adopted_at"`
}

// FeedbackEvent одно событие обратной связи из журнала
type FeedbackEvent struct {
	NormalizedHeader string               `json:"normalized_header"`
	Predicted        schema.CanonicalType `json:"predicted"`
	Confirmed        schema.CanonicalType `json:"confirmed"`
	Confidence       float64              `json:"confidence"`
	Method           string               `json:"method"`
	Accepted         bool                 `json:"accepted"`
	CreatedAt        time.Time            `json:"created_at"`
}
