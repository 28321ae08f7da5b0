package knowledge

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

const migrationsTableName = "schema_migrations"

// ensureMigrationTable создает таблицу schema_migrations при необходимости
func ensureMigrationTable(db *sql.DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, migrationsTableName)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}
	return nil
}

// isMigrationApplied проверяет, была ли уже применена миграция
func isMigrationApplied(db *sql.DB, name string) (bool, error) {
	if err := ensureMigrationTable(db); err != nil {
		return false, err
	}

	var appliedAt sql.NullTime
	query := fmt.Sprintf(`SELECT applied_at FROM %s WHERE name = ?`, migrationsTableName)
	err := db.QueryRow(query, name).Scan(&appliedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}

	return appliedAt.Valid, nil
}

// markMigrationApplied сохраняет информацию о примененной миграции
func markMigrationApplied(db *sql.DB, name string) error {
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s(name, applied_at) VALUES(?, ?)`, migrationsTableName)
	if _, err := db.Exec(query, name, time.Now()); err != nil {
		return fmt.Errorf("failed to mark migration %s as applied: %w", name, err)
	}
	return nil
}

// ensureMigrationApplied выполняет миграцию только один раз
func ensureMigrationApplied(db *sql.DB, name string, migration func(*sql.DB) error) error {
	applied, err := isMigrationApplied(db, name)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	if err := migration(db); err != nil {
		return err
	}

	if err := markMigrationApplied(db, name); err != nil {
		return err
	}

	log.Printf("[Migrations] %s applied successfully", name)
	return nil
}

// runMigrations применяет все миграции базы знаний
func runMigrations(db *sql.DB) error {
	migrations := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"create_kb_entries", createKBEntriesTable},
		{"create_feedback_events", createFeedbackEventsTable},
		{"create_active_thresholds", createActiveThresholdsTable},
	}

	for _, m := range migrations {
		if err := ensureMigrationApplied(db, m.name, m.fn); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}
	return nil
}

// createKBEntriesTable основная таблица подтвержденных соответствий.
// Хранятся только заголовки, никаких значений ячеек
func createKBEntriesTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS kb_entries (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id           TEXT NOT NULL,
			original_header   TEXT NOT NULL,
			normalized_header TEXT NOT NULL,
			canonical_type    TEXT NOT NULL,
			confidence        REAL NOT NULL,
			source            TEXT NOT NULL,
			confirmed         INTEGER NOT NULL DEFAULT 0,
			times_seen        INTEGER NOT NULL DEFAULT 1,
			last_seen         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version           INTEGER NOT NULL DEFAULT 1,
			created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, original_header, canonical_type)
		);
		CREATE INDEX IF NOT EXISTS idx_kb_entries_user_normalized ON kb_entries(user_id, normalized_header);
		CREATE INDEX IF NOT EXISTS idx_kb_entries_last_seen ON kb_entries(last_seen);
	`
	_, err := db.Exec(query)
	return err
}

// createFeedbackEventsTable журнал событий обратной связи для метрик качества
func createFeedbackEventsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS feedback_events (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			normalized_header TEXT NOT NULL,
			predicted_type    TEXT NOT NULL,
			confirmed_type    TEXT NOT NULL,
			confidence        REAL NOT NULL,
			method            TEXT NOT NULL,
			accepted          INTEGER NOT NULL,
			created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_feedback_events_method ON feedback_events(method);
	`
	_, err := db.Exec(query)
	return err
}

// createActiveThresholdsTable журнал принятых значений порогов и весов.
// Предложения становятся активными только после явного принятия.
// Каждое принятие добавляет строку: активна последняя по имени,
// предыдущие остаются как история для аудита
func createActiveThresholdsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS active_thresholds (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			value      REAL NOT NULL,
			adopted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_active_thresholds_name ON active_thresholds(name, id);
	`
	_, err := db.Exec(query)
	return err
}
