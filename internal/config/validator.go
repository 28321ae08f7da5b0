package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate проверяет корректность конфигурации.
// Ошибки собираются все сразу, чтобы отказ старта был диагностируемым
func (c *Config) Validate() error {
	var errors []string

	// Валидация порта
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}

	// Валидация сессий подтверждения
	if c.SessionTTL < time.Minute {
		errors = append(errors, "session TTL must be at least 1 minute")
	}
	if c.SessionCleanupInterval < time.Second {
		errors = append(errors, "session cleanup interval must be at least 1 second")
	}

	// Валидация стадий конвейера
	if c.Analyzer == nil {
		errors = append(errors, "analyzer config is required")
	} else if err := c.Analyzer.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("analyzer config: %v", err))
	}

	if c.Evaluator == nil {
		errors = append(errors, "evaluator config is required")
	} else if err := c.Evaluator.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("evaluator config: %v", err))
	}

	if c.Escalation == nil {
		errors = append(errors, "escalation config is required")
	} else if err := c.Escalation.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("escalation config: %v", err))
	}

	if c.Knowledge == nil {
		errors = append(errors, "knowledge config is required")
	} else if err := c.Knowledge.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("knowledge config: %v", err))
	}

	if c.Feedback == nil {
		errors = append(errors, "feedback config is required")
	} else if err := c.Feedback.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("feedback config: %v", err))
	}

	if c.Pipeline == nil {
		errors = append(errors, "pipeline config is required")
	} else if err := c.Pipeline.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("pipeline config: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
