package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Port)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("default session TTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.Evaluator.AutoMapThreshold != 0.90 {
		t.Errorf("default auto-map threshold = %v, want 0.90", cfg.Evaluator.AutoMapThreshold)
	}
	if cfg.Evaluator.SuggestedMin != 0.70 {
		t.Errorf("default suggested min = %v, want 0.70", cfg.Evaluator.SuggestedMin)
	}
	if cfg.Escalation.MaxColumnsPerRequest != 10 {
		t.Errorf("default escalation batch = %d, want 10", cfg.Escalation.MaxColumnsPerRequest)
	}
	if cfg.Knowledge.DecayWindow != 90*24*time.Hour {
		t.Errorf("default decay window = %v, want 90 days", cfg.Knowledge.DecayWindow)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("EVALUATOR_AUTO_MAP_THRESHOLD", "0.95")
	t.Setenv("ESCALATION_BATCH_SIZE", "5")
	t.Setenv("KNOWLEDGE_DB_PATH", ":memory:")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Port)
	}
	if cfg.Evaluator.AutoMapThreshold != 0.95 {
		t.Errorf("auto-map threshold = %v, want 0.95", cfg.Evaluator.AutoMapThreshold)
	}
	if cfg.Escalation.MaxColumnsPerRequest != 5 {
		t.Errorf("escalation batch = %d, want 5", cfg.Escalation.MaxColumnsPerRequest)
	}
	if cfg.Knowledge.Path != ":memory:" {
		t.Errorf("knowledge path = %q, want :memory:", cfg.Knowledge.Path)
	}
}

func TestLoadConfigFailsFast(t *testing.T) {
	t.Setenv("EVALUATOR_SUGGESTED_MIN", "0.99") // выше порога авто-применения

	if _, err := LoadConfig(); err == nil {
		t.Error("inverted thresholds must fail config loading")
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name      string
		port      string
		wantError bool
	}{
		{"Valid port", "8080", false},
		{"Empty port", "", true},
		{"Non-numeric", "http", true},
		{"Out of range", "70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			cfg.Port = tt.port

			err = cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestEscalationEnabled(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	cfg.Escalation.APIKey = ""
	if cfg.EscalationEnabled() {
		t.Error("escalation must be disabled without an API key")
	}

	cfg.Escalation.APIKey = "sk-test"
	if !cfg.EscalationEnabled() {
		t.Error("escalation must be enabled with an API key")
	}
}
