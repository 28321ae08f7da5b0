package escalation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"schemamapper/schema"
)

// fakeChatClient подменный LLM-клиент со счетчиком вызовов
type fakeChatClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeChatClient) ChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.CacheCleanupInterval = 0 // без фоновой горутины в тестах
	cfg.RequestsPerSecond = 1000
	return cfg
}

func TestParseResponse(t *testing.T) {
	raw := `{"mappings":[
		{"original":"txn_dt","mapped_to":"Date","confidence":95,"reasoning":"transaction date"},
		{"original":"val","mapped_to":null,"confidence":0,"reasoning":"no fit"},
		{"original":"col_x","mapped_to":"Widget","confidence":80,"reasoning":"bogus type"},
		{"original":"amt","mapped_to":"Amount","confidence":150,"reasoning":"clamped"}
	]}`

	response, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}

	date, ok := response.Mappings["txn_dt"]
	if !ok || date.Canonical != schema.Date {
		t.Errorf("txn_dt mapping = %+v, want Date", date)
	}
	if date.Confidence != 0.95 {
		t.Errorf("txn_dt confidence = %v, want 0.95 (wire scale 0-100)", date.Confidence)
	}

	if _, ok := response.Mappings["val"]; ok {
		t.Error("null mapped_to must yield no mapping")
	}
	if _, ok := response.Mappings["col_x"]; ok {
		t.Error("unrecognized canonical type must be dropped, not fail the batch")
	}

	amt := response.Mappings["amt"]
	if amt.Confidence != 1.0 {
		t.Errorf("confidence above wire maximum must clamp to 1.0, got %v", amt.Confidence)
	}
}

func TestParseResponseMarkdownFences(t *testing.T) {
	raw := "```json\n{\"mappings\":[{\"original\":\"region\",\"mapped_to\":\"Region\",\"confidence\":88,\"reasoning\":\"direct\"}]}\n```"

	response, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse failed on fenced JSON: %v", err)
	}
	if response.Mappings["region"].Canonical != schema.Region {
		t.Error("fenced JSON must parse like plain JSON")
	}
}

func TestParseResponseMalformed(t *testing.T) {
	if _, err := ParseResponse("not json at all"); err == nil {
		t.Error("expected error for malformed response")
	}
}

func TestEscalateCacheHit(t *testing.T) {
	client := &fakeChatClient{
		response: `{"mappings":[{"original":"area","mapped_to":"Region","confidence":90,"reasoning":"geo"}]}`,
	}

	escalator, err := NewEscalatorWithClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewEscalatorWithClient failed: %v", err)
	}

	headers := []string{"area"}

	first := escalator.Escalate(context.Background(), headers, "sales.csv")
	second := escalator.Escalate(context.Background(), headers, "sales.csv")

	if client.calls != 1 {
		t.Fatalf("LLM calls = %d, want 1 (second request must hit cache)", client.calls)
	}
	if second.Mappings["area"].Canonical != schema.Region {
		t.Fatalf("cached mapping missing or wrong: %+v", second.Mappings)
	}
	if first.Mappings["area"] != second.Mappings["area"] {
		t.Error("cached response must be identical to original")
	}
}

func TestEscalateDifferentContextMisses(t *testing.T) {
	client := &fakeChatClient{
		response: `{"mappings":[{"original":"area","mapped_to":"Region","confidence":90,"reasoning":"geo"}]}`,
	}
	escalator, _ := NewEscalatorWithClient(testConfig(), client)

	escalator.Escalate(context.Background(), []string{"area"}, "a.csv")
	escalator.Escalate(context.Background(), []string{"area"}, "b.csv")

	if client.calls != 2 {
		t.Errorf("LLM calls = %d, want 2 for different file contexts", client.calls)
	}
}

func TestEscalateFailureDegradesGracefully(t *testing.T) {
	client := &fakeChatClient{err: fmt.Errorf("connection refused")}
	escalator, _ := NewEscalatorWithClient(testConfig(), client)

	response := escalator.Escalate(context.Background(), []string{"region_q"}, "")

	if response == nil {
		t.Fatal("escalation failure must return an empty response, not nil")
	}
	if len(response.Mappings) != 0 {
		t.Errorf("failed escalation must yield empty mappings, got %d", len(response.Mappings))
	}
}

func TestEscalateBatching(t *testing.T) {
	client := &fakeChatClient{response: `{"mappings":[]}`}
	cfg := testConfig()
	cfg.MaxColumnsPerRequest = 3
	escalator, _ := NewEscalatorWithClient(cfg, client)

	headers := []string{"a", "b", "c", "d", "e", "f", "g"}
	escalator.Escalate(context.Background(), headers, "")

	if client.calls != 3 {
		t.Errorf("LLM calls = %d, want 3 batches for 7 headers with batch size 3", client.calls)
	}
}

func TestEscalateEmptyHeaders(t *testing.T) {
	client := &fakeChatClient{response: `{"mappings":[]}`}
	escalator, _ := NewEscalatorWithClient(testConfig(), client)

	response := escalator.Escalate(context.Background(), nil, "")
	if client.calls != 0 {
		t.Error("no headers must mean no LLM calls")
	}
	if len(response.Mappings) != 0 {
		t.Error("empty input must yield empty response")
	}
}

func TestCacheKeyOrderIndependent(t *testing.T) {
	key1 := CacheKey([]string{"a", "b", "c"}, "ctx")
	key2 := CacheKey([]string{"c", "a", "b"}, "ctx")
	if key1 != key2 {
		t.Error("cache key must not depend on header order")
	}

	key3 := CacheKey([]string{"a", "b", "c"}, "other")
	if key1 == key3 {
		t.Error("cache key must depend on file context")
	}
}

func TestResponseCacheTTL(t *testing.T) {
	cache := NewResponseCache(50*time.Millisecond, 0)
	key := CacheKey([]string{"h"}, "")

	cache.Set(key, EmptyResponse())
	if _, ok := cache.Get(key); !ok {
		t.Fatal("fresh entry must be served")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := cache.Get(key); ok {
		t.Error("expired entry must not be served")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("cache stats = %+v, want 1 hit / 1 miss", stats)
	}
}

func TestBuildPromptNeverContainsValues(t *testing.T) {
	prompt := BuildPrompt([]string{"txn_dt", "sales_amt"}, "upload.csv")

	for _, header := range []string{"txn_dt", "sales_amt"} {
		if !strings.Contains(prompt, header) {
			t.Errorf("prompt must contain header %q", header)
		}
	}
	if !strings.Contains(prompt, "Transaction_ID") {
		t.Error("prompt must list canonical types")
	}
}
