package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"schemamapper/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	t.Setenv("KNOWLEDGE_DB_PATH", ":memory:")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GIN_MODE", "release")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { srv.kb.Close() })
	return srv
}

// uploadCSV выполняет multipart-загрузку CSV и возвращает разобранный ответ
func uploadCSV(t *testing.T, srv *Server, csv string) map[string]interface{} {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write([]byte(csv))
	writer.WriteField("user_id", "u1")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode analyze response: %v", err)
	}
	return response
}

const testCSV = "txn_dt,zzqx\n" +
	"2024-01-15,north\n" +
	"2024-02-20,south\n" +
	"2024-03-25,west\n"

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	response := uploadCSV(t, srv, testCSV)

	if response["session_id"] == "" {
		t.Error("analyze response must contain a session id")
	}

	autoApplied, ok := response["auto_applied"].(map[string]interface{})
	if !ok || autoApplied["txn_dt"] != "Date" {
		t.Errorf("txn_dt must be auto-applied as Date, got %v", response["auto_applied"])
	}
}

func TestAnalyzeRequiresFile(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/analyze", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d, want 400", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	response := uploadCSV(t, srv, testCSV)
	sessionID := response["session_id"].(string)

	// Состояние свежей сессии
	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/sessions/"+sessionID, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}

	var state map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &state)
	if state["complete"] != false {
		t.Error("fresh session with pending columns must not be complete")
	}

	// Выбор пользователя по неоднозначной колонке
	selectBody := `{"header":"zzqx","selected":"Region"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/mapping/sessions/"+sessionID+"/select",
		strings.NewReader(selectBody))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var selectResp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &selectResp)
	if selectResp["complete"] != true {
		t.Error("session must be complete after the last selection")
	}

	// Финализация возвращает итоговый маппинг
	req = httptest.NewRequest(http.MethodPost, "/api/v1/mapping/sessions/"+sessionID+"/finalize", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var final map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &final)
	mappings := final["mappings"].(map[string]interface{})
	if mappings["txn_dt"] != "Date" || mappings["zzqx"] != "Region" {
		t.Errorf("final mappings = %v", mappings)
	}

	// Завершенная сессия удалена
	req = httptest.NewRequest(http.MethodGet, "/api/v1/mapping/sessions/"+sessionID, nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("finalized session status = %d, want 404", rec.Code)
	}
}

func TestSelectValidation(t *testing.T) {
	srv := newTestServer(t)

	response := uploadCSV(t, srv, testCSV)
	sessionID := response["session_id"].(string)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"Unknown canonical type", `{"header":"zzqx","selected":"Widget"}`, http.StatusBadRequest},
		{"Unknown column", `{"header":"missing","selected":"Region"}`, http.StatusBadRequest},
		{"Missing header", `{"selected":"Region"}`, http.StatusBadRequest},
		{"Skip known column", `{"header":"zzqx","skip":true}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/sessions/"+sessionID+"/select",
				strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestFinalizeIncompleteSession(t *testing.T) {
	srv := newTestServer(t)

	response := uploadCSV(t, srv, testCSV)
	sessionID := response["session_id"].(string)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/sessions/"+sessionID+"/finalize", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("finalize incomplete status = %d, want 409", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}

	var stats map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if _, ok := stats["knowledge_base"]; !ok {
		t.Error("stats must include knowledge base aggregates")
	}
}

func TestFeedbackReportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feedback/report", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("feedback report status = %d", rec.Code)
	}
}

func TestAdoptProposalEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := `{"name":"auto_map_threshold","current":0.90,"proposed":0.92}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback/adopt", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("adopt status = %d, body = %s", rec.Code, rec.Body.String())
	}

	thresholds, err := srv.kb.ActiveThresholds()
	if err != nil {
		t.Fatalf("ActiveThresholds failed: %v", err)
	}
	if thresholds["auto_map_threshold"] != 0.92 {
		t.Errorf("adopted threshold = %v, want 0.92", thresholds["auto_map_threshold"])
	}
}

func TestDecayEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge/decay", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("decay status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "decayed") {
		t.Errorf("unexpected decay body: %s", rec.Body.String())
	}
}

func TestConsensusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// Полный цикл одной загрузки наполняет базу знаний
	response := uploadCSV(t, srv, testCSV)
	sessionID := response["session_id"].(string)

	selectBody := `{"header":"zzqx","selected":"Region"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/sessions/"+sessionID+"/select",
		strings.NewReader(selectBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/mapping/sessions/"+sessionID+"/finalize", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/consensus?header=zzqx", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("consensus status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var consensus map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &consensus)
	counts, ok := consensus["consensus"].(map[string]interface{})
	if !ok || counts["Region"] != float64(1) {
		t.Errorf("consensus for zzqx = %v, want Region confirmed by 1 user", consensus)
	}

	// Без параметра header запрос отклоняется
	req = httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/consensus", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing header param status = %d, want 400", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("every response must carry a request ID")
	}

	// Переданный клиентом request ID сохраняется
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Errorf("request ID = %q, want client-supplied", got)
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	srv := newTestServer(t)

	for _, route := range []string{
		"/api/v1/mapping/sessions/missing",
	} {
		req := httptest.NewRequest(http.MethodGet, route, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", route, rec.Code)
		}
	}
}
