package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fintel-ai/fintel/providers/marketdata"
	"github.com/fintel-ai/fintel/providers/retrieval"
	"github.com/fintel-ai/fintel/providers/valuation"
	"github.com/fintel-ai/fintel/workflow"
)

// roleGenerator answers per role by matching the system prompt.
type roleGenerator struct{}

func (roleGenerator) GenerateWithSystem(_ context.Context, systemPrompt, _ string) (string, error) {
	switch {
	case strings.Contains(systemPrompt, "财务分析师"):
		return "财务结论", nil
	case strings.Contains(systemPrompt, "市场分析师"):
		return "市场结论", nil
	case strings.Contains(systemPrompt, "估值分析师"):
		return "估值结论", nil
	default:
		return `{"score": 7, "recommendation": "买入", "reasoning": "一致看多"}`, nil
	}
}

func newTestServer(t *testing.T) (*Server, *retrieval.MemoryStore) {
	t.Helper()

	store := retrieval.NewMemoryStore()
	store.AddText("AAPL", "Apple services revenue keeps growing")

	fetcher := marketdata.NewStaticFetcher(map[string]map[string]any{
		"AAPL": {"current_price": 255.0, "currency": "USD"},
	})

	pipeline, err := workflow.New(workflow.Dependencies{
		Generator:  roleGenerator{},
		Retriever:  store,
		Fetcher:    fetcher,
		Calculator: valuation.NewModelCalculator(fetcher),
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}

	return NewServer(pipeline, store, nil), store
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestAnalyzeEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	recorder := postJSON(t, handler, "/api/analyze", `{"ticker": "aapl", "query": "worth buying?"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}

	var response workflow.Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Ticker != "AAPL" {
		t.Errorf("ticker = %q, want normalized AAPL", response.Ticker)
	}
	if response.FinancialAnalysis != "财务结论" || response.MarketAnalysis != "市场结论" {
		t.Errorf("analyses = %q / %q", response.FinancialAnalysis, response.MarketAnalysis)
	}
	if response.FinalRecommendation == nil || response.FinalRecommendation.Recommendation != "买入" {
		t.Errorf("final recommendation = %+v", response.FinalRecommendation)
	}
}

func TestAnalyzeRequiresTicker(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := postJSON(t, server.Handler(), "/api/analyze", `{"query": "?"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestAnalyzeRejectsInvalidJSON(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := postJSON(t, server.Handler(), "/api/analyze", `{"ticker": `)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestSingleAnalystEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	recorder := postJSON(t, handler, "/api/analyze/market", `{"ticker": "AAPL"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}

	var response workflow.Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.MarketAnalysis != "市场结论" {
		t.Errorf("MarketAnalysis = %q", response.MarketAnalysis)
	}
	if response.FinancialAnalysis != "" {
		t.Error("single-analyst response carries other analysts' output")
	}

	recorder = postJSON(t, handler, "/api/analyze/astrology", `{"ticker": "AAPL"}`)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("unknown analyst status = %d, want 404", recorder.Code)
	}
}

func TestRAGQueryEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	recorder := postJSON(t, handler, "/api/rag/query", `{"query": "services revenue", "ticker": "AAPL"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}

	var response ragQueryResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Count != len(response.Documents) {
		t.Errorf("count = %d, documents = %d", response.Count, len(response.Documents))
	}
	if response.Count == 0 {
		t.Error("seeded store returned no documents")
	}

	recorder = postJSON(t, handler, "/api/rag/query", `{"ticker": "AAPL"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", recorder.Code)
	}
}

func TestRAGInitializeEndpoint(t *testing.T) {
	server, store := newTestServer(t)

	directory := t.TempDir()
	if err := os.WriteFile(filepath.Join(directory, "AAPL_2024_annual.md"), []byte("iPhone revenue grew 6% year over year"), 0o644); err != nil {
		t.Fatal(err)
	}
	server = server.WithReportIngestion(store, directory)
	handler := server.Handler()

	recorder := postJSON(t, handler, "/api/rag/initialize", `{}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body)
	}

	var response struct {
		Status  string `json:"status"`
		Indexed int    `json:"indexed"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Status != "initialized" || response.Indexed != 1 {
		t.Errorf("response = %+v", response)
	}

	// Initialization replaces the index: the document seeded by newTestServer
	// is gone and only the report file remains.
	if store.Len() != 1 {
		t.Errorf("store size = %d after re-initialization, want 1", store.Len())
	}

	// Repeated initialization must not accumulate duplicates.
	if recorder := postJSON(t, handler, "/api/rag/initialize", `{}`); recorder.Code != http.StatusOK {
		t.Fatalf("second initialize status = %d", recorder.Code)
	}
	if store.Len() != 1 {
		t.Errorf("store size = %d after repeat, want 1", store.Len())
	}
}

func TestRAGInitializeRequiresConfiguration(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := postJSON(t, server.Handler(), "/api/rag/initialize", `{}`)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", recorder.Code)
	}
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	for _, path := range []string{"/health", "/api/info", "/"} {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, recorder.Code)
		}
		if contentType := recorder.Header().Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			t.Errorf("GET %s content type = %q", path, contentType)
		}
	}
}
