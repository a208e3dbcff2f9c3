// Package httpapi exposes the analysis pipeline over HTTP with a plain JSON
// API: one full-pipeline endpoint, one per analyst, a report-retrieval query
// endpoint, and the usual health/info surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fintel-ai/fintel/agents"
	"github.com/fintel-ai/fintel/providers/observability"
	"github.com/fintel-ai/fintel/providers/retrieval"
	"github.com/fintel-ai/fintel/workflow"
)

// Version is reported by the info endpoint.
const Version = "1.0.0"

// Server routes HTTP requests into the pipeline.
type Server struct {
	pipeline  *workflow.Pipeline
	retriever retrieval.Retriever
	reports   retrieval.Ingestor
	reportDir string
	logger    observability.Logger
}

// NewServer creates the HTTP surface. The retriever may be nil; the RAG
// query endpoint then reports the store as unavailable.
func NewServer(pipeline *workflow.Pipeline, retriever retrieval.Retriever, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	return &Server{
		pipeline:  pipeline,
		retriever: retriever,
		logger:    logger,
	}
}

// WithReportIngestion enables the RAG re-initialization endpoint: store is
// rebuilt from the report files under directory.
func (s *Server) WithReportIngestion(store retrieval.Ingestor, directory string) *Server {
	s.reports = store
	s.reportDir = directory
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze/{analyst}", s.handleAnalyzeSingle)
	mux.HandleFunc("POST /api/rag/query", s.handleRAGQuery)
	mux.HandleFunc("POST /api/rag/initialize", s.handleRAGInitialize)

	return mux
}

// ListenAndServe blocks serving the API until the context is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Info(ctx, "http server listening", observability.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

type analyzeRequest struct {
	Ticker string `json:"ticker"`
	Query  string `json:"query"`
}

func (r *analyzeRequest) validate() error {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.Ticker == "" {
		return errors.New("ticker is required")
	}
	if strings.TrimSpace(r.Query) == "" {
		r.Query = "请对这只股票进行全面分析"
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var request analyzeRequest
	if !s.decode(w, r, &request) {
		return
	}
	if err := request.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := s.pipeline.Run(r.Context(), request.Ticker, request.Query)
	if err != nil {
		// Cancellation still yields a partial response body.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.writeJSON(w, http.StatusOK, response)
			return
		}
		s.logger.Error(r.Context(), "analyze request failed", observability.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// analystRoutes maps URL path segments to node IDs.
var analystRoutes = map[string]string{
	"financial": agents.FinancialAnalystID,
	"market":    agents.MarketAnalystID,
	"valuation": agents.ValuationAnalystID,
}

func (s *Server) handleAnalyzeSingle(w http.ResponseWriter, r *http.Request) {
	analystID, ok := analystRoutes[r.PathValue("analyst")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown analyst")
		return
	}

	var request analyzeRequest
	if !s.decode(w, r, &request) {
		return
	}
	if err := request.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := s.pipeline.RunAnalyst(r.Context(), analystID, request.Ticker, request.Query)
	if err != nil {
		s.logger.Error(r.Context(), "single-analyst request failed", observability.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

type ragQueryRequest struct {
	Query  string `json:"query"`
	Ticker string `json:"ticker"`
	TopK   int    `json:"top_k"`
}

type ragQueryResponse struct {
	Query     string               `json:"query"`
	Documents []retrieval.Document `json:"documents"`
	Count     int                  `json:"count"`
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		s.writeError(w, http.StatusServiceUnavailable, "report store is not configured")
		return
	}

	var request ragQueryRequest
	if !s.decode(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if request.TopK <= 0 {
		request.TopK = agents.DefaultTopK
	}

	documents, err := s.retriever.Retrieve(r.Context(), request.Query, strings.ToUpper(strings.TrimSpace(request.Ticker)), request.TopK)
	if err != nil {
		s.logger.Error(r.Context(), "rag query failed", observability.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if documents == nil {
		documents = []retrieval.Document{}
	}

	s.writeJSON(w, http.StatusOK, ragQueryResponse{
		Query:     request.Query,
		Documents: documents,
		Count:     len(documents),
	})
}

// handleRAGInitialize rebuilds the report index from the configured report
// directory. A clearable store is emptied first so re-initialization replaces
// the index rather than appending duplicates.
func (s *Server) handleRAGInitialize(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil || s.reportDir == "" {
		s.writeError(w, http.StatusServiceUnavailable, "report ingestion is not configured")
		return
	}

	if clearable, ok := s.reports.(interface{ Clear(context.Context) error }); ok {
		if err := clearable.Clear(r.Context()); err != nil {
			s.logger.Error(r.Context(), "rag clear failed", observability.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	indexed, err := retrieval.IngestDirectory(r.Context(), s.reports, s.reportDir)
	if err != nil {
		s.logger.Error(r.Context(), "rag initialization failed", observability.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info(r.Context(), "rag store initialized",
		observability.String("directory", s.reportDir),
		observability.Int("chunks", indexed),
	)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "initialized",
		"indexed": indexed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ragInfo := map[string]any{"initialized": s.retriever != nil}
	switch store := s.retriever.(type) {
	case interface{ Len() int }:
		ragInfo["documents"] = store.Len()
	case interface {
		Count(context.Context) (int, error)
	}:
		if count, err := store.Count(r.Context()); err == nil {
			ragInfo["documents"] = count
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":    "fintel",
		"version": Version,
		"rag":     ragInfo,
		"agents": []string{
			agents.FinancialAnalystID,
			agents.MarketAnalystID,
			agents.ValuationAnalystID,
			agents.SupervisorID,
		},
		"endpoints": []string{
			"POST /api/analyze",
			"POST /api/analyze/{financial|market|valuation}",
			"POST /api/rag/query",
			"POST /api/rag/initialize",
			"GET /health",
			"GET /api/info",
		},
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "fintel multi-agent stock analysis API",
		"docs":    "/api/info",
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(context.Background(), "encode response failed", observability.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
