// Package httpapi exposes the search pipeline over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prepgenie/pyqsearch/internal/domain"
	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
	"github.com/prepgenie/pyqsearch/internal/domain/search/filter"
	"github.com/prepgenie/pyqsearch/internal/domain/search/request"
	"github.com/prepgenie/pyqsearch/internal/metrics"
	healthuc "github.com/prepgenie/pyqsearch/internal/usecase/health"
	searchuc "github.com/prepgenie/pyqsearch/internal/usecase/search"
)

// Error response codes.
const (
	codeBadRequest           = "bad_request"
	codeInvalidQuery         = "invalid_query"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeIndexUnavailable     = "index_unavailable"
	codeInternalError        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the search API.
type Server struct {
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusBadGateway, codeIndexUnavailable),
	}
	return s
}

// searchRequestBody is the wire form of a search request.
type searchRequestBody struct {
	Query   string `json:"query"`
	Subject string `json:"subject,omitempty"`
	Year    int    `json:"year,omitempty"`
	Paper   string `json:"paper,omitempty"`
	Page    int    `json:"page,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// searchResultItem is one question in a search response.
type searchResultItem struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	Subject         string   `json:"subject"`
	Year            int      `json:"year"`
	Paper           string   `json:"paper"`
	Marks           int      `json:"marks,omitempty"`
	WordLimit       int      `json:"word_limit,omitempty"`
	Difficulty      string   `json:"difficulty,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
}

// searchResponse is the wire form of a page of results.
type searchResponse struct {
	Items   []searchResultItem `json:"items"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	HasMore bool               `json:"has_more"`
}

// SearchQuestions handles POST /api/v1/search.
func (s *Server) SearchQuestions(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	f, err := filter.New(body.Subject, body.Year, body.Paper)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	req, err := request.New(body.Query, f, body.Page, body.Limit)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		s.handleDomainError(w, err)
		return
	}

	result, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(result.Items))
	for i := range result.Items {
		items[i] = candidateToItem(&result.Items[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:   items,
		Page:    req.Page(),
		Limit:   req.Limit(),
		HasMore: result.HasMore,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func candidateToItem(c *candidate.Candidate) searchResultItem {
	meta := c.Metadata()
	return searchResultItem{
		ID:              c.ID(),
		Question:        c.SourceText(),
		Subject:         meta.Subject,
		Year:            meta.Year,
		Paper:           meta.Paper,
		Marks:           meta.Marks,
		WordLimit:       meta.WordLimit,
		Difficulty:      meta.Difficulty,
		Topics:          meta.Topics,
		SimilarityScore: c.EffectiveScore(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals. Validation errors carry their full detail; upstream
// failures collapse to the sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmbeddingUnavailable,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
