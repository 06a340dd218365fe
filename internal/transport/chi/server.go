package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/combination"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/domain/shard"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
	"github.com/kailas-cloud/hybridex/internal/logger"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	"github.com/kailas-cloud/hybridex/internal/usecase/merge"
)

// maxBodyBytes caps request bodies; aggregate calls carry whole shard streams.
const maxBodyBytes = 8 << 20

// Searcher runs hybrid searches and aggregates pre-computed shard streams.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (*result.Page, error)
	Aggregate(ctx context.Context, req request.Request, responses []*shard.Response) (*result.Page, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the hybrid search HTTP API.
type Server struct {
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	technique     string
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	// Order matters: the stream and kind errors are wrapped in shard failures.
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		detailHandler(combination.ErrUnsupportedTechnique, http.StatusBadRequest, ErrorCodeUnsupportedTechnique),
		detailHandler(stream.ErrMalformed, http.StatusUnprocessableEntity, ErrorCodeMalformedStream),
		detailHandler(rank.ErrKindMismatch, http.StatusUnprocessableEntity, ErrorCodeKindMismatch),
		detailHandler(merge.ErrGroupCountMismatch, http.StatusUnprocessableEntity, ErrorCodeGroupCountMismatch),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadRequest, ErrorCodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrKeywordSearchNotSupported,
			http.StatusNotImplemented, ErrorCodeKeywordSearchNotSupported),
		sentinelHandler(domain.ErrNoShards, http.StatusServiceUnavailable, ErrorCodeNoShards),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout),
		sentinelHandler(domain.ErrShardFailure, http.StatusBadGateway, ErrorCodeShardFailure),
	}
	return s
}

// WithDefaultTechnique sets the combination technique used when a request names none.
func (s *Server) WithDefaultTechnique(name string) *Server {
	s.technique = name
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/search", s.Search)
	r.Post("/v1/aggregate", s.Aggregate)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if body.Technique == "" {
		body.Technique = s.technique
	}
	req, err := searchRequestFromDTO(&body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	page, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, pageToDTO(page))
}

// Aggregate handles POST /v1/aggregate: it combines shard streams the caller already holds.
func (s *Server) Aggregate(w http.ResponseWriter, r *http.Request) {
	var body AggregateRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if body.Technique == "" {
		body.Technique = s.technique
	}
	req, responses, err := aggregateRequestFromDTO(&body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	page, err := s.search.Aggregate(r.Context(), req, responses)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, pageToDTO(page))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v) //nolint:wrapcheck // reported to the client as is
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	code := ErrorCodeValidationFailed
	if errors.Is(err, combination.ErrUnsupportedTechnique) {
		code = ErrorCodeUnsupportedTechnique
	}
	writeError(w, http.StatusBadRequest, code, err.Error())
}

// sentinelHandler returns an errorHandler that matches a single sentinel error and
// answers with the sentinel's own message, hiding the wrapped internals.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// detailHandler is like sentinelHandler but exposes the full error chain, for errors
// caused by caller input.
func detailHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContextOr(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
