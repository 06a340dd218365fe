package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/combination"
	"github.com/kailas-cloud/hybridex/internal/domain/hits"
	"github.com/kailas-cloud/hybridex/internal/domain/rank"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/domain/shard"
	"github.com/kailas-cloud/hybridex/internal/domain/stream"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

// --- Mocks ---

type mockSearcher struct {
	page *result.Page
	err  error

	lastReq       request.Request
	lastResponses []*shard.Response
}

func (m *mockSearcher) Search(_ context.Context, req request.Request) (*result.Page, error) {
	m.lastReq = req
	return m.page, m.err
}

func (m *mockSearcher) Aggregate(_ context.Context, req request.Request, responses []*shard.Response) (*result.Page, error) {
	m.lastReq = req
	m.lastResponses = responses
	return m.page, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newRouter(s Searcher, h HealthChecker) http.Handler {
	r := chi.NewRouter()
	NewServer(s, h, zap.NewNop()).Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func samplePage() *result.Page {
	return &result.Page{
		TotalHits: hits.AtLeastOf(12),
		MaxScore:  0.93,
		Hits: []result.Result{
			result.New("doc:1", 0, 4, 0.8, nil),
			result.New("doc:2", 1, 0, math.NaN(), nil),
		},
		SubQueryHits: []int64{3, 2},
	}
}

// --- Search ---

func TestSearch_Success(t *testing.T) {
	ms := &mockSearcher{page: samplePage()}
	h := newRouter(ms, &mockHealth{})

	rr := do(t, h, http.MethodPost, "/v1/search", `{
		"query": "red shoes",
		"sub_queries": [{"kind": "semantic", "k": 20}, {"kind": "keyword", "text": "shoes"}],
		"size": 5,
		"technique": "rrf",
		"weights": [0.7, 0.3]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total.Value != 12 || resp.Total.Relation != "gte" {
		t.Errorf("total = %+v", resp.Total)
	}
	if resp.MaxScore == nil || *resp.MaxScore != 0.93 {
		t.Errorf("max_score = %v", resp.MaxScore)
	}
	if len(resp.Hits) != 2 || resp.Hits[0].ID != "doc:1" || resp.Hits[1].Shard != 1 {
		t.Errorf("hits = %+v", resp.Hits)
	}
	if resp.Hits[1].Score != nil {
		t.Errorf("NaN score should encode as null, got %v", *resp.Hits[1].Score)
	}

	req := ms.lastReq
	if req.Technique() != combination.RRF || req.Size() != 5 {
		t.Errorf("technique/size = %s/%d", req.Technique(), req.Size())
	}
	sqs := req.SubQueries()
	if len(sqs) != 2 || sqs[0].Mode() != mode.Semantic || sqs[0].K() != 20 || sqs[1].Text() != "shoes" {
		t.Errorf("unexpected sub-queries: %+v", sqs)
	}
	if sqs[0].Text() != "red shoes" {
		t.Errorf("semantic sub-query should inherit query text, got %q", sqs[0].Text())
	}
}

func TestSearch_SortSpec(t *testing.T) {
	page := &result.Page{
		TotalHits: hits.Exactly(1),
		MaxScore:  math.NaN(),
		Hits:      []result.Result{result.New("doc:1", 0, 0, 0, []rank.Value{rank.Int(10), rank.Null()})},
	}
	ms := &mockSearcher{page: page}
	h := newRouter(ms, &mockHealth{})

	rr := do(t, h, http.MethodPost, "/v1/search", `{
		"query": "q",
		"sort": [{"field": "price", "type": "int"}, {"field": "brand", "type": "keyword", "order": "desc"}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !ms.lastReq.Spec().IsSorted() || len(ms.lastReq.Spec().Fields()) != 2 {
		t.Errorf("expected two sort fields, got %+v", ms.lastReq.Spec().Fields())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MaxScore != nil {
		t.Errorf("expected null max_score, got %v", *resp.MaxScore)
	}
	if len(resp.Hits[0].Sort) != 2 || resp.Hits[0].Sort[0] != float64(10) || resp.Hits[0].Sort[1] != nil {
		t.Errorf("sort values = %v", resp.Hits[0].Sort)
	}
	if resp.SubQueryHits == nil {
		t.Error("sub_query_hits should be an empty array, not null")
	}
}

func TestSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"invalid json", `{`, ErrorCodeBadRequest},
		{"unknown field", `{"query":"q","limit":3}`, ErrorCodeBadRequest},
		{"missing query", `{}`, ErrorCodeValidationFailed},
		{"bad mode", `{"query":"q","sub_queries":[{"kind":"hybrid"}]}`, ErrorCodeValidationFailed},
		{"bad sort type", `{"query":"q","sort":[{"field":"f","type":"geo"}]}`, ErrorCodeValidationFailed},
		{"duplicate sort", `{"query":"q","sort":[{"field":"f","type":"int"},{"field":"f","type":"int"}]}`, ErrorCodeValidationFailed},
		{"weights count", `{"query":"q","weights":[1]}`, ErrorCodeValidationFailed},
		{"technique", `{"query":"q","technique":"harmonic_mean"}`, ErrorCodeUnsupportedTechnique},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newRouter(&mockSearcher{page: samplePage()}, &mockHealth{})
			rr := do(t, h, http.MethodPost, "/v1/search", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if got := decodeError(t, rr); got.Code != tc.code {
				t.Errorf("code = %s, want %s", got.Code, tc.code)
			}
		})
	}
}

func TestSearch_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"provider", fmt.Errorf("vectorize: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, ErrorCodeEmbeddingProviderError},
		{"no embedder", domain.ErrEmbeddingUnavailable, http.StatusBadRequest, ErrorCodeEmbeddingUnavailable},
		{"keyword", domain.NewShardError(0, domain.ErrKeywordSearchNotSupported), http.StatusNotImplemented, ErrorCodeKeywordSearchNotSupported},
		{"no shards", domain.ErrNoShards, http.StatusServiceUnavailable, ErrorCodeNoShards},
		{"timeout", domain.NewShardError(1, context.DeadlineExceeded), http.StatusGatewayTimeout, ErrorCodeTimeout},
		{"shard", domain.NewShardError(2, errors.New("conn reset")), http.StatusBadGateway, ErrorCodeShardFailure},
		{"malformed", domain.NewShardError(0, fmt.Errorf("decode: %w", stream.ErrMalformed)), http.StatusUnprocessableEntity, ErrorCodeMalformedStream},
		{"internal", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newRouter(&mockSearcher{err: tc.err}, &mockHealth{})
			rr := do(t, h, http.MethodPost, "/v1/search", `{"query":"q"}`)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			got := decodeError(t, rr)
			if got.Code != tc.code {
				t.Errorf("code = %s, want %s", got.Code, tc.code)
			}
			if tc.code == ErrorCodeShardFailure && strings.Contains(got.Message, "conn reset") {
				t.Errorf("internal cause leaked: %q", got.Message)
			}
		})
	}
}

// --- Aggregate ---

func TestAggregate_ParsesStreams(t *testing.T) {
	ms := &mockSearcher{page: samplePage()}
	h := newRouter(ms, &mockHealth{})

	rr := do(t, h, http.MethodPost, "/v1/aggregate", `{
		"technique": "arithmetic_mean",
		"size": 3,
		"shards": [{
			"shard": 1,
			"total": {"value": 40, "relation": "gte"},
			"max_score": 0.9,
			"keys": ["a", "b"],
			"stream": [
				{"type": "boundary"},
				{"type": "entry", "doc": 0, "score": 0.9},
				{"type": "delimiter"},
				{"type": "entry", "doc": 1, "score": 0.4},
				{"type": "boundary"}
			]
		}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if len(ms.lastResponses) != 1 {
		t.Fatalf("expected 1 shard response, got %d", len(ms.lastResponses))
	}
	resp := ms.lastResponses[0]
	if resp.Shard != 1 || resp.TotalHits != hits.AtLeastOf(40) || resp.MaxScore != 0.9 {
		t.Errorf("unexpected shard response: %+v", resp)
	}
	if len(resp.Stream) != 5 || resp.Stream[2].Kind() != stream.KindDelimiter {
		t.Fatalf("unexpected stream: %+v", resp.Stream)
	}
	e, ok := resp.Stream[3].Entry()
	if !ok || e.Doc != 1 || e.Score != 0.4 || e.IsSorted() {
		t.Errorf("unexpected entry: %+v", e)
	}
	if key, _ := resp.Key(1); key != "b" {
		t.Errorf("expected key b, got %q", key)
	}
	if ms.lastReq.Size() != 3 {
		t.Errorf("expected size 3, got %d", ms.lastReq.Size())
	}
}

func TestAggregate_SortValues(t *testing.T) {
	ms := &mockSearcher{page: samplePage()}
	h := newRouter(ms, &mockHealth{})

	rr := do(t, h, http.MethodPost, "/v1/aggregate", `{
		"sort": [{"field": "price", "type": "long"}, {"field": "brand", "type": "string"}],
		"shards": [{
			"shard": 0,
			"total": {"value": 1},
			"stream": [
				{"type": "boundary"},
				{"type": "entry", "doc": 7, "sort": [9007199254740993, null]},
				{"type": "boundary"}
			]
		}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := ms.lastResponses[0]
	if resp.TotalHits != hits.Exactly(1) {
		t.Errorf("missing relation should default to eq, got %v", resp.TotalHits)
	}
	if !math.IsNaN(resp.MaxScore) {
		t.Errorf("missing max_score should be NaN, got %v", resp.MaxScore)
	}
	e, _ := resp.Stream[1].Entry()
	if !math.IsNaN(e.Score) {
		t.Errorf("missing score should be NaN, got %v", e.Score)
	}
	if len(e.Fields) != 2 || e.Fields[0].AsInt() != 9007199254740993 || !e.Fields[1].IsNull() {
		t.Errorf("unexpected sort values: %v", e.Fields)
	}
}

func TestAggregate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"element type", `{"shards":[{"shard":0,"total":{"value":1},"stream":[{"type":"marker"}]}]}`},
		{"relation", `{"shards":[{"shard":0,"total":{"value":1,"relation":"lte"},"stream":[]}]}`},
		{"negative total", `{"shards":[{"shard":0,"total":{"value":-1},"stream":[]}]}`},
		{"sort value", `{"sort":[{"field":"p","type":"int"}],"shards":[{"shard":0,"total":{"value":1},"stream":[{"type":"entry","sort":[true]}]}]}`},
		{"from", `{"from":-1,"shards":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newRouter(&mockSearcher{page: samplePage()}, &mockHealth{})
			rr := do(t, h, http.MethodPost, "/v1/aggregate", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

// TestAggregate_EndToEnd runs the real coordinator behind the handler.
func TestAggregate_EndToEnd(t *testing.T) {
	svc := searchuc.New(nil, nil, searchuc.Options{})
	h := newRouter(svc, &mockHealth{})

	body := `{
		"shards": [
			{"shard": 1, "total": {"value": 5, "relation": "gte"}, "max_score": 0.95, "keys": ["c", "d"],
			 "stream": [{"type":"boundary"},{"type":"entry","doc":0,"score":0.7},{"type":"delimiter"},
			            {"type":"entry","doc":1,"score":0.95},{"type":"entry","doc":0,"score":0.2},{"type":"boundary"}]},
			{"shard": 0, "total": {"value": 2}, "max_score": 0.9, "keys": ["a", "b"],
			 "stream": [{"type":"boundary"},{"type":"entry","doc":0,"score":0.9},{"type":"entry","doc":1,"score":0.5},
			            {"type":"delimiter"},{"type":"entry","doc":1,"score":0.8},{"type":"boundary"}]}
		]
	}`
	rr := do(t, h, http.MethodPost, "/v1/aggregate", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total.Value != 7 || resp.Total.Relation != "gte" {
		t.Errorf("total = %+v, want 7 gte", resp.Total)
	}
	want := []string{"b", "d", "a", "c"}
	for i, id := range want {
		if resp.Hits[i].ID != id {
			t.Errorf("hit %d: got %s, want %s", i, resp.Hits[i].ID, id)
		}
	}
	if len(resp.SubQueryHits) != 2 || resp.SubQueryHits[0] != 3 {
		t.Errorf("sub_query_hits = %v", resp.SubQueryHits)
	}

	// 2 boundaries + 1 delimiter + 6 entries
	if len(resp.Stream) != 9 {
		t.Fatalf("expected 9 stream elements, got %d", len(resp.Stream))
	}
	first := resp.Stream[1]
	if resp.Stream[0].Type != "boundary" || first.Type != "entry" || first.Shard == nil || *first.Shard != 0 ||
		first.Score == nil || *first.Score != 0.9 {
		t.Errorf("unexpected head of merged stream: %+v %+v", resp.Stream[0], first)
	}
	if resp.Stream[4].Type != "delimiter" || resp.Stream[8].Type != "boundary" {
		t.Errorf("unexpected markers: %+v %+v", resp.Stream[4], resp.Stream[8])
	}
}

func TestAggregate_EndToEndMalformed(t *testing.T) {
	svc := searchuc.New(nil, nil, searchuc.Options{})
	h := newRouter(svc, &mockHealth{})

	body := `{"shards":[{"shard":0,"total":{"value":1},"stream":[{"type":"entry","doc":0,"score":1},{"type":"boundary"}]}]}`
	rr := do(t, h, http.MethodPost, "/v1/aggregate", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeError(t, rr); got.Code != ErrorCodeMalformedStream {
		t.Errorf("code = %s, want %s", got.Code, ErrorCodeMalformedStream)
	}
}

// --- Health / metrics ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		report := healthuc.Report{Status: tc.status, Checks: map[string]healthuc.CheckResult{"shard-0": healthuc.CheckOK}}
		h := newRouter(&mockSearcher{}, &mockHealth{report: report})

		rr := do(t, h, http.MethodGet, "/health", "")
		if rr.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.status, tc.want, rr.Code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != string(tc.status) || resp.Checks["shard-0"] != "ok" {
			t.Errorf("unexpected body: %+v", resp)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newRouter(&mockSearcher{}, &mockHealth{})
	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestDefaultTechnique(t *testing.T) {
	ms := &mockSearcher{page: samplePage()}
	r := chi.NewRouter()
	NewServer(ms, &mockHealth{}, zap.NewNop()).WithDefaultTechnique("rrf").Register(r)

	rr := do(t, r, http.MethodPost, "/v1/search", `{"query":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ms.lastReq.Technique() != combination.RRF {
		t.Errorf("expected rrf default, got %s", ms.lastReq.Technique())
	}

	rr = do(t, r, http.MethodPost, "/v1/search", `{"query":"q","technique":"arithmetic_mean"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ms.lastReq.Technique() != combination.ArithmeticMean {
		t.Errorf("explicit technique overridden: %s", ms.lastReq.Technique())
	}
}
