package chi

// ErrorCode is the machine-readable error identifier of an API error response.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest                ErrorCode = "bad_request"
	ErrorCodeUnauthorized              ErrorCode = "unauthorized"
	ErrorCodeValidationFailed          ErrorCode = "validation_failed"
	ErrorCodeUnsupportedTechnique      ErrorCode = "unsupported_technique"
	ErrorCodeMalformedStream           ErrorCode = "malformed_stream"
	ErrorCodeKindMismatch              ErrorCode = "kind_mismatch"
	ErrorCodeGroupCountMismatch        ErrorCode = "group_count_mismatch"
	ErrorCodeEmbeddingUnavailable      ErrorCode = "embedding_unavailable"
	ErrorCodeEmbeddingProviderError    ErrorCode = "embedding_provider_error"
	ErrorCodeKeywordSearchNotSupported ErrorCode = "keyword_search_not_supported"
	ErrorCodeNoShards                  ErrorCode = "no_shards"
	ErrorCodeShardFailure              ErrorCode = "shard_failure"
	ErrorCodeTimeout                   ErrorCode = "timeout"
	ErrorCodeInternalError             ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SortField selects one sort key; type is int, float or string.
type SortField struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Order string `json:"order,omitempty"`
}

// SubQuery is one retrieval of a hybrid search.
type SubQuery struct {
	Kind   string    `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
	K      int       `json:"k,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query      string      `json:"query"`
	SubQueries []SubQuery  `json:"sub_queries,omitempty"`
	Size       int         `json:"size,omitempty"`
	From       int         `json:"from,omitempty"`
	Technique  string      `json:"technique,omitempty"`
	Weights    []float64   `json:"weights,omitempty"`
	Sort       []SortField `json:"sort,omitempty"`
}

// TotalHits is a hit count with its relation (eq or gte).
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// Element is one item of a shard stream. Type is boundary, delimiter or entry.
// Shard is only set on merged streams returned by POST /v1/aggregate.
type Element struct {
	Type  string   `json:"type"`
	Shard *int     `json:"shard,omitempty"`
	Doc   int      `json:"doc,omitempty"`
	Score *float64 `json:"score,omitempty"`
	Sort  []any    `json:"sort,omitempty"`
}

// ShardResult is one shard's answer as submitted to POST /v1/aggregate.
type ShardResult struct {
	Shard    int       `json:"shard"`
	Total    TotalHits `json:"total"`
	MaxScore *float64  `json:"max_score,omitempty"`
	Keys     []string  `json:"keys,omitempty"`
	Stream   []Element `json:"stream"`
}

// AggregateRequest is the body of POST /v1/aggregate.
type AggregateRequest struct {
	Sort      []SortField   `json:"sort,omitempty"`
	Technique string        `json:"technique,omitempty"`
	Weights   []float64     `json:"weights,omitempty"`
	Size      int           `json:"size,omitempty"`
	From      int           `json:"from,omitempty"`
	Shards    []ShardResult `json:"shards"`
}

// Hit is one combined result.
type Hit struct {
	ID    string   `json:"id,omitempty"`
	Shard int      `json:"shard"`
	Doc   int      `json:"doc"`
	Score *float64 `json:"score"`
	Sort  []any    `json:"sort,omitempty"`
}

// SearchResponse is the body of a successful search or aggregate call.
type SearchResponse struct {
	Total        TotalHits `json:"total"`
	MaxScore     *float64  `json:"max_score"`
	Hits         []Hit     `json:"hits"`
	SubQueryHits []int64   `json:"sub_query_hits"`
	Stream       []Element `json:"stream,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
