package db

// Default FT index field names.
const (
	DefaultVectorField = "vector"
	DefaultTextField   = "__content"
)

// KNNQuery is the input for vector similarity search.
// An empty VectorField selects DefaultVectorField.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
// An empty TextField selects DefaultTextField.
type TextQuery struct {
	IndexName    string
	TextField    string
	Query        string
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
// Total is the number of matching documents, which may exceed len(Entries).
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is higher-is-better for both search kinds.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
