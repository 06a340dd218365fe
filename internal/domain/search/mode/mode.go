package mode

// Mode is the retrieval strategy of one sub-query.
type Mode string

// Sub-query mode constants.
const (
	// Semantic runs a KNN vector search.
	Semantic Mode = "semantic"
	// Keyword runs a BM25 text search.
	Keyword Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Semantic || m == Keyword
}
