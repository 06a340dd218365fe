package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hybridex/internal/db"
)

const vectorScoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Cosine distance is reported as similarity 1-distance, clamped at 0.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive")
	}

	field := cmpOr(q.VectorField, db.DefaultVectorField)
	args := []string{q.IndexName, fmt.Sprintf("*=>[KNN %d @%s $BLOB]", q.K, field)}
	// The distance is always returned: it is the score.
	args = appendReturn(args, append([]string{vectorScoreField}, q.ReturnFields...))
	args = append(args,
		"SORTBY", vectorScoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseSearchResult(raw, false, knnScore)
}

// SearchBM25 runs a BM25 text search via FT.SEARCH.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case q.Query == "":
		return nil, fmt.Errorf("query is required")
	case q.TopK <= 0:
		return nil, fmt.Errorf("topK must be positive")
	}

	field := cmpOr(q.TextField, db.DefaultTextField)
	args := []string{q.IndexName, fmt.Sprintf("@%s:(%s)", field, escapeQuery(q.Query))}
	if len(q.ReturnFields) > 0 {
		args = appendReturn(args, q.ReturnFields)
	}
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseSearchResult(raw, true, nil)
}

func (s *Store) ftSearch(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapSearchErr(err)
	}
	return raw, nil
}

func appendReturn(args, fields []string) []string {
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

func wrapSearchErr(err error) error {
	if re, ok := rueidis.IsRedisErr(err); ok {
		msg := strings.ToLower(re.Error())
		if strings.Contains(msg, "no such index") || strings.Contains(msg, "unknown index name") {
			return &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %s", db.ErrIndexNotFound, re.Error())}
		}
	}
	return &db.Error{Op: db.OpSearch, Err: err}
}

// --- Result parsing ---

// fieldScore derives an entry's score from its returned fields and removes the source field.
type fieldScore func(fields map[string]string) float64

func knnScore(fields map[string]string) float64 {
	raw, ok := fields[vectorScoreField]
	if !ok {
		return 0
	}
	delete(fields, vectorScoreField)
	distance, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return max(0, 1.0-distance)
}

// parseSearchResult reads an FT.SEARCH reply:
//
//	[total, key1, fields1, key2, fields2, ...]                 (withScores = false)
//	[total, key1, score1, fields1, key2, score2, fields2, ...] (withScores = true)
//
// Malformed hits are skipped.
func parseSearchResult(raw []rueidis.RedisMessage, withScores bool, score fieldScore) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return &db.SearchResult{}, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	stride := 2
	if withScores {
		stride = 3
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/stride)
	for i := 1; i+stride-1 < len(raw); i += stride {
		entry, ok := parseHit(raw[i:i+stride], withScores)
		if !ok {
			continue
		}
		if score != nil {
			entry.Score = score(entry.Fields)
		}
		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseHit(hit []rueidis.RedisMessage, withScores bool) (db.SearchEntry, bool) {
	key, err := hit[0].ToString()
	if err != nil {
		return db.SearchEntry{}, false
	}

	var entry db.SearchEntry
	entry.Key = key
	rest := hit[1:]
	if withScores {
		raw, err := rest[0].ToString()
		if err != nil {
			return db.SearchEntry{}, false
		}
		if entry.Score, err = strconv.ParseFloat(raw, 64); err != nil {
			return db.SearchEntry{}, false
		}
		rest = rest[1:]
	}

	fields, err := rest[0].ToArray()
	if err != nil {
		return db.SearchEntry{}, false
	}
	entry.Fields = parseFieldPairs(fields)
	return entry, true
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
