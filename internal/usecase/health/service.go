package health

import (
	"context"
	"strconv"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates that no shard can answer.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	shards    []ShardPinger
	embedding EmbeddingChecker
}

// New creates a Service. Shards are reported as "shard-<index>"; embedding can be nil.
func New(shards []ShardPinger, embedding EmbeddingChecker) *Service {
	return &Service{shards: shards, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.shards)+1)

	down := 0
	for i, sh := range s.shards {
		name := "shard-" + strconv.Itoa(i)
		if err := sh.Ping(ctx); err != nil {
			checks[name] = CheckError
			down++
		} else {
			checks[name] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if down == len(s.shards) {
		return Report{Status: Unhealthy, Checks: checks}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
