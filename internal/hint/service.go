// Package hint asks a language model for a short nudge on a learner's query.
// Calls are bounded: a process-wide rate limit, a fixed per-attempt timeout
// and a fixed number of attempts.
package hint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/pkg/metrics"
)

var (
	ErrNotConfigured = errors.New("hint service is not configured")
	ErrRateLimited   = errors.New("too many hint requests, try again shortly")
	ErrUnavailable   = errors.New("failed to generate hint")
	ErrNotFound      = errors.New("assignment not found")
)

// SchemaLookup supplies the schema text for an assignment.
type SchemaLookup interface {
	LookupSchemaContext(ctx context.Context, assignmentID string) (*assignment.SchemaContext, error)
}

type Service struct {
	gen        Generator
	catalog    SchemaLookup
	limiter    *rate.Limiter
	attempts   int
	timeout    time.Duration
	configured bool
	log        *zap.Logger
}

// NewService builds the hint service. catalog may be nil.
func NewService(gen Generator, catalog SchemaLookup, conf configs.HintConfig, log *zap.Logger) *Service {
	limit := rate.Inf
	if conf.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(conf.RequestsPerMinute))
	}
	return &Service{
		gen:        gen,
		catalog:    catalog,
		limiter:    rate.NewLimiter(limit, max(1, conf.RequestsPerMinute/6)),
		attempts:   max(1, conf.MaxAttempts),
		timeout:    conf.Timeout,
		configured: conf.Endpoint != "",
		log:        log,
	}
}

func (s *Service) Hint(ctx context.Context, req HintRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if !s.configured {
		return "", ErrNotConfigured
	}

	schema := req.Schema
	if schema == "" && req.AssignmentID != "" && s.catalog != nil {
		sc, err := s.catalog.LookupSchemaContext(ctx, req.AssignmentID)
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			return "", ErrNotFound
		case err != nil:
			s.log.Warn("hint without schema, assignment lookup failed", zap.String("assignment", req.AssignmentID), zap.Error(err))
		default:
			schema = sc.Describe()
		}
	}

	if !s.limiter.Allow() {
		metrics.HintRequests.WithLabelValues("rate_limited").Inc()
		return "", ErrRateLimited
	}

	prompt := BuildPrompt(req.Question, req.SQL(), schema)
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		text, err := s.generate(ctx, prompt)
		if err == nil && text != "" {
			metrics.HintRequests.WithLabelValues("ok").Inc()
			return text, nil
		}
		if err == nil {
			err = errors.New("empty hint")
		}
		lastErr = err
		s.log.Warn("hint attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	metrics.HintRequests.WithLabelValues("failed").Inc()
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// generate runs one attempt under its own deadline, independent of any
// sandbox budget.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gen.Generate(attemptCtx, prompt)
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
