// Package sqlproxy is the entry point for learner SQL: it classifies the text,
// runs it in the sandbox and normalizes the rows, mapping every failure onto
// one of three error kinds.
package sqlproxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/classifier"
	"sql-sandbox/internal/normalize"
	"sql-sandbox/internal/sandbox"
	"sql-sandbox/pkg/metrics"
)

type ErrorKind string

const (
	InvalidQuery  ErrorKind = "InvalidQuery"
	QueryFailed   ErrorKind = "QueryFailed"
	QueryTimedOut ErrorKind = "QueryTimedOut"
)

const timedOutReason = "query exceeded the time limit and was cancelled"

// Error is the only error Run returns. Code is a classifier reason for
// InvalidQuery and the engine's code for QueryFailed. Reason is safe to show.
type Error struct {
	Kind   ErrorKind
	Code   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

var ErrUnknownSchema = errors.New("unknown schema context")

// SchemaLookup resolves an assignment to the schema its queries run in.
type SchemaLookup interface {
	LookupSchemaContext(ctx context.Context, assignmentID string) (*assignment.SchemaContext, error)
}

type Query struct {
	Text          string
	SchemaContext string
	AssignmentID  string
}

type Result struct {
	Columns   []string
	Records   []normalize.Record
	Truncated bool
	// TotalRows equals len(Records) unless Truncated.
	TotalRows  int
	TotalExact bool
	Duration   time.Duration
}

type Service struct {
	classifier *classifier.Classifier
	sandbox    sandbox.Executor
	catalog    SchemaLookup
	conf       configs.SandboxConfig
	log        *zap.Logger
}

// NewService wires the pipeline. catalog may be nil, in which case requests
// naming an assignment are rejected.
func NewService(cl *classifier.Classifier, exec sandbox.Executor, catalog SchemaLookup, conf configs.SandboxConfig, log *zap.Logger) *Service {
	return &Service{classifier: cl, sandbox: exec, catalog: catalog, conf: conf, log: log}
}

// Run takes one query through classify, execute and normalize. It never
// retries.
func (s *Service) Run(ctx context.Context, q Query) (*Result, error) {
	verdict := s.classifier.Classify(q.Text)
	if !verdict.Allowed {
		metrics.ClassifierRejections.WithLabelValues(string(verdict.Reason)).Inc()
		s.log.Debug("query rejected",
			zap.String("reason", string(verdict.Reason)),
			zap.String("keyword", verdict.Keyword),
			zap.Int("length", len(q.Text)),
		)
		return nil, &Error{Kind: InvalidQuery, Code: string(verdict.Reason), Reason: verdict.Message()}
	}

	schema, err := s.resolveSchema(ctx, q)
	if err != nil {
		return nil, err
	}

	out := s.sandbox.Execute(ctx, verdict.Text, schema, s.conf.TimeBudget, s.conf.RowCap)
	switch out.Kind {
	case sandbox.OutcomeTimeout:
		return nil, &Error{Kind: QueryTimedOut, Code: "timeout", Reason: timedOutReason}
	case sandbox.OutcomeEngineError:
		return nil, &Error{Kind: QueryFailed, Code: out.Err.Code, Reason: out.Err.Message}
	}

	records, err := normalize.Normalize(out.Rows)
	if err != nil {
		s.log.Error("result could not be normalized", zap.Error(err))
		reason := "unsupported column type in result"
		if errors.Is(err, normalize.ErrUnmappedType) {
			reason = "unsupported column type: " + err.Error()
		}
		return nil, &Error{Kind: QueryFailed, Code: "unsupported-type", Reason: reason}
	}

	result := &Result{
		Columns:    out.Rows.Names(),
		Records:    records,
		TotalRows:  len(records),
		TotalExact: true,
		Duration:   out.Duration,
	}
	if out.Kind == sandbox.OutcomeRowLimitExceeded {
		result.Truncated = true
		result.TotalRows = out.TotalRows
		result.TotalExact = out.TotalExact
	}
	return result, nil
}

// resolveSchema picks the schema in order: explicit schemaContext, the
// assignment's schema, the configured default. The result must be on the
// allow-list.
func (s *Service) resolveSchema(ctx context.Context, q Query) (string, error) {
	schema := q.SchemaContext
	if schema == "" && q.AssignmentID != "" {
		if s.catalog == nil {
			return "", &Error{Kind: InvalidQuery, Code: "unknown-assignment", Reason: "assignments are not available"}
		}
		sc, err := s.catalog.LookupSchemaContext(ctx, q.AssignmentID)
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			return "", &Error{Kind: InvalidQuery, Code: "unknown-assignment", Reason: "assignment not found"}
		case err != nil:
			s.log.Error("assignment lookup failed", zap.String("assignment", q.AssignmentID), zap.Error(err))
			return "", &Error{Kind: QueryFailed, Code: sandbox.CodeUnavailable, Reason: "assignment catalog is unavailable"}
		}
		schema = sc.Schema
	}
	if schema == "" {
		schema = s.conf.DefaultSchema
	}
	if !s.conf.HasSchema(schema) {
		return "", &Error{Kind: InvalidQuery, Code: "unknown-schema", Reason: fmt.Sprintf("%v: %s", ErrUnknownSchema, schema)}
	}
	return schema, nil
}
