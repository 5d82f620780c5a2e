package sqlproxy

import (
	"errors"

	"sql-sandbox/internal/normalize"
)

type QueryRequest struct {
	Query         string `json:"query"`
	SchemaContext string `json:"schemaContext,omitempty"`
	AssignmentID  string `json:"assignmentId,omitempty"`
}

// Validate only checks the shape; empty text is left to the classifier so
// it is reported as empty-query.
func (r *QueryRequest) Validate() error {
	if len(r.Query) > maxQueryBytes {
		return errors.New("query is too long")
	}
	return nil
}

const maxQueryBytes = 64 << 10

type QueryResponse struct {
	Columns        []string           `json:"columns"`
	Rows           []normalize.Record `json:"rows"`
	RowCount       int                `json:"rowCount"`
	Truncated      bool               `json:"truncated"`
	TotalRows      *int               `json:"totalRows,omitempty"`
	TotalRowsExact bool               `json:"totalRowsExact"`
	DurationMs     int64              `json:"durationMs"`
}

type ErrorResponse struct {
	ErrorKind ErrorKind `json:"errorKind"`
	Reason    string    `json:"reason"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error"`
}

func NewQueryResponse(r *Result) QueryResponse {
	out := QueryResponse{
		Columns:        r.Columns,
		Rows:           r.Records,
		RowCount:       len(r.Records),
		Truncated:      r.Truncated,
		TotalRowsExact: r.TotalExact,
		DurationMs:     r.Duration.Milliseconds(),
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	if out.Rows == nil {
		out.Rows = []normalize.Record{}
	}
	if r.Truncated {
		total := r.TotalRows
		out.TotalRows = &total
	}
	return out
}

func NewErrorResponse(e *Error) ErrorResponse {
	return ErrorResponse{ErrorKind: e.Kind, Reason: e.Reason, Code: e.Code, Error: e.Reason}
}
