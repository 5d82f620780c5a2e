package hint

import (
	"errors"
	"strings"
)

type HintRequest struct {
	Question string `json:"question"`
	// Query and UserQuery are the same field; older clients send userQuery.
	Query        string `json:"query"`
	UserQuery    string `json:"userQuery"`
	Schema       string `json:"schema,omitempty"`
	AssignmentID string `json:"assignmentId,omitempty"`
}

func (r *HintRequest) SQL() string {
	if r.UserQuery != "" {
		return r.UserQuery
	}
	return r.Query
}

func (r *HintRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" || strings.TrimSpace(r.SQL()) == "" {
		return errors.New("Question and query are required")
	}
	if len(r.Question)+len(r.SQL())+len(r.Schema) > maxPromptInput {
		return errors.New("question, query and schema are too long")
	}
	return nil
}

const maxPromptInput = 32 << 10

type HintResponse struct {
	Hint string `json:"hint"`
}
