package assignment

import (
	"fmt"
	"strings"
	"time"
)

type Column struct {
	ColumnName string `json:"columnName" yaml:"columnName"`
	DataType   string `json:"dataType" yaml:"dataType"`
}

type SampleTable struct {
	TableName string   `json:"tableName" yaml:"tableName"`
	Columns   []Column `json:"columns" yaml:"columns"`
}

type Assignment struct {
	ID            string        `json:"id" yaml:"id"`
	Title         string        `json:"title" yaml:"title"`
	Question      string        `json:"question" yaml:"question"`
	Difficulty    string        `json:"difficulty" yaml:"difficulty"`
	SchemaContext string        `json:"schemaContext" yaml:"schemaContext"`
	SampleTables  []SampleTable `json:"sampleTables" yaml:"sampleTables"`
	CreatedAt     time.Time     `json:"createdAt" yaml:"createdAt"`
}

type ListQuery struct {
	Difficulty string
	Page       int
	PageSize   int
}

type ListResponse struct {
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Total    int          `json:"total"`
	Items    []Assignment `json:"items"`
}

// SchemaContext is what the sandbox side needs to know about an assignment:
// the physical schema its queries run in and the tables the learner sees.
type SchemaContext struct {
	Schema string        `json:"schema"`
	Tables []SampleTable `json:"tables"`
}

// Describe renders the tables one per line, e.g. "users(id INT, name VARCHAR(100))".
func (s SchemaContext) Describe() string {
	lines := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.ColumnName + " " + c.DataType
		}
		lines = append(lines, fmt.Sprintf("%s(%s)", t.TableName, strings.Join(cols, ", ")))
	}
	return strings.Join(lines, "\n")
}
