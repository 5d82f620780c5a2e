// Package classifier decides whether learner SQL is safe to hand to the
// sandbox: one statement, read-only leading keyword, and no forbidden word
// anywhere outside string literals and comments.
//
// It is a conservative pre-filter, not a parser. Syntax errors are left to the
// engine. The text is lexed under both standard (PostgreSQL / SQL Server) and
// MySQL quoting rules and is rejected if either reading finds a problem, so a
// literal that one engine would end early cannot hide a statement.
package classifier

import (
	"fmt"
	"strings"
)

type Reason string

const (
	ReasonEmptyQuery         Reason = "empty-query"
	ReasonMultipleStatements Reason = "multiple-statements"
	ReasonForbiddenKeyword   Reason = "forbidden-keyword"
)

// Verdict is the result of classifying one query text. When Allowed is true
// Text holds the original input unchanged; otherwise Reason is set.
type Verdict struct {
	Allowed bool
	Text    string
	Reason  Reason
	Keyword string
}

func (v Verdict) Message() string {
	switch v.Reason {
	case ReasonEmptyQuery:
		return "query is empty"
	case ReasonMultipleStatements:
		return "only a single statement is allowed"
	case ReasonForbiddenKeyword:
		if v.Keyword == "" {
			return "only SELECT/WITH queries are allowed"
		}
		return fmt.Sprintf("forbidden keyword: %s", v.Keyword)
	default:
		return ""
	}
}

var allowedLeading = map[string]bool{
	"SELECT": true,
	"WITH":   true,
}

// DefaultForbidden lists words that mutate data, change session or
// transaction state, reach outside the database, or advance non-transactional
// state such as sequences.
var DefaultForbidden = []string{
	// DML / DDL
	"INSERT", "UPDATE", "DELETE", "MERGE", "UPSERT", "TRUNCATE",
	"DROP", "ALTER", "CREATE", "RENAME", "INTO", "COPY",
	"GRANT", "REVOKE",
	// procedures
	"EXEC", "EXECUTE", "CALL", "PREPARE", "DEALLOCATE", "HANDLER",
	// transaction / session control
	"BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "RESET", "DISCARD",
	"LOCK", "UNLOCK", "LISTEN", "NOTIFY", "PRAGMA", "ATTACH", "DETACH",
	// maintenance and server control
	"VACUUM", "REINDEX", "CLUSTER", "REFRESH", "LOAD", "IMPORT",
	"BACKUP", "RESTORE", "DBCC", "BULK", "SHUTDOWN", "KILL",
	"OUTFILE", "DUMPFILE",
	// side-effecting built-ins
	"SET_CONFIG", "NEXTVAL", "SETVAL",
	"PG_TERMINATE_BACKEND", "PG_CANCEL_BACKEND", "PG_RELOAD_CONF", "PG_ROTATE_LOGFILE",
	"PG_READ_FILE", "PG_READ_BINARY_FILE", "PG_LS_DIR", "PG_STAT_FILE",
	"PG_ADVISORY_LOCK", "PG_ADVISORY_LOCK_SHARED",
	"LO_IMPORT", "LO_EXPORT", "LO_UNLINK", "DBLINK", "DBLINK_EXEC",
	"LOAD_FILE", "GET_LOCK",
	"OPENROWSET", "OPENDATASOURCE", "OPENQUERY", "OPENXML",
}

// forbiddenPrefixes catches SQL Server extended and system procedures.
var forbiddenPrefixes = []string{"XP_", "SP_"}

type Classifier struct {
	forbidden map[string]bool
}

// New returns a classifier using DefaultForbidden plus extra words.
func New(extra ...string) *Classifier {
	forbidden := make(map[string]bool, len(DefaultForbidden)+len(extra))
	for _, w := range DefaultForbidden {
		forbidden[w] = true
	}
	for _, w := range extra {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
			forbidden[w] = true
		}
	}
	return &Classifier{forbidden: forbidden}
}

// Classify inspects rawText and never modifies it.
func (c *Classifier) Classify(rawText string) Verdict {
	var worst Verdict
	for _, m := range lexModes {
		v := c.classifyTokens(lex(rawText, m))
		if !v.Allowed && (worst.Reason == "" || severity(v.Reason) > severity(worst.Reason)) {
			worst = v
		}
	}
	if worst.Reason != "" {
		return worst
	}
	return Verdict{Allowed: true, Text: rawText}
}

func severity(r Reason) int {
	switch r {
	case ReasonEmptyQuery:
		return 3
	case ReasonMultipleStatements:
		return 2
	case ReasonForbiddenKeyword:
		return 1
	default:
		return 0
	}
}

func (c *Classifier) classifyTokens(toks []Token) Verdict {
	stmts := statements(toks)
	switch {
	case len(stmts) == 0:
		return Verdict{Reason: ReasonEmptyQuery}
	case len(stmts) > 1:
		return Verdict{Reason: ReasonMultipleStatements}
	}

	stmt := stmts[0]
	lead := leadingToken(stmt)
	if lead.Kind != TokenWord || !allowedLeading[lead.Ident()] {
		v := Verdict{Reason: ReasonForbiddenKeyword}
		if lead.Kind == TokenWord {
			v.Keyword = lead.Ident()
		}
		return v
	}

	if stackedSelect(stmt) {
		return Verdict{Reason: ReasonMultipleStatements}
	}

	for _, tok := range stmt {
		if word := tok.Ident(); word != "" && c.isForbidden(word) {
			return Verdict{Reason: ReasonForbiddenKeyword, Keyword: word}
		}
	}
	return Verdict{Allowed: true}
}

func (c *Classifier) isForbidden(word string) bool {
	if c.forbidden[word] {
		return true
	}
	for _, p := range forbiddenPrefixes {
		if strings.HasPrefix(word, p) {
			return true
		}
	}
	return false
}

// continuesSelect lists words after which a SELECT belongs to the same
// statement.
var continuesSelect = map[string]bool{
	"UNION": true, "ALL": true, "DISTINCT": true,
	"INTERSECT": true, "EXCEPT": true, "MINUS": true,
}

// stackedSelect finds a SELECT that starts a second statement without a
// semicolon, which SQL Server runs as its own statement: "SELECT 1 SELECT 2".
// A SELECT may follow "(", a set operator, or the closing parenthesis of a
// CTE body in a statement that leads with WITH.
func stackedSelect(stmt []Token) bool {
	withLead := leadingToken(stmt).Ident() == "WITH"
	var (
		cteParens []bool
		closedCTE bool
		prev      Token
	)
	for i, tok := range stmt {
		switch {
		case tok.Kind == TokenPunct && tok.Text == "(":
			word := prev.Ident()
			cteParens = append(cteParens, withLead && (word == "AS" || word == "MATERIALIZED"))
		case tok.Kind == TokenPunct && tok.Text == ")":
			closedCTE = false
			if n := len(cteParens); n > 0 {
				closedCTE = cteParens[n-1]
				cteParens = cteParens[:n-1]
			}
		case tok.Kind == TokenWord && tok.Ident() == "SELECT" && i > 0:
			switch {
			case prev.Kind == TokenPunct && prev.Text == "(":
			case prev.Kind == TokenPunct && prev.Text == ")" && closedCTE:
			case prev.Kind == TokenWord && continuesSelect[prev.Ident()]:
			default:
				return true
			}
		}
		prev = tok
	}
	return false
}

// leadingToken skips opening parentheses: "(SELECT 1)" leads with SELECT.
func leadingToken(stmt []Token) Token {
	for _, tok := range stmt {
		if tok.Kind == TokenPunct && tok.Text == "(" {
			continue
		}
		return tok
	}
	return Token{Kind: TokenPunct}
}

// statements groups tokens between semicolons, dropping empty groups.
func statements(toks []Token) [][]Token {
	var (
		out [][]Token
		cur []Token
	)
	for _, tok := range toks {
		if tok.Kind == TokenSemicolon {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Split breaks a script into statements using the standard conventions.
// Comments inside a statement are kept; terminating semicolons are not.
func Split(script string) []string {
	stmts := statements(lex(script, standardMode))
	out := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		out = append(out, script[stmt[0].Start:stmt[len(stmt)-1].End])
	}
	return out
}
