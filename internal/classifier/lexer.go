package classifier

import "strings"

type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenQuoted
	TokenString
	TokenNumber
	TokenPunct
	TokenSemicolon
)

// Token is a lexeme of the source text. Comments and whitespace produce no
// tokens. Start and End are byte offsets into the source.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// Ident returns the identifier a word or quoted token names, upper-cased.
func (t Token) Ident() string {
	switch t.Kind {
	case TokenWord:
		return strings.ToUpper(t.Text)
	case TokenQuoted:
		closer := closingQuote[t.Text[0]]
		inner := t.Text[1:]
		if strings.HasSuffix(inner, closer) {
			inner = inner[:len(inner)-1]
		}
		return strings.ToUpper(strings.ReplaceAll(inner, closer+closer, closer))
	default:
		return ""
	}
}

var closingQuote = map[byte]string{'"': `"`, '[': "]", '`': "`"}

// lexMode captures the quoting and comment conventions of one engine family.
type lexMode struct {
	name               string
	backslashEscapes   bool
	doubleQuoteString  bool
	dollarQuotes       bool
	nestedComments     bool
	hashComments       bool
	strictDashComments bool
	executableComments bool
	bracketIdents      bool
	backtickIdents     bool
}

var (
	// standardMode follows PostgreSQL: doubled quotes only, E'' strings,
	// dollar quoting, nested block comments. [ is a subscript here.
	standardMode = lexMode{
		name:           "standard",
		dollarQuotes:   true,
		nestedComments: true,
	}
	// tsqlMode follows SQL Server: [...] identifiers with ]] escapes, no
	// dollar quoting.
	tsqlMode = lexMode{
		name:           "tsql",
		nestedComments: true,
		bracketIdents:  true,
	}
	// mysqlMode follows MySQL: backslash escapes, "..." strings, # comments,
	// "-- " needs trailing whitespace, /*! ... */ bodies are executed.
	mysqlMode = lexMode{
		name:               "mysql",
		backslashEscapes:   true,
		doubleQuoteString:  true,
		hashComments:       true,
		strictDashComments: true,
		executableComments: true,
		backtickIdents:     true,
	}

	lexModes = []lexMode{standardMode, tsqlMode, mysqlMode}
)

// Lex tokenizes src using the standard conventions.
func Lex(src string) []Token {
	return lex(src, standardMode)
}

func lex(src string, m lexMode) []Token {
	var toks []Token
	n := len(src)
	i := 0
	for i < n {
		c := src[i]
		switch {
		case isSpace(c):
			i++

		case c == '-' && i+1 < n && src[i+1] == '-' && (!m.strictDashComments || i+2 >= n || isSpace(src[i+2])):
			i = skipLine(src, i+2)

		case c == '#' && m.hashComments:
			i = skipLine(src, i+1)

		case c == '/' && i+1 < n && src[i+1] == '*':
			if m.executableComments && i+2 < n && src[i+2] == '!' {
				i += 3
				for i < n && isDigit(src[i]) {
					i++
				}
				continue
			}
			i = skipBlockComment(src, i, m.nestedComments)

		case c == '*' && i+1 < n && src[i+1] == '/' && m.executableComments:
			i += 2

		case c == '\'':
			end := scanQuoted(src, i, '\'', m.backslashEscapes)
			toks = append(toks, Token{Kind: TokenString, Text: src[i:end], Start: i, End: end})
			i = end

		case c == '"':
			kind := TokenQuoted
			if m.doubleQuoteString {
				kind = TokenString
			}
			end := scanQuoted(src, i, '"', m.backslashEscapes && m.doubleQuoteString)
			toks = append(toks, Token{Kind: kind, Text: src[i:end], Start: i, End: end})
			i = end

		case (c == '[' && m.bracketIdents) || (c == '`' && m.backtickIdents):
			end := scanQuoted(src, i, closingQuote[c][0], false)
			toks = append(toks, Token{Kind: TokenQuoted, Text: src[i:end], Start: i, End: end})
			i = end

		case c == '$' && m.dollarQuotes:
			if end, ok := scanDollar(src, i); ok {
				toks = append(toks, Token{Kind: TokenString, Text: src[i:end], Start: i, End: end})
				i = end
				continue
			}
			toks = append(toks, Token{Kind: TokenPunct, Text: "$", Start: i, End: i + 1})
			i++

		case c == ';':
			toks = append(toks, Token{Kind: TokenSemicolon, Text: ";", Start: i, End: i + 1})
			i++

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			// E'...' carries C-style escapes.
			if i-start == 1 && (c == 'e' || c == 'E') && i < n && src[i] == '\'' {
				end := scanQuoted(src, i, '\'', true)
				toks = append(toks, Token{Kind: TokenString, Text: src[start:end], Start: start, End: end})
				i = end
				continue
			}
			toks = append(toks, Token{Kind: TokenWord, Text: src[start:i], Start: start, End: i})

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(src[i+1])):
			end := scanNumber(src, i)
			toks = append(toks, Token{Kind: TokenNumber, Text: src[i:end], Start: i, End: end})
			i = end

		default:
			toks = append(toks, Token{Kind: TokenPunct, Text: src[i : i+1], Start: i, End: i + 1})
			i++
		}
	}
	return toks
}

func skipLine(src string, i int) int {
	if idx := strings.IndexByte(src[i:], '\n'); idx >= 0 {
		return i + idx + 1
	}
	return len(src)
}

// skipBlockComment returns the offset after the comment opened at i. An
// unterminated comment swallows the rest of the input.
func skipBlockComment(src string, i int, nested bool) int {
	n := len(src)
	depth := 0
	for i < n {
		switch {
		case i+1 < n && src[i] == '/' && src[i+1] == '*':
			if depth == 0 || nested {
				depth++
			}
			i += 2
		case i+1 < n && src[i] == '*' && src[i+1] == '/':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return n
}

func scanQuoted(src string, start int, quote byte, backslash bool) int {
	n := len(src)
	i := start + 1
	for i < n {
		switch {
		case backslash && src[i] == '\\':
			i += 2
		case src[i] == quote:
			if i+1 < n && src[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return n
}

// scanDollar recognizes $tag$...$tag$ bodies. Positional parameters such as
// $1 are not dollar quotes.
func scanDollar(src string, start int) (int, bool) {
	n := len(src)
	j := start + 1
	if j < n && isDigit(src[j]) {
		return 0, false
	}
	for j < n && src[j] != '$' {
		if !isIdentPart(src[j]) {
			return 0, false
		}
		j++
	}
	if j >= n {
		return 0, false
	}
	delim := src[start : j+1]
	idx := strings.Index(src[j+1:], delim)
	if idx < 0 {
		return n, true
	}
	return j + 1 + idx + len(delim), true
}

// scanNumber stops at the first letter that is not an exponent marker, so
// "1drop" yields a number followed by a word.
func scanNumber(src string, i int) int {
	n := len(src)
	for i < n && (isDigit(src[i]) || src[i] == '.') {
		i++
	}
	if i < n && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < n && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < n && isDigit(src[j]) {
			for j < n && isDigit(src[j]) {
				j++
			}
			return j
		}
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
