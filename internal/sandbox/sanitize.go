package sandbox

import (
	"regexp"
	"strings"
)

const maxMessageLen = 500

var (
	rePassword   = regexp.MustCompile(`(?i)(password|pwd)(\s*=\s*)([^\s;]+)`)
	reToken      = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._-]+)`)
	reDSNPass    = regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://)([^:/@\s]+):([^@\s]+)(@)`)
	reUnixPath   = regexp.MustCompile(`(^|[\s(=,:'])/[A-Za-z0-9._-]+(?:/[A-Za-z0-9._-]+)+/?`)
	reQuoted     = regexp.MustCompile(`"[^"]*"`)
	reQuotedPath = regexp.MustCompile(`^"/[A-Za-z0-9._-]+(?:/[A-Za-z0-9._-]+)+/?"$`)
	reWinPath    = regexp.MustCompile(`[A-Za-z]:\\(?:[^\\\s"']+\\)*[^\\\s"']*`)
	reSpace      = regexp.MustCompile(`\s+`)
)

// Sanitize makes an engine message safe to return: credentials and file
// system paths are masked, the text is folded onto one line and bounded.
func Sanitize(msg string) string {
	out := rePassword.ReplaceAllString(msg, "$1$2***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reDSNPass.ReplaceAllString(out, "$1*:*$4")
	out = maskUnixPaths(out)
	out = reWinPath.ReplaceAllString(out, "<path>")
	out = strings.TrimSpace(reSpace.ReplaceAllString(out, " "))
	if len(out) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !isRuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "..."
	}
	return out
}

// maskUnixPaths masks absolute paths. Double-quoted text names learner
// objects and values, so it is masked only when all of it is a path.
func maskUnixPaths(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range reQuoted.FindAllStringIndex(s, -1) {
		b.WriteString(reUnixPath.ReplaceAllString(s[last:loc[0]], "$1<path>"))
		quoted := s[loc[0]:loc[1]]
		if reQuotedPath.MatchString(quoted) {
			quoted = `"<path>"`
		}
		b.WriteString(quoted)
		last = loc[1]
	}
	b.WriteString(reUnixPath.ReplaceAllString(s[last:], "$1<path>"))
	return b.String()
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
