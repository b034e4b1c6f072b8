package statement

import (
	"fmt"
	"strings"
)

const (
	// DefaultTerminator the statement terminator used until a DELIMITER directive changes it
	DefaultTerminator = ";"

	delimiterDirective = "DELIMITER"

	// TolerateAnnotation line comment attaching an extra tolerable message to
	// the next statement, e.g. "-- migrate:tolerate Unknown column"
	TolerateAnnotation = "migrate:tolerate"
)

// SplitParam options for Split. The zero value splits on ';' with standard
// SQL quoting rules.
type SplitParam struct {
	Terminator       string // Initial terminator, defaults to ';'
	HashComments     bool   // '#' starts a line comment (MySQL)
	DollarQuotes     bool   // $tag$ ... $tag$ quoting (Postgres)
	BackslashEscapes bool   // '\' escapes the next character inside string literals (MySQL)
}

// splitter single pass scanner over the source. Quoted literals, comments and
// dollar quoted bodies are consumed whole, so the main loop only ever looks
// at characters in the normal state.
type splitter struct {
	src            string
	p              SplitParam
	term           string
	dollarQuotes   bool
	buf            []byte
	line           int
	start          int // Line of the first content byte in buf, 0 if none yet
	lineHasContent bool
	tolerable      []string
	sList          []*Statement
	wList          []string
}

// Split converts the contents of a SQL file into its ordered list of
// statements. Comments are removed (except MySQL executable comments and
// optimizer hints), DELIMITER directives switch the active terminator and are
// never emitted, and empty statements are dropped. Malformed input never
// fails: the remainder is emitted as a best effort statement and a warning
// is returned describing the problem.
func Split(src string, p *SplitParam) (sList []*Statement, wList []string) {
	sp := &splitter{
		src:  src,
		line: 1,
	}
	if p != nil {
		sp.p = *p
	}
	if sp.p.Terminator == "" {
		sp.p.Terminator = DefaultTerminator
	}
	sp.term = sp.p.Terminator
	sp.dollarQuotes = sp.p.DollarQuotes

	sp.run()

	return sp.sList, sp.wList
}

func (sp *splitter) run() {
	src := sp.src
	i := 0

	for i < len(src) {
		if i == 0 || src[i-1] == '\n' {
			if next, ok := sp.delimiter(i); ok {
				i = next
				continue
			}
		}

		c := src[i]
		switch {
		case c == '\n':
			sp.newline()
			i++
		case strings.HasPrefix(src[i:], "/*!"), strings.HasPrefix(src[i:], "/*+"):
			// Executed by the server, keep it
			i = sp.copyUntil(i, 3, "*/", "executable comment")
		case strings.HasPrefix(src[i:], "/*"):
			i = sp.skipBlockComment(i)
		case sp.isLineComment(i):
			i = sp.lineComment(i)
		case c == '\'' || c == '"' || c == '`':
			i = sp.quoted(i, c)
		case c == '$' && sp.dollarQuotes:
			if tag := dollarTag(src[i:]); tag != "" {
				i = sp.copyUntil(i, len(tag), tag, "dollar quoted string")
			} else {
				sp.write(c)
				i++
			}
		case strings.HasPrefix(src[i:], sp.term):
			sp.emit()
			i += len(sp.term)
		default:
			sp.write(c)
			i++
		}
	}

	if sp.start != 0 {
		sp.warn("statement at line %d is not terminated by %q", sp.start, sp.term)
		sp.emit()
	}
}

// delimiter handles a DELIMITER directive at the start of a line. It returns
// the index of the end of the line and true if one was found.
func (sp *splitter) delimiter(i int) (next int, ok bool) {
	src := sp.src
	j := i
	for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
		j++
	}

	n := len(delimiterDirective)
	if len(src)-j <= n || !strings.EqualFold(src[j:j+n], delimiterDirective) {
		return 0, false
	}
	if src[j+n] != ' ' && src[j+n] != '\t' {
		return 0, false
	}

	eol := strings.IndexByte(src[j:], '\n')
	if eol == -1 {
		eol = len(src)
	} else {
		eol += j
	}

	fields := strings.Fields(src[j+n : eol])
	if len(fields) == 0 {
		sp.warn("DELIMITER directive without a token at line %d ignored", sp.line)
		return eol, true
	}

	if sp.start != 0 {
		sp.warn("statement at line %d is not terminated before DELIMITER at line %d",
			sp.start, sp.line)
		sp.emit()
	}

	sp.term = fields[0]
	// A $$ terminator and $$ quoting cannot both be active
	sp.dollarQuotes = sp.p.DollarQuotes && !strings.Contains(sp.term, "$")

	return eol, true
}

func (sp *splitter) isLineComment(i int) bool {
	src := sp.src
	if src[i] == '#' {
		return sp.p.HashComments
	}
	if !strings.HasPrefix(src[i:], "--") {
		return false
	}
	// MySQL requires whitespace after the double dash
	if !sp.p.HashComments || i+2 == len(src) {
		return true
	}
	switch src[i+2] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// lineComment skips a line comment, collecting a tolerate annotation when the
// comment sits on a line of its own
func (sp *splitter) lineComment(i int) int {
	src := sp.src
	end := strings.IndexByte(src[i:], '\n')
	if end == -1 {
		end = len(src)
	} else {
		end += i
	}

	body := strings.TrimLeft(src[i:end], "-#")
	body = strings.TrimSpace(body)
	if !ownLine(src, i) {
		return end
	}
	if rest, ok := strings.CutPrefix(body, TolerateAnnotation); ok {
		if rest = strings.TrimSpace(rest); rest != "" {
			sp.tolerable = append(sp.tolerable, rest)
		}
	}

	return end
}

// ownLine reports whether only whitespace precedes position i on its line
func ownLine(src string, i int) bool {
	start := strings.LastIndexByte(src[:i], '\n') + 1
	return strings.TrimSpace(src[start:i]) == ""
}

func (sp *splitter) skipBlockComment(i int) int {
	src := sp.src
	idx := strings.Index(src[i+2:], "*/")
	if idx == -1 {
		sp.warn("unterminated block comment starting at line %d", sp.line)
		return len(src)
	}

	end := i + 2 + idx + 2
	newlines := strings.Count(src[i:end], "\n")
	if newlines == 0 {
		// Keep tokens on either side apart
		if sp.lineHasContent {
			sp.buf = append(sp.buf, ' ')
		}
		return end
	}

	for n := 0; n < newlines; n++ {
		sp.newline()
	}

	return end
}

// quoted copies a quoted literal or identifier verbatim
func (sp *splitter) quoted(i int, q byte) int {
	src := sp.src
	startLine := sp.line

	for j := i + 1; j < len(src); j++ {
		c := src[j]
		if c == '\\' && q != '`' && sp.p.BackslashEscapes {
			j++
			continue
		}
		if c != q {
			continue
		}
		// Doubled quote is an escaped quote
		if j+1 < len(src) && src[j+1] == q {
			j++
			continue
		}
		sp.writeLiteral(src[i : j+1])
		return j + 1
	}

	sp.warn("unterminated quoted string starting at line %d", startLine)
	sp.writeLiteral(src[i:])
	return len(src)
}

// copyUntil copies src[i:] verbatim up to and including closer, which is
// searched for after the opening sequence
func (sp *splitter) copyUntil(i, openLen int, closer, what string) int {
	src := sp.src
	idx := strings.Index(src[i+openLen:], closer)
	if idx == -1 {
		sp.warn("unterminated %s starting at line %d", what, sp.line)
		sp.writeLiteral(src[i:])
		return len(src)
	}

	end := i + openLen + idx + len(closer)
	sp.writeLiteral(src[i:end])
	return end
}

// dollarTag returns the $tag$ opening s, or "" if s does not start with one
func dollarTag(s string) string {
	end := strings.IndexByte(s[1:], '$')
	if end == -1 {
		return ""
	}

	tag := s[:end+2]
	for i, r := range tag[1 : len(tag)-1] {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		// $1 is a positional parameter, not a tag
		if !isLetter && !(isDigit && i > 0) {
			return ""
		}
	}

	return tag
}

func (sp *splitter) write(c byte) {
	sp.buf = append(sp.buf, c)
	if c == ' ' || c == '\t' || c == '\r' {
		return
	}
	sp.lineHasContent = true
	if sp.start == 0 {
		sp.start = sp.line
	}
}

func (sp *splitter) writeLiteral(s string) {
	sp.buf = append(sp.buf, s...)
	sp.lineHasContent = true
	if sp.start == 0 {
		sp.start = sp.line
	}
	sp.line += strings.Count(s, "\n")
}

// newline keeps line breaks between content lines and drops lines that held
// only whitespace or comments
func (sp *splitter) newline() {
	sp.line++

	if sp.lineHasContent {
		sp.buf = append(trimRight(sp.buf), '\n')
		sp.lineHasContent = false
		return
	}

	sp.buf = sp.buf[:strings.LastIndexByte(string(sp.buf), '\n')+1]
}

// trimRight drops trailing blanks, which at this point are never inside a
// literal because literals are written whole
func trimRight(b []byte) []byte {
	for len(b) > 0 {
		switch b[len(b)-1] {
		case ' ', '\t', '\r':
			b = b[:len(b)-1]
			continue
		}
		break
	}
	return b
}

func (sp *splitter) emit() {
	text := strings.TrimSpace(string(sp.buf))
	start := sp.start

	sp.buf = sp.buf[:0]
	sp.start = 0
	sp.lineHasContent = false

	if text == "" {
		return
	}

	s := New(text, start)
	s.Terminator = sp.term
	s.Tolerable = sp.tolerable
	sp.tolerable = nil
	sp.sList = append(sp.sList, s)
}

func (sp *splitter) warn(format string, args ...interface{}) {
	sp.wList = append(sp.wList, fmt.Sprintf(format, args...))
}
