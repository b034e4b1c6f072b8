// Package statement splits SQL migration files into individual statements
// and classifies them.
package statement

import (
	"strings"
	"unicode"
)

// Kind classification of a statement by its leading keyword
type Kind string

const (
	KindCreate  Kind = "ddl-create"
	KindAlter   Kind = "ddl-alter"
	KindDrop    Kind = "ddl-drop"
	KindInsert  Kind = "dml-insert"
	KindUpdate  Kind = "dml-update"
	KindDelete  Kind = "dml-delete"
	KindSelect  Kind = "dml-select"
	KindControl Kind = "control"
	KindUnknown Kind = "unknown"
)

var keywordKinds = map[string]Kind{
	"CREATE":    KindCreate,
	"ALTER":     KindAlter,
	"RENAME":    KindAlter,
	"DROP":      KindDrop,
	"INSERT":    KindInsert,
	"REPLACE":   KindInsert,
	"UPDATE":    KindUpdate,
	"DELETE":    KindDelete,
	"SELECT":    KindSelect,
	"SHOW":      KindSelect,
	"DESCRIBE":  KindSelect,
	"DESC":      KindSelect,
	"EXPLAIN":   KindSelect,
	"USE":       KindControl,
	"SET":       KindControl,
	"START":     KindControl,
	"BEGIN":     KindControl,
	"COMMIT":    KindControl,
	"ROLLBACK":  KindControl,
	"SAVEPOINT": KindControl,
	"RELEASE":   KindControl,
	"LOCK":      KindControl,
	"UNLOCK":    KindControl,
}

// Statement a single executable statement from a migration file. It is
// created once by Split, consumed once by the executor and never mutated
// afterwards.
type Statement struct {
	Text       string   // SQL text without comments or terminator
	Kind       Kind     // Classification by leading keyword
	Line       int      // 1 based line the statement starts on
	Terminator string   // Terminator that was active when the statement ended
	Tolerable  []string // Extra messages that downgrade a failure of this statement, from tolerate annotations
}

// New returns a classified statement
func New(text string, line int) (s *Statement) {
	return &Statement{
		Text:       text,
		Kind:       Classify(text),
		Line:       line,
		Terminator: DefaultTerminator,
	}
}

// Classify returns the kind of the statement based on its first keyword
func Classify(text string) Kind {
	kw := firstKeyword(text)
	if k, ok := keywordKinds[kw]; ok {
		return k
	}
	return KindUnknown
}

// IsUse reports whether this is a USE <database> statement. Database selection
// belongs to the connection, so callers filter these out.
func (s *Statement) IsUse() bool {
	return firstKeyword(s.Text) == "USE"
}

// IsReadOnly reports whether the statement only reads (SELECT, SHOW, ...)
func (s *Statement) IsReadOnly() bool {
	return s.Kind == KindSelect
}

// IsDropIfExists reports whether the statement drops something only if it
// exists (DROP TABLE IF EXISTS, ALTER TABLE ... DROP COLUMN IF EXISTS)
func (s *Statement) IsDropIfExists() bool {
	flat := " " + strings.Join(strings.Fields(strings.ToUpper(s.Text)), " ") + " "
	if !strings.Contains(flat, " IF EXISTS ") {
		return false
	}
	return s.Kind == KindDrop || strings.Contains(flat, " DROP ")
}

// Summary returns the statement on a single line, truncated to max runes
func (s *Statement) Summary(max int) string {
	flat := strings.Join(strings.Fields(s.Text), " ")
	r := []rune(flat)
	if max <= 0 || len(r) <= max {
		return flat
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// firstKeyword returns the upper cased first word of the statement, looking
// inside a leading MySQL executable comment (/*!40101 SET ... */) and past
// opening parentheses
func firstKeyword(text string) string {
	t := strings.TrimSpace(text)
	for {
		switch {
		case strings.HasPrefix(t, "("):
			t = strings.TrimSpace(t[1:])
			continue
		case strings.HasPrefix(t, "/*!"):
			t = strings.TrimLeftFunc(t[3:], unicode.IsDigit)
			t = strings.TrimSpace(t)
			continue
		}
		break
	}

	end := strings.IndexFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end == -1 {
		end = len(t)
	}

	return strings.ToUpper(t[:end])
}
