// Package executor runs migration statements one at a time and classifies
// each result as applied, tolerated, skipped or fatal.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/Skyrin/go-migrate/statement"
	"github.com/rs/zerolog/log"
)

const (
	ECode040101 = e.Code0401 + "01"
	ECode040102 = e.Code0401 + "02"
)

// Outcome the classification of an executed statement
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeTolerated    Outcome = "skipped-tolerated"
	OutcomeVerification Outcome = "skipped-verification"
	OutcomeFatal        Outcome = "fatal"
)

// DefaultTolerable error message patterns meaning the object is already in
// the desired state
var DefaultTolerable = []string{
	"already exists",
	"Duplicate column",
	"Duplicate key name",
	"Duplicate entry",
	"Duplicate foreign key constraint name",
}

// Param executor options
type Param struct {
	// Tolerable case insensitive regular expressions matched against the
	// database error message, in addition to DefaultTolerable
	Tolerable []string
	// NoDefaults do not use DefaultTolerable
	NoDefaults bool
}

// Executor executes statements sequentially on a single connection
type Executor struct {
	db          *sql.Connection
	patternList []*regexp.Regexp
}

// Result the outcome of executing one statement
type Result struct {
	Statement    *statement.Statement
	Outcome      Outcome
	Err          error // Set for tolerated and fatal outcomes
	RowsAffected int64
	Duration     time.Duration
}

// New initializes an executor, compiling the tolerable patterns
func New(db *sql.Connection, p *Param) (ex *Executor, err error) {
	if p == nil {
		p = &Param{}
	}

	ex = &Executor{db: db}

	var pList []string
	if !p.NoDefaults {
		pList = append(pList, DefaultTolerable...)
	}
	pList = append(pList, p.Tolerable...)

	for _, pattern := range pList {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, e.W(err, ECode040101, fmt.Sprintf("pattern: %s", pattern))
		}
		ex.patternList = append(ex.patternList, re)
	}

	return ex, nil
}

// Execute runs the statement and classifies the result. Read only statements
// are not run: they are verification queries left in the file for a human.
// Database errors never escape, they are returned classified in the result.
func (ex *Executor) Execute(ctx context.Context, s *statement.Statement) (r *Result) {
	r = &Result{Statement: s}

	if s.IsReadOnly() {
		r.Outcome = OutcomeVerification
		return r
	}

	start := time.Now()
	res, err := ex.db.Exec(ctx, s.Text)
	r.Duration = time.Since(start)

	if err != nil {
		r.Err = e.W(err, ECode040102, fmt.Sprintf("line: %d", s.Line))
		r.Outcome = OutcomeFatal
		if ex.IsTolerable(s, err) {
			r.Outcome = OutcomeTolerated
		}

		log.Debug().Err(err).Msgf("[%s]line %d: %s", r.Outcome, s.Line, s.Summary(80))
		return r
	}

	r.Outcome = OutcomeSuccess
	if n, err := res.RowsAffected(); err == nil {
		r.RowsAffected = n
	}

	log.Debug().Msgf("[%s]line %d (%s): %s", r.Outcome, s.Line, r.Duration, s.Summary(80))

	return r
}

// IsTolerable reports whether err, returned by executing s, means the
// statement's intended end state already exists
func (ex *Executor) IsTolerable(s *statement.Statement, err error) bool {
	d := ex.db.Dialect
	if d.IsAlreadyExists(err) {
		return true
	}

	if s.IsDropIfExists() && d.IsMissingObject(err) {
		return true
	}

	// Match the driver's message only, the wrapped error also carries the
	// statement text
	msg := e.Cause(err).Error()
	for _, re := range ex.patternList {
		if re.MatchString(msg) {
			return true
		}
	}

	lmsg := strings.ToLower(msg)
	for _, t := range s.Tolerable {
		if t != "" && strings.Contains(lmsg, strings.ToLower(t)) {
			return true
		}
	}

	return false
}
