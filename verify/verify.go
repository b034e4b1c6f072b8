// Package verify re-derives the state of the schema after a migration. A run
// can partially apply, so the executor's tally is never trusted on its own.
package verify

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/sql"
)

const (
	ECode060101 = e.Code0601 + "01"
)

// Result of one probe
type Result struct {
	Probe  *Probe
	Passed bool
	Reason string // Why the probe failed, empty when it passed
}

// Verify runs every probe, in order. A probe that errors fails with the
// error as the reason, it never stops the remaining probes.
func Verify(ctx context.Context, db *sql.Connection, pList []*Probe) (rList []*Result) {
	rList = make([]*Result, 0, len(pList))
	for _, p := range pList {
		rList = append(rList, Check(ctx, db, p))
	}
	return rList
}

// Passed reports whether every result passed
func Passed(rList []*Result) bool {
	for _, r := range rList {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Check runs a single probe
func Check(ctx context.Context, db *sql.Connection, p *Probe) (r *Result) {
	r = &Result{Probe: p}

	if err := p.Validate(); err != nil {
		r.Reason = e.Reason(err)
		return r
	}

	switch p.Type {
	case ProbeMinRows:
		count, err := db.Count(ctx, db.Select("COUNT(*)").From(db.Dialect.QuoteIdent(p.Table)))
		if err != nil {
			return r.fail(err)
		}
		r.Passed = count >= p.MinRows
		if !r.Passed {
			r.Reason = fmt.Sprintf("table %s has %d rows, expected at least %d", p.Table, count, p.MinRows)
		}

	case ProbeQuery:
		rows, err := db.Query(ctx, p.Query)
		if err != nil {
			return r.fail(err)
		}
		count, err := rows.Count()
		if err != nil {
			return r.fail(err)
		}
		r.Passed = count == p.Rows
		if !r.Passed {
			r.Reason = fmt.Sprintf("query returned %d rows, expected %d", count, p.Rows)
		}

	default:
		exists, err := objectExists(ctx, db, p)
		if err != nil {
			return r.fail(err)
		}
		r.Passed = exists != p.Absent
		if !r.Passed && p.Absent {
			r.Reason = fmt.Sprintf("%s still exists", p.objectName())
		} else if !r.Passed {
			r.Reason = fmt.Sprintf("%s does not exist", p.objectName())
		}
	}

	return r
}

func objectExists(ctx context.Context, db *sql.Connection, p *Probe) (exists bool, err error) {
	d, b := db.Dialect, db.Builder()

	var sb sq.SelectBuilder
	switch p.Type {
	case ProbeTable:
		sb = d.TableExists(b, p.Table)
	case ProbeColumn:
		sb = d.ColumnExists(b, p.Table, p.Column)
	case ProbeIndex:
		sb = d.IndexExists(b, p.Table, p.Name)
	case ProbeConstraint:
		sb = d.ConstraintExists(b, p.Table, p.Name)
	}

	count, err := db.Count(ctx, sb)
	if err != nil {
		return false, e.W(err, ECode060101, p.String())
	}

	return count > 0, nil
}

func (r *Result) fail(err error) *Result {
	r.Passed = false
	r.Reason = fmt.Sprintf("probe failed: %s", e.Reason(err))
	return r
}

// objectName e.g. "column users.email"
func (p *Probe) objectName() string {
	switch p.Type {
	case ProbeColumn:
		return fmt.Sprintf("column %s.%s", p.Table, p.Column)
	case ProbeIndex, ProbeConstraint:
		return fmt.Sprintf("%s %s on %s", p.Type, p.Name, p.Table)
	}
	return fmt.Sprintf("table %s", p.Table)
}
