package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Skyrin/go-migrate/e"
)

const (
	ECode020201 = e.Code0202 + "01"
	ECode020202 = e.Code0202 + "02"
	ECode020203 = e.Code0202 + "03"
	ECode020204 = e.Code0202 + "04"
	ECode020205 = e.Code0202 + "05"
)

// querier is satisfied by both the pinned session and a transaction started on it
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// q returns the open transaction, if any, otherwise the session
func (c *Connection) q() querier {
	if c.txn != nil {
		return c.txn
	}
	return c.session
}

// IsNoRows reports whether err, possibly wrapped, is sql.ErrNoRows
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Row a single row result that attaches the query to scan errors
type Row struct {
	row   *sql.Row
	query string
}

// Scan copies the row's columns into dest
func (r *Row) Scan(dest ...interface{}) error {
	if err := r.row.Scan(dest...); err != nil {
		return e.W(err, ECode020201, fmt.Sprintf("query: %s", r.query))
	}

	return nil
}

// Rows a result set that attaches the query to errors. Consume it with Each
// or Count, both close it.
type Rows struct {
	rows  *sql.Rows
	query string
}

// Each calls f for every row until f returns an error, then closes the rows.
// scan copies the current row's columns.
func (r *Rows) Each(f func(scan func(dest ...interface{}) error) error) (err error) {
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scan := func(dest ...interface{}) error {
		if err := r.rows.Scan(dest...); err != nil {
			return e.W(err, ECode020202, fmt.Sprintf("query: %s", r.query))
		}
		return nil
	}

	for r.rows.Next() {
		if err := f(scan); err != nil {
			return err
		}
	}

	if err := r.rows.Err(); err != nil {
		return e.W(err, ECode020203, fmt.Sprintf("query: %s", r.query))
	}

	return nil
}

// Count drains the result set and returns the number of rows. Used for
// queries whose shape is unknown, e.g. SHOW COLUMNS.
func (r *Rows) Count() (count int64, err error) {
	err = r.Each(func(func(...interface{}) error) error {
		count++
		return nil
	})
	if err != nil {
		return 0, e.W(err, ECode020204)
	}

	return count, nil
}

// Close releases the result set; safe to call more than once
func (r *Rows) Close() error {
	if err := r.rows.Close(); err != nil {
		return e.W(err, ECode020205, fmt.Sprintf("query: %s", r.query))
	}

	return nil
}
