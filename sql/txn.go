package sql

import (
	"context"

	"github.com/Skyrin/go-migrate/e"
	"github.com/rs/zerolog/log"
)

const (
	ECode020601 = e.Code0206 + "01"
	ECode020602 = e.Code0206 + "02"
	ECode020603 = e.Code0206 + "03"
)

// InTxn reports whether a transaction is open on the session
func (c *Connection) InTxn() bool {
	return c.txn != nil
}

// WithTxn runs f in a transaction on the pinned session: every call made
// through the connection while f runs is part of it. The transaction commits
// when f returns nil and rolls back on an error or a panic. Called while a
// transaction is already open, f simply joins it.
//
// MySQL commits implicitly on DDL, so only wrap statements that are
// transactional on the dialect in use.
func (c *Connection) WithTxn(ctx context.Context, f func() error) (err error) {
	if c.txn != nil {
		return f()
	}

	txn, err := c.session.BeginTx(ctx, nil)
	if err != nil {
		return e.W(err, ECode020601)
	}
	c.txn = txn

	done := false
	defer func() {
		c.txn = nil
		if done {
			return
		}
		if rerr := txn.Rollback(); rerr != nil {
			log.Warn().Err(rerr).Msgf("[%s]failed to roll back", ECode020602)
		}
	}()

	if err := f(); err != nil {
		return err
	}

	done = true
	if err := txn.Commit(); err != nil {
		return e.W(err, ECode020603)
	}

	return nil
}
