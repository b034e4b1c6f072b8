package sql

import (
	"context"

	"github.com/Skyrin/go-migrate/e"
	"github.com/rs/zerolog/log"
)

const (
	ECode020501 = e.Code0205 + "01"
	ECode020502 = e.Code0205 + "02"
	ECode020503 = e.Code0205 + "03"
	ECode020504 = e.Code0205 + "04"
	ECode020505 = e.Code0205 + "05"
	ECode020506 = e.Code0205 + "06"
)

// ForeignKeyChecks returns whether foreign key checks are enabled on the session
func (c *Connection) ForeignKeyChecks(ctx context.Context) (enabled bool, err error) {
	var v int
	if err := c.QueryRow(ctx, c.Dialect.ForeignKeyChecksQuery()).Scan(&v); err != nil {
		return false, e.W(err, ECode020501)
	}

	return v != 0, nil
}

// SetForeignKeyChecks enables/disables foreign key checks on the session
func (c *Connection) SetForeignKeyChecks(ctx context.Context, on bool) (err error) {
	if _, err := c.Exec(ctx, c.Dialect.SetForeignKeyChecksStmt(on)); err != nil {
		return e.W(err, ECode020502)
	}

	return nil
}

// WithoutForeignKeys disables foreign key checks, runs f and enables them on
// every exit path: normal return, error, panic or a cancelled context. The
// checks end up enabled whatever the state before the call. The restore uses
// a context detached from ctx's cancellation so a cancelled run still leaves
// the session constrained.
func (c *Connection) WithoutForeignKeys(ctx context.Context, f func() error) (err error) {
	if err := c.SetForeignKeyChecks(ctx, false); err != nil {
		return e.W(err, ECode020503)
	}

	defer func() {
		if rerr := c.SetForeignKeyChecks(context.WithoutCancel(ctx), true); rerr != nil {
			log.Error().Err(rerr).Msgf("[%s]failed to re-enable foreign key checks", ECode020504)
			if err == nil {
				err = e.W(rerr, ECode020504)
			}
		}
	}()

	return f()
}

// KeepForeignKeys runs f and puts foreign key checks back to the state they
// had before the call on every exit path. Use it around statements that may
// toggle the checks themselves, e.g. a file doing SET FOREIGN_KEY_CHECKS = 0
// that fails before its closing SET FOREIGN_KEY_CHECKS = 1.
func (c *Connection) KeepForeignKeys(ctx context.Context, f func() error) (err error) {
	prev, err := c.ForeignKeyChecks(ctx)
	if err != nil {
		return e.W(err, ECode020505)
	}

	defer func() {
		rctx := context.WithoutCancel(ctx)
		now, rerr := c.ForeignKeyChecks(rctx)
		if rerr == nil && now == prev {
			return
		}
		if rerr == nil {
			log.Warn().Msgf("[%s]foreign key checks left %s, restoring", ECode020506, onOff(now))
			rerr = c.SetForeignKeyChecks(rctx, prev)
		}
		if rerr != nil {
			log.Error().Err(rerr).Msgf("[%s]failed to restore foreign key checks", ECode020506)
			if err == nil {
				err = e.W(rerr, ECode020506)
			}
		}
	}()

	return f()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
