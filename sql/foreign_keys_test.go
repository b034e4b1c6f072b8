package sql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Skyrin/go-migrate/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) *sql.Connection {
	t.Helper()

	conn, err := sql.NewConn(context.Background(), &sql.ConnParam{Driver: sql.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestConnection_ForeignKeyChecks(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	require.NoError(t, conn.SetForeignKeyChecks(ctx, true))
	on, err := conn.ForeignKeyChecks(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, conn.SetForeignKeyChecks(ctx, false))
	on, err = conn.ForeignKeyChecks(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestConnection_WithoutForeignKeys(t *testing.T) {
	ctx := context.Background()

	assertRestored := func(t *testing.T, conn *sql.Connection) {
		t.Helper()
		on, err := conn.ForeignKeyChecks(ctx)
		require.NoError(t, err)
		assert.True(t, on)
	}

	t.Run("disabled inside and restored after", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		err := conn.WithoutForeignKeys(ctx, func() error {
			on, err := conn.ForeignKeyChecks(ctx)
			require.NoError(t, err)
			assert.False(t, on)
			return nil
		})
		require.NoError(t, err)
		assertRestored(t, conn)
	})

	t.Run("restored after an error", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		boom := errors.New("boom")
		err := conn.WithoutForeignKeys(ctx, func() error { return boom })
		require.ErrorIs(t, err, boom)
		assertRestored(t, conn)
	})

	t.Run("restored after a panic", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		assert.Panics(t, func() {
			_ = conn.WithoutForeignKeys(ctx, func() error { panic("boom") })
		})
		assertRestored(t, conn)
	})

	t.Run("restored when the context is cancelled inside", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		cctx, cancel := context.WithCancel(ctx)
		err := conn.WithoutForeignKeys(cctx, func() error {
			cancel()
			return cctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)
		assertRestored(t, conn)
	})

	t.Run("orphan rows are accepted while disabled", func(t *testing.T) {
		conn := newTestConn(t)
		for _, q := range []string{
			"PRAGMA foreign_keys = ON",
			"CREATE TABLE users (id INTEGER PRIMARY KEY)",
			"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users (id))",
		} {
			_, err := conn.Exec(ctx, q)
			require.NoError(t, err)
		}

		_, err := conn.Exec(ctx, "INSERT INTO posts (id, user_id) VALUES (1, 99)")
		require.Error(t, err)

		err = conn.WithoutForeignKeys(ctx, func() error {
			_, err := conn.Exec(ctx, "INSERT INTO posts (id, user_id) VALUES (1, 99)")
			return err
		})
		require.NoError(t, err)
		assertRestored(t, conn)
	})
}

func TestConnection_KeepForeignKeys(t *testing.T) {
	ctx := context.Background()

	checks := func(t *testing.T, conn *sql.Connection) bool {
		t.Helper()
		on, err := conn.ForeignKeyChecks(ctx)
		require.NoError(t, err)
		return on
	}

	t.Run("statements turning checks off are undone", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		err := conn.KeepForeignKeys(ctx, func() error {
			_, err := conn.Exec(ctx, "PRAGMA foreign_keys = OFF")
			return err
		})
		require.NoError(t, err)
		assert.True(t, checks(t, conn))
	})

	t.Run("previous disabled state is kept", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, false))

		err := conn.KeepForeignKeys(ctx, func() error {
			_, err := conn.Exec(ctx, "PRAGMA foreign_keys = ON")
			return err
		})
		require.NoError(t, err)
		assert.False(t, checks(t, conn))
	})

	t.Run("restored after an error and a cancel", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		cctx, cancel := context.WithCancel(ctx)
		err := conn.KeepForeignKeys(cctx, func() error {
			_, err := conn.Exec(cctx, "PRAGMA foreign_keys = OFF")
			require.NoError(t, err)
			cancel()
			return cctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.True(t, checks(t, conn))
	})

	t.Run("restored after a panic", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.SetForeignKeyChecks(ctx, true))

		assert.Panics(t, func() {
			_ = conn.KeepForeignKeys(ctx, func() error {
				_, _ = conn.Exec(ctx, "PRAGMA foreign_keys = OFF")
				panic("boom")
			})
		})
		assert.True(t, checks(t, conn))
	})
}

func TestConnection_WithoutForeignKeys_EnablesWhenPreviouslyOff(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)
	require.NoError(t, conn.SetForeignKeyChecks(ctx, false))

	require.NoError(t, conn.WithoutForeignKeys(ctx, func() error { return nil }))

	on, err := conn.ForeignKeyChecks(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}
