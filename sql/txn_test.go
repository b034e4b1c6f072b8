package sql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Skyrin/go-migrate/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_WithTxn(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *sql.Connection {
		t.Helper()
		conn := newTestConn(t)
		_, err := conn.Exec(ctx, "CREATE TABLE runs (id INTEGER PRIMARY KEY, code TEXT)")
		require.NoError(t, err)
		return conn
	}

	count := func(t *testing.T, conn *sql.Connection) int64 {
		t.Helper()
		n, err := conn.Count(ctx, conn.Select("COUNT(*)").From("runs"))
		require.NoError(t, err)
		return n
	}

	t.Run("commits", func(t *testing.T) {
		conn := setup(t)

		err := conn.WithTxn(ctx, func() error {
			assert.True(t, conn.InTxn())
			_, err := conn.Exec(ctx, "INSERT INTO runs (code) VALUES ('a')")
			return err
		})
		require.NoError(t, err)
		assert.False(t, conn.InTxn())
		assert.Equal(t, int64(1), count(t, conn))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		conn := setup(t)

		boom := errors.New("boom")
		err := conn.WithTxn(ctx, func() error {
			_, err := conn.Exec(ctx, "INSERT INTO runs (code) VALUES ('a')")
			require.NoError(t, err)
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.False(t, conn.InTxn())
		assert.Equal(t, int64(0), count(t, conn))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		conn := setup(t)

		assert.Panics(t, func() {
			_ = conn.WithTxn(ctx, func() error {
				_, _ = conn.Exec(ctx, "INSERT INTO runs (code) VALUES ('a')")
				panic("boom")
			})
		})
		assert.False(t, conn.InTxn())
		assert.Equal(t, int64(0), count(t, conn))
	})

	t.Run("nested calls join the open transaction", func(t *testing.T) {
		conn := setup(t)

		err := conn.WithTxn(ctx, func() error {
			if err := conn.WithTxn(ctx, func() error {
				_, err := conn.Exec(ctx, "INSERT INTO runs (code) VALUES ('inner')")
				return err
			}); err != nil {
				return err
			}
			assert.True(t, conn.InTxn())
			return errors.New("outer fails")
		})
		require.Error(t, err)
		assert.Equal(t, int64(0), count(t, conn))
	})
}

func TestRows(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	_, err := conn.Exec(ctx, "CREATE TABLE plans (name TEXT)")
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "INSERT INTO plans VALUES ('a'), ('b'), ('c')")
	require.NoError(t, err)

	t.Run("each scans every row", func(t *testing.T) {
		rows, err := conn.Query(ctx, "SELECT name FROM plans ORDER BY name")
		require.NoError(t, err)

		var names []string
		err = rows.Each(func(scan func(...interface{}) error) error {
			var name string
			if err := scan(&name); err != nil {
				return err
			}
			names = append(names, name)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)
	})

	t.Run("each stops at the first error", func(t *testing.T) {
		rows, err := conn.Query(ctx, "SELECT name FROM plans ORDER BY name")
		require.NoError(t, err)

		seen := 0
		stop := errors.New("stop")
		err = rows.Each(func(func(...interface{}) error) error {
			seen++
			return stop
		})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 1, seen)
	})

	t.Run("count", func(t *testing.T) {
		rows, err := conn.Query(ctx, "SELECT name FROM plans WHERE name <> 'b'")
		require.NoError(t, err)

		n, err := rows.Count()
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("no rows", func(t *testing.T) {
		var name string
		err := conn.QueryRow(ctx, "SELECT name FROM plans WHERE name = 'z'").Scan(&name)
		require.Error(t, err)
		assert.True(t, sql.IsNoRows(err))
	})
}
