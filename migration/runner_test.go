package migration_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/executor"
	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/report"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/Skyrin/go-migrate/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantColumnQuery = "SELECT name FROM pragma_table_info('users') WHERE name = 'original_tenant_id'"

func newTestConn(t *testing.T) *sql.Connection {
	t.Helper()
	ctx := context.Background()

	conn, err := sql.NewConn(ctx, &sql.ConnParam{Driver: sql.DriverSQLite, DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	for _, q := range []string{
		"PRAGMA foreign_keys = ON",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)",
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users (id)
		)`,
	} {
		_, err := conn.Exec(ctx, q)
		require.NoError(t, err)
	}

	return conn
}

func writeFile(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func intPtr(i int) *int {
	return &i
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("add column twice is tolerated and verified", func(t *testing.T) {
		conn := newTestConn(t)
		rep := &report.Memory{}
		r := migration.NewRunner(conn, &migration.RunnerParam{Reporter: rep})

		plan := &migration.Plan{
			Name:   "tenant-column",
			File:   writeFile(t, "tenant.sql", "ALTER TABLE users ADD COLUMN original_tenant_id INT NULL;\n"),
			Probes: []*verify.Probe{verify.QueryProbe(tenantColumnQuery, 1)},
		}

		s, err := r.Run(ctx, plan)
		require.NoError(t, err)
		assert.True(t, s.OK())
		assert.Equal(t, 1, s.Success)
		require.Len(t, s.ProbeList, 1)
		assert.True(t, s.ProbeList[0].Passed)

		s, err = r.Run(ctx, plan)
		require.NoError(t, err)
		assert.True(t, s.OK())
		assert.Equal(t, 0, s.Success)
		assert.Equal(t, 1, s.Tolerated)
		assert.Equal(t, 0, s.Fatal)
		assert.True(t, s.ProbeList[0].Passed, s.ProbeList[0].Reason)
		assert.Equal(t, 1, rep.Count(report.SeverityWarning))
	})

	t.Run("fatal statement does not stop the run", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name:   "typo",
			File:   writeFile(t, "typo.sql", "CREATE TABBLE foo (id INT);\nCREATE TABLE bar (id INT);\nSELECT * FROM bar;\n"),
			Probes: []*verify.Probe{verify.TableProbe("bar")},
		})
		require.NoError(t, err)
		assert.False(t, s.OK())
		assert.Equal(t, 3, s.Total)
		assert.Equal(t, 1, s.Success)
		assert.Equal(t, 1, s.Skipped)
		assert.Equal(t, 1, s.Fatal)
		require.Len(t, s.FatalList, 1)
		assert.Equal(t, "CREATE TABBLE foo (id INT)", s.FatalList[0].Statement.Text)
		assert.Equal(t, executor.OutcomeFatal, s.FatalList[0].Outcome)
		assert.True(t, s.ProbeList[0].Passed)
		assert.Equal(t, "1 fatal statements", s.FailureReason())
	})

	t.Run("use statements are filtered", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name: "use",
			File: writeFile(t, "use.sql", "USE nexio;\nCREATE TABLE audit_logs (id INT);\n"),
		})
		require.NoError(t, err)
		assert.True(t, s.OK())
		assert.Equal(t, 1, s.Filtered)
		assert.Equal(t, 1, s.Total)
	})

	t.Run("missing file is critical", func(t *testing.T) {
		conn := newTestConn(t)
		rep := &report.Memory{}
		r := migration.NewRunner(conn, &migration.RunnerParam{Reporter: rep})

		s, err := r.Run(ctx, &migration.Plan{Name: "missing", File: filepath.Join(t.TempDir(), "nope.sql")})
		require.Error(t, err)
		assert.Nil(t, s)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
		assert.Contains(t, e.AsExtendedError(err).Message, e.MsgMigrationFileNotFound)
		assert.Equal(t, 1, rep.Count(report.SeverityError))
	})

	t.Run("invalid plan", func(t *testing.T) {
		r := migration.NewRunner(newTestConn(t), nil)
		_, err := r.Run(ctx, &migration.Plan{Name: "empty"})
		require.Error(t, err)
	})
}

func TestRunner_AbortPolicy(t *testing.T) {
	ctx := context.Background()
	src := "INSERT INTO nope VALUES (1);\n" +
		"INSERT INTO nope VALUES (2);\n" +
		"INSERT INTO nope VALUES (3);\n" +
		"CREATE TABLE after_abort (id INT);\n"

	t.Run("aborts after consecutive fatals", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name:       "abort",
			File:       writeFile(t, "abort.sql", src),
			AbortAfter: intPtr(2),
			Probes:     []*verify.Probe{{Type: verify.ProbeTable, Table: "after_abort", Absent: true}},
		})
		require.NoError(t, err)
		assert.True(t, s.Aborted)
		assert.Equal(t, 2, s.Fatal)
		assert.Equal(t, 2, s.NotRun)
		assert.True(t, s.ProbeList[0].Passed)
		assert.False(t, s.OK())
		assert.Contains(t, s.FailureReason(), e.MsgMigrationAborted)
	})

	t.Run("successful statements reset the count", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name: "reset",
			File: writeFile(t, "reset.sql", "INSERT INTO nope VALUES (1);\n"+
				"CREATE TABLE a (id INT);\n"+
				"INSERT INTO nope VALUES (2);\n"+
				"CREATE TABLE b (id INT);\n"),
			AbortAfter: intPtr(2),
		})
		require.NoError(t, err)
		assert.False(t, s.Aborted)
		assert.Equal(t, 2, s.Fatal)
		assert.Equal(t, 2, s.Success)
	})

	t.Run("prompt can continue", func(t *testing.T) {
		conn := newTestConn(t)
		asked := 0
		r := migration.NewRunner(conn, &migration.RunnerParam{
			Prompt: func(fatalCount int, last *executor.Result) bool {
				asked++
				assert.Equal(t, 2, fatalCount)
				assert.Equal(t, "INSERT INTO nope VALUES (2)", last.Statement.Text)
				return true
			},
		})

		s, err := r.Run(ctx, &migration.Plan{
			Name:       "prompt",
			File:       writeFile(t, "prompt.sql", src),
			AbortAfter: intPtr(2),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, asked)
		assert.False(t, s.Aborted)
		assert.Equal(t, 3, s.Fatal)
		assert.Equal(t, 1, s.Success)
	})

	t.Run("zero never aborts", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name:       "never",
			File:       writeFile(t, "never.sql", src),
			AbortAfter: intPtr(0),
		})
		require.NoError(t, err)
		assert.False(t, s.Aborted)
		assert.Equal(t, 4, s.Total)
	})
}

func TestRunner_ForeignKeys(t *testing.T) {
	ctx := context.Background()
	orphan := "INSERT INTO posts (user_id) VALUES (999);\n"

	t.Run("checks are off during the run and restored", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name:               "orphan",
			File:               writeFile(t, "orphan.sql", orphan),
			DisableForeignKeys: true,
		})
		require.NoError(t, err)
		assert.True(t, s.OK())

		on, err := conn.ForeignKeyChecks(ctx)
		require.NoError(t, err)
		assert.True(t, on)

		// Without the guard the same statement violates the constraint
		s, err = r.Run(ctx, &migration.Plan{
			Name: "orphan-checked",
			File: writeFile(t, "orphan.sql", orphan),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, s.Fatal)
	})

	t.Run("restored after an abort", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name:               "abort",
			File:               writeFile(t, "abort.sql", "INSERT INTO nope VALUES (1);\n"+orphan),
			DisableForeignKeys: true,
			AbortAfter:         intPtr(1),
		})
		require.NoError(t, err)
		assert.True(t, s.Aborted)

		on, err := conn.ForeignKeyChecks(ctx)
		require.NoError(t, err)
		assert.True(t, on)
	})

	t.Run("restored after the context is cancelled", func(t *testing.T) {
		conn := newTestConn(t)
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		r := migration.NewRunner(conn, &migration.RunnerParam{
			Prompt: func(int, *executor.Result) bool {
				cancel()
				return true
			},
		})

		s, err := r.Run(cctx, &migration.Plan{
			Name:               "cancel",
			File:               writeFile(t, "cancel.sql", "INSERT INTO nope VALUES (1);\n"+orphan),
			DisableForeignKeys: true,
			AbortAfter:         intPtr(1),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		require.NotNil(t, s)
		assert.Equal(t, 1, s.Total)

		on, err := conn.ForeignKeyChecks(ctx)
		require.NoError(t, err)
		assert.True(t, on)
	})
}

func TestRunner_FileTogglesForeignKeys(t *testing.T) {
	ctx := context.Background()
	src := "PRAGMA foreign_keys = OFF;\n" +
		"CREATE TABBLE a (id INT);\n" +
		"CREATE TABBLE b (id INT);\n" +
		"PRAGMA foreign_keys = ON;\n"

	assertOn := func(t *testing.T, conn *sql.Connection) {
		t.Helper()
		on, err := conn.ForeignKeyChecks(ctx)
		require.NoError(t, err)
		assert.True(t, on)
	}

	t.Run("restored after an abort", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name:       "toggle-abort",
			File:       writeFile(t, "toggle.sql", src),
			AbortAfter: intPtr(2),
		})
		require.NoError(t, err)
		assert.True(t, s.Aborted)
		assert.Equal(t, 2, s.Fatal)
		assert.Equal(t, 1, s.NotRun)
		assertOn(t, conn)

		// The session is constrained again for the next run
		s, err = r.Run(ctx, &migration.Plan{
			Name: "orphan",
			File: writeFile(t, "orphan.sql", "INSERT INTO posts (user_id) VALUES (999);\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, s.Fatal)
	})

	t.Run("restored after the context is cancelled", func(t *testing.T) {
		conn := newTestConn(t)
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		r := migration.NewRunner(conn, &migration.RunnerParam{
			Prompt: func(int, *executor.Result) bool {
				cancel()
				return true
			},
		})

		s, err := r.Run(cctx, &migration.Plan{
			Name:       "toggle-cancel",
			File:       writeFile(t, "toggle.sql", src),
			AbortAfter: intPtr(1),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		require.NotNil(t, s)
		assert.Equal(t, 1, s.Fatal)
		assertOn(t, conn)
	})

	t.Run("a completed file is left as written", func(t *testing.T) {
		conn := newTestConn(t)
		r := migration.NewRunner(conn, nil)

		s, err := r.Run(ctx, &migration.Plan{
			Name: "toggle-ok",
			File: writeFile(t, "toggle.sql", "PRAGMA foreign_keys = OFF;\n"+
				"INSERT INTO posts (user_id) VALUES (999);\n"+
				"PRAGMA foreign_keys = ON;\n"),
		})
		require.NoError(t, err)
		assert.True(t, s.OK())
		assertOn(t, conn)
	})
}

func TestRunner_Tracker(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	tracker, err := migration.NewTracker(ctx, conn)
	require.NoError(t, err)

	rep := &report.Memory{}
	plan := &migration.Plan{
		Name: "audit-logs",
		File: writeFile(t, "audit.sql", "CREATE TABLE audit_logs (id INT);\nINSERT INTO audit_logs VALUES (1);\n"),
	}

	r := migration.NewRunner(conn, &migration.RunnerParam{Reporter: rep, Tracker: tracker})

	s, err := r.Run(ctx, plan)
	require.NoError(t, err)
	assert.True(t, s.OK())
	assert.False(t, s.AlreadyApplied)

	s, err = r.Run(ctx, plan)
	require.NoError(t, err)
	assert.True(t, s.AlreadyApplied)
	assert.Equal(t, 0, s.Total)

	forced := migration.NewRunner(conn, &migration.RunnerParam{Tracker: tracker, Force: true})
	s, err = forced.Run(ctx, plan)
	require.NoError(t, err)
	assert.False(t, s.AlreadyApplied)
	assert.Equal(t, 1, s.Tolerated)

	rList, err := tracker.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rList, 2)
	assert.Equal(t, "audit-logs", rList[0].Code)
	assert.Equal(t, "complete", rList[0].Status)
	assert.Equal(t, 2, rList[0].Total)
	assert.Equal(t, 1, rList[0].Tolerated)
	assert.Greater(t, rList[0].ID, rList[1].ID)

	// A failed run is recorded and retried next time
	failing := &migration.Plan{
		Name: "broken",
		File: writeFile(t, "broken.sql", "CREATE TABBLE x (id INT);\n"),
	}
	s, err = r.Run(ctx, failing)
	require.NoError(t, err)
	assert.False(t, s.OK())

	s, err = r.Run(ctx, failing)
	require.NoError(t, err)
	assert.False(t, s.AlreadyApplied)

	rList, err = tracker.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rList, 1)
	assert.Equal(t, "failed", rList[0].Status)
	assert.Equal(t, "1 fatal statements", rList[0].Err)
}

func TestTracker_Begin(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	tracker, err := migration.NewTracker(ctx, conn)
	require.NoError(t, err)

	run, done, err := tracker.Begin(ctx, "audit-logs", "audit.sql", "abc", false)
	require.NoError(t, err)
	assert.False(t, done)
	assert.False(t, conn.InTxn())
	require.NoError(t, tracker.Finish(ctx, run, &migration.Summary{Total: 1, Success: 1}, nil))

	last, done, err := tracker.Begin(ctx, "audit-logs", "audit.sql", "abc", false)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, run.ID, last.ID)
	assert.False(t, conn.InTxn())

	// A changed file is a new run
	_, done, err = tracker.Begin(ctx, "audit-logs", "audit.sql", "def", false)
	require.NoError(t, err)
	assert.False(t, done)

	rList, err := tracker.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rList, 2)
}
