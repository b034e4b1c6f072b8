package migration_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_GetFiles(t *testing.T) {
	t.Run("version order", func(t *testing.T) {
		l := migration.NewList("nexio", "db/migrations", fstest.MapFS{
			"db/migrations/0010_indexes.sql":      {Data: []byte("CREATE INDEX a ON b (c);")},
			"db/migrations/0002_tenant.sql":       {Data: []byte("ALTER TABLE users ADD COLUMN t INT;")},
			"db/migrations/0001_create_users.sql": {Data: []byte("CREATE TABLE users (id INT);")},
			"db/migrations/README.md":             {Data: []byte("# notes")},
		})

		fList, err := l.GetFiles()
		require.NoError(t, err)
		require.Len(t, fList, 3)
		assert.Equal(t, "0001_create_users.sql", fList[0].Name)
		assert.Equal(t, 1, fList[0].Version)
		assert.Equal(t, 2, fList[1].Version)
		assert.Equal(t, 10, fList[2].Version)
		assert.Equal(t, "CREATE INDEX a ON b (c);", string(fList[2].SQL))
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"create_users.sql", "0000_zero.sql", "0001.sql"} {
			l := migration.NewList("nexio", ".", fstest.MapFS{name: {Data: []byte("SELECT 1;")}})
			_, err := l.GetFiles()
			assert.Error(t, err, name)
		}
	})

	t.Run("duplicate versions", func(t *testing.T) {
		l := migration.NewList("nexio", ".", fstest.MapFS{
			"0001_a.sql":  {Data: []byte("SELECT 1;")},
			"001_b.sql":   {Data: []byte("SELECT 1;")},
			"0002_ok.sql": {Data: []byte("SELECT 1;")},
		})
		_, err := l.GetFiles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "share version 1")
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := migration.NewDirList("nexio", t.TempDir()+"/nope").GetFiles()
		require.Error(t, err)
	})
}

func TestRunner_RunList(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	tracker, err := migration.NewTracker(ctx, conn)
	require.NoError(t, err)

	r := migration.NewRunner(conn, &migration.RunnerParam{Tracker: tracker})

	fsys := fstest.MapFS{
		"0001_audit_logs.sql":  {Data: []byte("CREATE TABLE audit_logs (id INTEGER PRIMARY KEY, tenant_id INT);")},
		"0002_audit_index.sql": {Data: []byte("CREATE INDEX idx_audit_logs_tenant ON audit_logs (tenant_id);")},
	}
	l := migration.NewList("nexio", ".", fsys)

	sList, err := r.RunList(ctx, l, nil)
	require.NoError(t, err)
	require.Len(t, sList, 2)
	assert.Equal(t, "nexio/0001_audit_logs.sql", sList[0].Plan)
	for _, s := range sList {
		assert.True(t, s.OK())
		assert.False(t, s.AlreadyApplied)
	}
	assert.True(t, verify.Check(ctx, conn, verify.IndexProbe("audit_logs", "idx_audit_logs_tenant")).Passed)

	// Applied files are skipped, new ones run
	fsys["0003_broken.sql"] = &fstest.MapFile{Data: []byte("CREATE TABBLE broken (id INT);")}
	fsys["0004_never.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE never (id INT);")}

	sList, err = r.RunList(ctx, l, nil)
	require.NoError(t, err)
	require.Len(t, sList, 3)
	assert.True(t, sList[0].AlreadyApplied)
	assert.True(t, sList[1].AlreadyApplied)
	assert.False(t, sList[2].OK())
	assert.False(t, verify.Check(ctx, conn, verify.TableProbe("never")).Passed)
}
