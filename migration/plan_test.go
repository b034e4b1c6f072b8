package migration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/migration"
	"github.com/Skyrin/go-migrate/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `
migrations:
  - name: tenant-column
    file: sql/add_original_tenant_id.sql
    tolerate:
      - "Unknown column"
    disable_foreign_keys: true
    abort_after: 0
    probes:
      - type: column
        table: users
        column: original_tenant_id
      - type: query
        query: "SHOW COLUMNS FROM users LIKE 'original_tenant_id'"
        rows: 1
  - name: audit-logs
    file: /abs/audit_logs.sql
    probes:
      - type: min-rows
        table: audit_logs
        min_rows: 1
`

func TestLoadManifest(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m, err := migration.LoadManifest(strings.NewReader(manifestYAML))
		require.NoError(t, err)
		require.Len(t, m.Migrations, 2)

		p, err := m.Get("tenant-column")
		require.NoError(t, err)
		assert.Equal(t, "sql/add_original_tenant_id.sql", p.File)
		assert.Equal(t, []string{"Unknown column"}, p.Tolerable)
		assert.True(t, p.DisableForeignKeys)
		assert.Equal(t, 0, p.GetAbortAfter())
		require.Len(t, p.Probes, 2)
		assert.Equal(t, verify.ColumnProbe("users", "original_tenant_id"), p.Probes[0])
		assert.Equal(t, int64(1), p.Probes[1].Rows)

		p, err = m.Get("audit-logs")
		require.NoError(t, err)
		assert.Equal(t, migration.DefaultAbortAfter, p.GetAbortAfter())
		assert.Equal(t, int64(1), p.Probes[0].MinRows)
	})

	t.Run("unknown plan", func(t *testing.T) {
		m, err := migration.LoadManifest(strings.NewReader(manifestYAML))
		require.NoError(t, err)

		_, err = m.Get("nope")
		require.Error(t, err)
		assert.Contains(t, e.AsExtendedError(err).Message, e.MsgPlanDoesNotExist)
	})

	t.Run("empty", func(t *testing.T) {
		m, err := migration.LoadManifest(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, m.Migrations)
	})

	t.Run("errors", func(t *testing.T) {
		for name, src := range map[string]string{
			"invalid yaml":   "migrations: [",
			"duplicate name": "migrations:\n  - {name: a, file: a.sql}\n  - {name: a, file: b.sql}\n",
			"missing name":   "migrations:\n  - {file: a.sql}\n",
			"missing file":   "migrations:\n  - {name: a}\n",
			"negative abort": "migrations:\n  - {name: a, file: a.sql, abort_after: -1}\n",
			"bad probe":      "migrations:\n  - {name: a, file: a.sql, probes: [{type: column, table: users}]}\n",
			"write probe":    "migrations:\n  - {name: a, file: a.sql, probes: [{type: query, query: 'DELETE FROM users'}]}\n",
		} {
			_, err := migration.LoadManifest(strings.NewReader(src))
			assert.Error(t, err, name)
		}
	})
}

func TestLoadManifestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migrations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0o600))

	m, err := migration.LoadManifestFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sql/add_original_tenant_id.sql"), m.Migrations[0].File)
	assert.Equal(t, "/abs/audit_logs.sql", m.Migrations[1].File)

	_, err = migration.LoadManifestFile(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}
