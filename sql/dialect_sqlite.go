package sql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"

	// Including the pure go sqlite driver
	_ "modernc.org/sqlite"
)

// SQLite dialect, used for local runs and the test suite
type SQLite struct{}

func (d *SQLite) Name() string       { return DriverSQLite }
func (d *SQLite) DriverName() string { return "sqlite" }

// DSN the database name is the file path (or :memory:)
func (d *SQLite) DSN(cp *ConnParam) (dsn string, err error) {
	if cp.DBName == "" {
		return ":memory:", nil
	}
	return cp.DBName, nil
}

func (d *SQLite) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (d *SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLite) ForeignKeyChecksQuery() string {
	return "PRAGMA foreign_keys"
}

func (d *SQLite) SetForeignKeyChecksStmt(on bool) string {
	if on {
		return "PRAGMA foreign_keys = ON"
	}
	return "PRAGMA foreign_keys = OFF"
}

func (d *SQLite) TableExists(b sq.StatementBuilderType, table string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("sqlite_master").
		Where("type = 'table'").
		Where("name = ?", table)
}

func (d *SQLite) ColumnExists(b sq.StatementBuilderType, table, column string) sq.SelectBuilder {
	// Table valued pragma functions do not accept bind parameters in all versions
	return b.Select("COUNT(*)").
		From(fmt.Sprintf("pragma_table_info(%s)", QuoteLiteral(table))).
		Where("name = ?", column)
}

func (d *SQLite) IndexExists(b sq.StatementBuilderType, table, index string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("sqlite_master").
		Where("type = 'index'").
		Where("tbl_name = ?", table).
		Where("name = ?", index)
}

// ConstraintExists SQLite keeps no constraint catalog, so the table's stored
// definition is searched for the named constraint
func (d *SQLite) ConstraintExists(b sq.StatementBuilderType, table, constraint string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("sqlite_master").
		Where("type = 'table'").
		Where("name = ?", table).
		Where("UPPER(sql) LIKE UPPER(?)", "%CONSTRAINT "+constraint+" %")
}

func (d *SQLite) IsAlreadyExists(err error) bool {
	return e.IsSQLiteError(err, "already exists") ||
		e.IsSQLiteError(err, "duplicate column name") ||
		e.IsSQLiteError(err, "UNIQUE constraint failed")
}

func (d *SQLite) IsMissingObject(err error) bool {
	return e.IsSQLiteError(err, "no such table") ||
		e.IsSQLiteError(err, "no such column") ||
		e.IsSQLiteError(err, "no such index")
}

func (d *SQLite) HashComments() bool      { return false }
func (d *SQLite) DollarQuotes() bool      { return false }
func (d *SQLite) BackslashEscapes() bool  { return false }
func (d *SQLite) SupportsReturning() bool { return false }

func (d *SQLite) RunTableDDL(table string) string {
	return runTableDDL(d.QuoteIdent(table), "run_id INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT")
}
