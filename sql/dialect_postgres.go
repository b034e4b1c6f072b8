package sql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"

	// Including both postgres drivers, lib/pq is the default
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// DriverPgx selects the pgx database/sql driver for the Postgres dialect
const DriverPgx = "pgx"

// Postgres dialect
type Postgres struct {
	// Driver database/sql driver name, "postgres" (lib/pq) when empty or "pgx"
	Driver string
}

func (d *Postgres) Name() string { return DriverPostgres }

func (d *Postgres) DriverName() string {
	if d.Driver == "" {
		return "postgres"
	}
	return d.Driver
}

// DSN returns a lib/pq keyword/value connection string
func (d *Postgres) DSN(cp *ConnParam) (dsn string, err error) {
	var csb strings.Builder

	_, _ = csb.WriteString("host=")
	_, _ = csb.WriteString(cp.Host)
	if cp.Port != "" {
		_, _ = csb.WriteString(" port=")
		_, _ = csb.WriteString(cp.Port)
	}
	_, _ = csb.WriteString(" user=")
	_, _ = csb.WriteString(cp.User)
	_, _ = csb.WriteString(" password=")
	_, _ = csb.WriteString(pgQuoteValue(cp.Password))
	_, _ = csb.WriteString(" dbname=")
	_, _ = csb.WriteString(cp.DBName)

	_, _ = csb.WriteString(" sslmode=")
	if cp.SSLMode != "" {
		_, _ = csb.WriteString(cp.SSLMode)
	} else {
		_, _ = csb.WriteString("require")
	}

	if cp.SearchPath != "" {
		_, _ = csb.WriteString(" search_path=")
		_, _ = csb.WriteString(cp.SearchPath)
	}

	return csb.String(), nil
}

// pgQuoteValue quotes a keyword/value connection string value when needed
// (IAM tokens contain '&' and '=')
func pgQuoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\=&") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return fmt.Sprintf("'%s'", v)
}

func (d *Postgres) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (d *Postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ForeignKeyChecksQuery Postgres has no foreign key toggle; a session running
// as replica skips FK triggers, which is the closest equivalent
func (d *Postgres) ForeignKeyChecksQuery() string {
	return "SELECT CASE WHEN current_setting('session_replication_role') = 'replica' THEN 0 ELSE 1 END"
}

func (d *Postgres) SetForeignKeyChecksStmt(on bool) string {
	if on {
		return "SET session_replication_role = DEFAULT"
	}
	return "SET session_replication_role = replica"
}

func (d *Postgres) TableExists(b sq.StatementBuilderType, table string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where("table_name = ?", table)
}

func (d *Postgres) ColumnExists(b sq.StatementBuilderType, table, column string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where("table_name = ?", table).
		Where("column_name = ?", column)
}

func (d *Postgres) IndexExists(b sq.StatementBuilderType, table, index string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("pg_indexes").
		Where("schemaname = current_schema()").
		Where("tablename = ?", table).
		Where("indexname = ?", index)
}

func (d *Postgres) ConstraintExists(b sq.StatementBuilderType, table, constraint string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("information_schema.table_constraints").
		Where("constraint_schema = current_schema()").
		Where("table_name = ?", table).
		Where("constraint_name = ?", constraint)
}

func (d *Postgres) IsAlreadyExists(err error) bool {
	for _, c := range []string{
		e.PQErr42P07,
		e.PQErr42701,
		e.PQErr42710,
		e.PQErr42P06,
		e.PQErr23505UniqueViolation,
	} {
		if e.IsPQError(err, c) {
			return true
		}
	}
	return false
}

func (d *Postgres) IsMissingObject(err error) bool {
	return e.IsPQError(err, e.PQErr42P01) ||
		e.IsPQError(err, e.PQErr42703) ||
		e.IsPQError(err, e.PQErr42704)
}

func (d *Postgres) HashComments() bool      { return false }
func (d *Postgres) DollarQuotes() bool      { return true }
func (d *Postgres) BackslashEscapes() bool  { return false }
func (d *Postgres) SupportsReturning() bool { return true }

func (d *Postgres) RunTableDDL(table string) string {
	return runTableDDL(d.QuoteIdent(table), "run_id SERIAL PRIMARY KEY", "TEXT")
}
