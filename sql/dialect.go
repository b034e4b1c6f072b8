package sql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"
)

const (
	ECode020301 = e.Code0203 + "01"
	ECode020302 = e.Code0203 + "02"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect captures everything that differs between the supported databases:
// connection strings, session toggles, schema introspection and how schema
// errors are reported.
type Dialect interface {
	// Name returns the canonical driver name (mysql, postgres, sqlite)
	Name() string
	// DriverName returns the name registered with database/sql
	DriverName() string
	// DSN builds the data source name from the connection params
	DSN(cp *ConnParam) (dsn string, err error)
	// Placeholder returns the bind placeholder format for squirrel
	Placeholder() sq.PlaceholderFormat
	// QuoteIdent quotes a table/column identifier
	QuoteIdent(name string) string

	// ForeignKeyChecksQuery returns a query yielding a single 0/1 value
	ForeignKeyChecksQuery() string
	// SetForeignKeyChecksStmt returns the statement toggling foreign key checks for the session
	SetForeignKeyChecksStmt(on bool) string

	// TableExists returns a COUNT query for the table
	TableExists(b sq.StatementBuilderType, table string) sq.SelectBuilder
	// ColumnExists returns a COUNT query for the table's column
	ColumnExists(b sq.StatementBuilderType, table, column string) sq.SelectBuilder
	// IndexExists returns a COUNT query for the table's index
	IndexExists(b sq.StatementBuilderType, table, index string) sq.SelectBuilder
	// ConstraintExists returns a COUNT query for the table's named constraint
	ConstraintExists(b sq.StatementBuilderType, table, constraint string) sq.SelectBuilder

	// IsAlreadyExists reports errors meaning the object being created already exists
	IsAlreadyExists(err error) bool
	// IsMissingObject reports errors meaning the object being dropped does not exist
	IsMissingObject(err error) bool

	// HashComments reports whether '#' starts a line comment
	HashComments() bool
	// DollarQuotes reports whether $tag$ quoting is supported
	DollarQuotes() bool
	// BackslashEscapes reports whether a backslash escapes the next character in string literals
	BackslashEscapes() bool

	// SupportsReturning reports whether INSERT ... RETURNING is supported
	SupportsReturning() bool
	// RunTableDDL returns the CREATE TABLE statement for the run history table
	RunTableDDL(table string) string
}

// GetDialect returns the dialect for the driver name
func GetDialect(driver string) (d Dialect, err error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMySQL, "mariadb":
		return &MySQL{}, nil
	case DriverPostgres, "postgresql", "pq":
		return &Postgres{}, nil
	case DriverPgx:
		return &Postgres{Driver: DriverPgx}, nil
	case DriverSQLite, "sqlite3":
		return &SQLite{}, nil
	}

	return nil, e.WWM(nil, ECode020301, e.MsgUnsupportedDriver,
		fmt.Sprintf("driver: %s", driver))
}

// runTableDDL renders the run history table with the dialect specific id and
// text column types
func runTableDDL(table, idColumn, textType string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	run_code VARCHAR(255) NOT NULL,
	run_file VARCHAR(1024) NOT NULL,
	run_checksum VARCHAR(64) NOT NULL,
	run_status VARCHAR(20) NOT NULL,
	run_total INT NOT NULL DEFAULT 0,
	run_success INT NOT NULL DEFAULT 0,
	run_tolerated INT NOT NULL DEFAULT 0,
	run_skipped INT NOT NULL DEFAULT 0,
	run_fatal INT NOT NULL DEFAULT 0,
	run_err %s,
	created_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table, idColumn, textType)
}
