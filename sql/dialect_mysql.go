package sql

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"
	"github.com/go-sql-driver/mysql"
)

// MySQL dialect, the primary target (MySQL/MariaDB)
type MySQL struct{}

func (d *MySQL) Name() string       { return DriverMySQL }
func (d *MySQL) DriverName() string { return "mysql" }

// DSN builds a go-sql-driver/mysql DSN. Multi statements stay disabled, the
// splitter hands over one statement at a time.
func (d *MySQL) DSN(cp *ConnParam) (dsn string, err error) {
	cfg := mysql.NewConfig()
	cfg.User = cp.User
	cfg.Passwd = cp.Password
	cfg.Net = "tcp"
	cfg.Addr = cp.Host
	if cp.Port != "" {
		cfg.Addr = cp.Endpoint()
	}
	cfg.DBName = cp.DBName
	cfg.ParseTime = true

	switch strings.ToLower(cp.SSLMode) {
	case "", "disable", "false":
	case "require", "true":
		cfg.TLSConfig = "true"
	case "skip-verify", "preferred":
		cfg.TLSConfig = strings.ToLower(cp.SSLMode)
	default:
		return "", e.N(ECode020302, "invalid ssl mode for mysql: "+cp.SSLMode)
	}

	// IAM tokens must be sent as is
	if cp.Credentials != "" {
		cfg.AllowCleartextPasswords = true
		if cfg.TLSConfig == "" {
			cfg.TLSConfig = "true"
		}
	}

	return cfg.FormatDSN(), nil
}

func (d *MySQL) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (d *MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQL) ForeignKeyChecksQuery() string {
	return "SELECT @@SESSION.foreign_key_checks"
}

func (d *MySQL) SetForeignKeyChecksStmt(on bool) string {
	if on {
		return "SET FOREIGN_KEY_CHECKS = 1"
	}
	return "SET FOREIGN_KEY_CHECKS = 0"
}

func (d *MySQL) TableExists(b sq.StatementBuilderType, table string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("information_schema.TABLES").
		Where("TABLE_SCHEMA = DATABASE()").
		Where("TABLE_NAME = ?", table)
}

func (d *MySQL) ColumnExists(b sq.StatementBuilderType, table, column string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("information_schema.COLUMNS").
		Where("TABLE_SCHEMA = DATABASE()").
		Where("TABLE_NAME = ?", table).
		Where("COLUMN_NAME = ?", column)
}

func (d *MySQL) IndexExists(b sq.StatementBuilderType, table, index string) sq.SelectBuilder {
	// STATISTICS has one row per indexed column
	return b.Select("COUNT(DISTINCT INDEX_NAME)").
		From("information_schema.STATISTICS").
		Where("TABLE_SCHEMA = DATABASE()").
		Where("TABLE_NAME = ?", table).
		Where("INDEX_NAME = ?", index)
}

func (d *MySQL) ConstraintExists(b sq.StatementBuilderType, table, constraint string) sq.SelectBuilder {
	return b.Select("COUNT(*)").
		From("information_schema.TABLE_CONSTRAINTS").
		Where("CONSTRAINT_SCHEMA = DATABASE()").
		Where("TABLE_NAME = ?", table).
		Where("CONSTRAINT_NAME = ?", constraint)
}

func (d *MySQL) IsAlreadyExists(err error) bool {
	for _, n := range []uint16{
		e.MySQLErr1050TableExists,
		e.MySQLErr1060DupColumn,
		e.MySQLErr1061DupKeyName,
		e.MySQLErr1062DupEntry,
		e.MySQLErr1022DupKey,
		e.MySQLErr1826DupFKName,
	} {
		if e.IsMySQLError(err, n) {
			return true
		}
	}
	return false
}

func (d *MySQL) IsMissingObject(err error) bool {
	return e.IsMySQLError(err, e.MySQLErr1051UnknownTable) ||
		e.IsMySQLError(err, e.MySQLErr1091CantDrop) ||
		e.IsMySQLError(err, e.MySQLErr1146NoSuchTable)
}

func (d *MySQL) HashComments() bool      { return true }
func (d *MySQL) DollarQuotes() bool      { return false }
func (d *MySQL) BackslashEscapes() bool  { return true }
func (d *MySQL) SupportsReturning() bool { return false }

func (d *MySQL) RunTableDDL(table string) string {
	return runTableDDL(d.QuoteIdent(table), "run_id INT AUTO_INCREMENT PRIMARY KEY", "TEXT")
}
