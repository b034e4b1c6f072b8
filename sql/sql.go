package sql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/Skyrin/go-migrate/e"
	"github.com/rs/zerolog/log"
)

const (
	ECode020101 = e.Code0201 + "01"
	ECode020102 = e.Code0201 + "02"
	ECode020103 = e.Code0201 + "03"
	ECode020104 = e.Code0201 + "04"
	ECode020105 = e.Code0201 + "05"
	ECode020106 = e.Code0201 + "06"
	ECode020107 = e.Code0201 + "07"
	ECode020108 = e.Code0201 + "08"
	ECode020109 = e.Code0201 + "09"
	ECode02010A = e.Code0201 + "0A"
	ECode02010B = e.Code0201 + "0B"
	ECode02010C = e.Code0201 + "0C"
	ECode02010D = e.Code0201 + "0D"
	ECode02010E = e.Code0201 + "0E"
	ECode02010F = e.Code0201 + "0F"
	ECode02010G = e.Code0201 + "0G"
	ECode02010H = e.Code0201 + "0H"
	ECode02010I = e.Code0201 + "0I"
	ECode02010J = e.Code0201 + "0J"
)

// Connection wrapper of the *sql.DB
// All calls go through a single pinned session (*sql.Conn). Session settings,
// such as FOREIGN_KEY_CHECKS or the selected database, only apply to the
// session that set them, so a migration must never be spread across the pool.
type Connection struct {
	DB      *sql.DB
	Dialect Dialect
	session *sql.Conn
	txn     *sql.Tx
}

// ConnParam connection parameters used to initialize a connection
type ConnParam struct {
	Driver      string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SearchPath  string
	Credentials string // Optional credentials provider, e.g. "aws-iam"
}

// GetConnParamFromENV initializes new connection parameters and populates from ENV variables
func GetConnParamFromENV() (cp *ConnParam) {
	cp = &ConnParam{
		Driver: DriverMySQL,
	}

	if os.Getenv("DB_DRIVER") != "" {
		cp.Driver = os.Getenv("DB_DRIVER")
	}
	if os.Getenv("DBHOST") != "" {
		cp.Host = os.Getenv("DBHOST")
	}
	if os.Getenv("DBPORT") != "" {
		cp.Port = os.Getenv("DBPORT")
	}
	if os.Getenv("DBUSER") != "" {
		cp.User = os.Getenv("DBUSER")
	}
	if os.Getenv("DBPASS") != "" {
		cp.Password = os.Getenv("DBPASS")
	}
	if os.Getenv("DBNAME") != "" {
		cp.DBName = os.Getenv("DBNAME")
	}
	if os.Getenv("SSLMODE") != "" {
		cp.SSLMode = os.Getenv("SSLMODE")
	}
	if os.Getenv("DBSEARCHPATH") != "" {
		cp.SearchPath = os.Getenv("DBSEARCHPATH")
	}
	if os.Getenv("DBCREDENTIALS") != "" {
		cp.Credentials = os.Getenv("DBCREDENTIALS")
	}

	return cp
}

// Endpoint returns the host:port of the connection params
func (cp *ConnParam) Endpoint() string {
	if cp.Port == "" {
		return cp.Host
	}
	return fmt.Sprintf("%s:%s", cp.Host, cp.Port)
}

// NewConn opens a database using the dialect associated with the connection
// params' driver, pings it and pins a single session for all later calls
func NewConn(ctx context.Context, cp *ConnParam) (conn *Connection, err error) {
	if cp == nil {
		cp = GetConnParamFromENV()
	}

	d, err := GetDialect(cp.Driver)
	if err != nil {
		return nil, e.W(err, ECode020101)
	}

	if cp.Credentials != "" {
		cpCopy := *cp
		cp = &cpCopy
		provider, err := NewCredentialsProvider(ctx, cp.Credentials)
		if err != nil {
			return nil, e.W(err, ECode020102)
		}
		cp.User, cp.Password, err = provider.Get(ctx, cp.Endpoint(), cp.User)
		if err != nil {
			return nil, e.W(err, ECode020103)
		}
	}

	dsn, err := d.DSN(cp)
	if err != nil {
		return nil, e.W(err, ECode020104)
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, e.WWM(err, ECode020105, "Failed to connect to DB")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, e.WWM(err, ECode020106, "Failed to ping DB")
	}

	conn, err = NewConnFromDB(ctx, db, d)
	if err != nil {
		_ = db.Close()
		return nil, e.W(err, ECode020107)
	}

	return conn, nil
}

// NewConnFromDB wraps an already opened database, pinning one session from its pool
func NewConnFromDB(ctx context.Context, db *sql.DB, d Dialect) (conn *Connection, err error) {
	session, err := db.Conn(ctx)
	if err != nil {
		return nil, e.W(err, ECode020108)
	}

	return &Connection{
		DB:      db,
		Dialect: d,
		session: session,
	}, nil
}

// Close releases the pinned session and closes the database
func (c *Connection) Close() (err error) {
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			log.Warn().Err(err).Msgf("[%s]failed to release session", ECode020109)
		}
		c.session = nil
	}

	if err := c.DB.Close(); err != nil {
		return e.W(err, ECode02010A)
	}

	return nil
}

// Exec wrapper for sql.Exec on the pinned session, inside the open
// transaction if there is one
func (c *Connection) Exec(ctx context.Context, query string,
	args ...interface{}) (res sql.Result, err error) {

	res, err = c.q().ExecContext(ctx, query, args...)
	if err != nil {
		// Not logging args because it may contain sensitive information. The
		// caller can log them if needed
		return nil, e.W(err, ECode02010B, fmt.Sprintf("query: %s", query))
	}

	return res, nil
}

// Query wrapper for sql.Query on the pinned session
func (c *Connection) Query(ctx context.Context, query string,
	args ...interface{}) (rows *Rows, err error) {

	sqlRows, err := c.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, e.W(err, ECode02010C, fmt.Sprintf("query: %s", query))
	}

	return &Rows{
		rows:  sqlRows,
		query: query,
	}, nil
}

// QueryRow wrapper for sql.QueryRow on the pinned session
func (c *Connection) QueryRow(ctx context.Context, query string, args ...interface{}) (row *Row) {
	return &Row{
		row:   c.q().QueryRowContext(ctx, query, args...),
		query: query,
	}
}

// Builder returns a statement builder using the dialect's placeholder format
func (c *Connection) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(c.Dialect.Placeholder())
}

// Select wrapper for github.com/Masterminds/squirrel.Select
func (c *Connection) Select(columns ...string) sq.SelectBuilder {
	return c.Builder().Select(columns...)
}

// Insert wrapper for github.com/Masterminds/squirrel.Insert
func (c *Connection) Insert(table string) sq.InsertBuilder {
	return c.Builder().Insert(table)
}

// Update wrapper for github.com/Masterminds/squirrel.Update
func (c *Connection) Update(table string) sq.UpdateBuilder {
	return c.Builder().Update(table)
}

// Delete wrapper for github.com/Masterminds/squirrel.Delete
func (c *Connection) Delete(from string) sq.DeleteBuilder {
	return c.Builder().Delete(from)
}

// Expr wrapper for github.com/Masterminds/squirrel.Expr
func (c *Connection) Expr(sql string, args ...interface{}) sq.Sqlizer {
	return sq.Expr(sql, args...)
}

// ToSQLAndQuery converts the select builder to a SQL statement and bind parameters,
// then attempts to execute the query, returning the rows
func (c *Connection) ToSQLAndQuery(ctx context.Context, sb sq.SelectBuilder) (rows *Rows, err error) {
	stmt, bindList, err := sb.ToSql()
	if err != nil {
		return nil, e.W(err, ECode02010D, fmt.Sprintf("stmt: %s", stmt))
	}

	rows, err = c.Query(ctx, stmt, bindList...)
	if err != nil {
		return nil, e.W(err, ECode02010E)
	}

	return rows, nil
}

// ToSQLAndQueryRow converts the select builder to a SQL statement and bind parameters,
// then attempts to execute the query, returning a single row
func (c *Connection) ToSQLAndQueryRow(ctx context.Context, sb sq.SelectBuilder) (row *Row, err error) {
	stmt, bindList, err := sb.ToSql()
	if err != nil {
		return nil, e.W(err, ECode02010F, fmt.Sprintf("stmt: %s", stmt))
	}

	return c.QueryRow(ctx, stmt, bindList...), nil
}

// Count runs a select builder that returns a single numeric column and scans it
func (c *Connection) Count(ctx context.Context, sb sq.SelectBuilder) (count int64, err error) {
	row, err := c.ToSQLAndQueryRow(ctx, sb)
	if err != nil {
		return 0, e.W(err, ECode02010G)
	}

	if err := row.Scan(&count); err != nil {
		return 0, e.W(err, ECode02010J)
	}

	return count, nil
}

// ExecUpdate wrapper to generate SQL/bind list and then execute update query
func (c *Connection) ExecUpdate(ctx context.Context, ub sq.UpdateBuilder) (err error) {
	stmt, bindList, err := ub.ToSql()
	if err != nil {
		return e.W(err, ECode02010H, fmt.Sprintf("stmt: %s", stmt))
	}

	if _, err := c.Exec(ctx, stmt, bindList...); err != nil {
		return e.W(err, ECode02010H)
	}

	return nil
}

// ExecInsertReturningID wrapper to generate SQL/bind list and then execute insert
// query, returning the new record's id. Dialects supporting RETURNING use it,
// the others rely on the driver's last insert id.
func (c *Connection) ExecInsertReturningID(ctx context.Context, ib sq.InsertBuilder,
	idColumn string) (id int, err error) {

	if c.Dialect.SupportsReturning() {
		ib = ib.Suffix(fmt.Sprintf("RETURNING %s", idColumn))
		stmt, bindList, err := ib.ToSql()
		if err != nil {
			return 0, e.W(err, ECode02010I, fmt.Sprintf("stmt: %s", stmt))
		}

		if err := c.QueryRow(ctx, stmt, bindList...).Scan(&id); err != nil {
			return 0, e.W(err, ECode02010I)
		}

		return id, nil
	}

	stmt, bindList, err := ib.ToSql()
	if err != nil {
		return 0, e.W(err, ECode02010I, fmt.Sprintf("stmt: %s", stmt))
	}

	res, err := c.Exec(ctx, stmt, bindList...)
	if err != nil {
		return 0, e.W(err, ECode02010I)
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, e.W(err, ECode02010I)
	}

	return int(lastID), nil
}

// QuoteLiteral quotes a string as a SQL string literal. Only use it where a
// bind parameter is not accepted by the server (e.g. SHOW ... LIKE, pragmas).
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
