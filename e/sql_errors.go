package e

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

const (
	// PQErr23505UniqueViolation Postgres code for unique violation
	PQErr23505UniqueViolation = "23505"
	// PQErr42P01 pq: relation "<string>" does not exist
	PQErr42P01 = "42P01"
	// PQErr42703 pq: column "<string>" does not exist
	PQErr42703 = "42703"
	// PQErr42704 pq: undefined object (index, constraint, type)
	PQErr42704 = "42704"
	// PQErr42P06 pq: schema already exists
	PQErr42P06 = "42P06"
	// PQErr42P07 pq: relation already exists
	PQErr42P07 = "42P07"
	// PQErr42701 pq: column already exists
	PQErr42701 = "42701"
	// PQErr42710 pq: object (constraint, index) already exists
	PQErr42710 = "42710"

	// MySQLErr1022DupKey can't write, duplicate key in table
	MySQLErr1022DupKey = 1022
	// MySQLErr1050TableExists table already exists
	MySQLErr1050TableExists = 1050
	// MySQLErr1051UnknownTable unknown table
	MySQLErr1051UnknownTable = 1051
	// MySQLErr1060DupColumn duplicate column name
	MySQLErr1060DupColumn = 1060
	// MySQLErr1061DupKeyName duplicate key name
	MySQLErr1061DupKeyName = 1061
	// MySQLErr1062DupEntry duplicate entry for key
	MySQLErr1062DupEntry = 1062
	// MySQLErr1091CantDrop can't DROP; check that column/key exists
	MySQLErr1091CantDrop = 1091
	// MySQLErr1146NoSuchTable table doesn't exist
	MySQLErr1146NoSuchTable = 1146
	// MySQLErr1826DupFKName duplicate foreign key constraint name
	MySQLErr1826DupFKName = 1826
)

// IsPQError checks if the passed error is the specified Postgres error code,
// as reported by either lib/pq or pgx
func IsPQError(err error, errorCode string) bool {
	code, ok := pqCode(err)
	return ok && code == errorCode
}

// IsAnyPQError checks if the passed error is a Postgres error
func IsAnyPQError(err error) bool {
	_, ok := pqCode(err)
	return ok
}

func pqCode(err error) (code string, ok bool) {
	var pqerr *pq.Error
	var pgerr *pgconn.PgError

	as := func(tgt interface{}) bool { return errors.As(err, tgt) }
	if ee := AsExtendedError(err); ee != nil {
		as = ee.AsError
	}

	switch {
	case as(&pqerr):
		return string(pqerr.Code), true
	case as(&pgerr):
		return pgerr.Code, true
	}
	return "", false
}

// IsMySQLError checks if the passed error is the specified MySQL error number
func IsMySQLError(err error, number uint16) bool {
	var myerr *mysql.MySQLError
	if ee := AsExtendedError(err); ee != nil {
		return ee.AsError(&myerr) && myerr.Number == number
	}

	return errors.As(err, &myerr) && myerr.Number == number
}

// IsSQLiteError checks if the passed error is a SQLite error whose message
// contains msg (case insensitive). SQLite reports most schema errors with the
// generic SQLITE_ERROR code, so the message is the only discriminator.
func IsSQLiteError(err error, msg string) bool {
	var lerr *sqlite.Error
	if ee := AsExtendedError(err); ee != nil {
		if !ee.AsError(&lerr) {
			return false
		}
	} else if !errors.As(err, &lerr) {
		return false
	}

	return strings.Contains(strings.ToLower(lerr.Error()), strings.ToLower(msg))
}

// IsNoRowsError returns whether the error is a sql no rows found
func IsNoRowsError(err error) bool {
	return ContainsError(err, "sql: no rows in result set")
}
