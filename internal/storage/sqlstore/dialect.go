package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"customer_reviews/internal/domain"
)

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case MySQL, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unknown db dialect %q (want mysql or sqlite)", s)
	}
}

// dsn adds the connection settings the store relies on.
func (d Dialect) dsn(dsn string) string {
	if d != SQLite {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		dsn += sep + "_pragma=foreign_keys(1)"
		sep = "&"
	}
	if !strings.Contains(dsn, "busy_timeout") {
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	return dsn
}

// MySQL error numbers we translate.
const (
	erDupEntry         = 1062
	erNoReferencedRow  = 1216
	erRowIsReferenced  = 1217
	erRowIsReferenced2 = 1451
	erNoReferencedRow2 = 1452
)

func isForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case erRowIsReferenced, erNoReferencedRow, erRowIsReferenced2, erNoReferencedRow2:
			return true
		}
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		if se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == erDupEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// wrap tags store errors with the domain sentinel they correspond to, keeping the
// driver error reachable through errors.As.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isForeignKeyViolation(err):
		return &domain.IntegrityError{Op: op, Err: err}
	case isDuplicate(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrDuplicate, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
