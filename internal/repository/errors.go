// Package repository defines the persistence contracts of the allotment
// service and their MySQL implementation.  Sentinel errors below let the
// service layer tell missing rows and lost races apart from
// infrastructure failures.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write loses against concurrent state: a
// unique key already taken, an optimistic version or status that moved on,
// or a lock the server gave up waiting for.
var ErrConflict = errors.New("conflict")

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// translate maps driver errors to the sentinels above.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry, mysqlLockWaitTimeout, mysqlDeadlock:
			return ErrConflict
		}
	}
	return err
}
