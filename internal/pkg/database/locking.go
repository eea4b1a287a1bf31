package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm/clause"
)

const (
	mysqlLockNoWait      = 3572 // ER_LOCK_NOWAIT
	mysqlLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
)

// ErrLockUnavailable is returned when a row lock could not be acquired
// immediately.
var ErrLockUnavailable = errors.New("row lock unavailable")

// ForUpdateNoWait is the locking clause for refresh-and-persist sequences.
// Callers that lose the race get ErrLockUnavailable instead of blocking.
func ForUpdateNoWait() clause.Locking {
	return clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsNoWait}
}

// IsLockUnavailable reports whether err is MySQL refusing or timing out a
// row lock.
func IsLockUnavailable(err error) bool {
	if errors.Is(err, ErrLockUnavailable) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockNoWait || myErr.Number == mysqlLockWaitTimeout
	}
	return false
}
