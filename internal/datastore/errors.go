package datastore

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// ErrorCode extracts a driver error code such as "mysql:1062" for log context.
func ErrorCode(err error) (string, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("mysql:%d", myErr.Number), true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return fmt.Sprintf("sqlite:%d", int(liteErr.ExtendedCode)), true
	}

	return "", false
}
