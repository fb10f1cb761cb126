package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrUnavailable is returned when the store cannot be reached
var ErrUnavailable = errors.New("database unavailable")

// IsUnavailable reports whether err is a connectivity failure rather than a
// query or constraint error
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
