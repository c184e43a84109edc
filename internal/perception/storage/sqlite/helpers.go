package sqlite

import (
	"strings"
	"time"
)

const (
	busyRetries    = 5
	busyRetryDelay = 50 * time.Millisecond
)

// retryOnBusy retries fn with increasing backoff while SQLite reports a
// locked database.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusyErr(err) {
			return err
		}
		time.Sleep(busyRetryDelay * time.Duration(attempt+1))
	}
	return err
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
