package reconcile

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrQuery matches every *QueryError.
	ErrQuery = errors.New("query error")
)

// Statement kinds reported by QueryError.Op.
const (
	OpSelect      = "select"
	OpDelete      = "delete"
	OpUpdate      = "update"
	OpInsert      = "insert"
	OpTransaction = "transaction"
)

// ConfigurationError reports invalid input detected before any I/O.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// QueryError reports a failure of the backing store while reading or writing.
type QueryError struct {
	Op    string
	Table string
	// Key is empty for statements not tied to a row.
	Key string
	Err error
}

func (e *QueryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s (key %s): %v", e.Op, e.Table, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrQuery) match.
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

// IsConnectivity reports whether err was caused by a broken or unreachable
// connection rather than by a rejected statement.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ApplyError is returned when a statement fails during the apply stage.
// Summary holds the work that persisted: when RolledBack is set the table is
// back in its pre-call state and Summary reports no change.
type ApplyError struct {
	Summary    Summary
	RolledBack bool
	Err        error
}

func (e *ApplyError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("apply rolled back: %v", e.Err)
	}
	return fmt.Sprintf("apply stopped after %d deletes, %d updates, %d inserts: %v",
		e.Summary.Deleted, e.Summary.Updated, e.Summary.Inserted, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
