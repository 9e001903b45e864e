package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrKeyRevoked      = errors.New("key revoked")
	ErrKeyAlreadyUsed  = errors.New("key already used")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidDuration = errors.New("duration must be zero or a positive number of days")
)

// StorageError wraps a database failure so callers can distinguish it from
// the domain outcomes above.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
