package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrDuplicate            = errors.New("duplicate key")
	ErrInvalid              = errors.New("invalid input")
)

// IntegrityError carries a foreign-key failure reported by the store.
// Unwrap returns the driver error untouched.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrReferentialIntegrity, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func (e *IntegrityError) Is(target error) bool { return target == ErrReferentialIntegrity }
