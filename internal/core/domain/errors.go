package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrFileConflict       = errors.New("file conflict")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrStorageIO          = errors.New("storage io failure")
	ErrSchedulerFault     = errors.New("scheduler fault")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
	ErrNotStarted         = errors.New("organizer not started")
	ErrUnsupportedInvoice = errors.New("unsupported invoice type")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns the first known error kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrFileConflict,
		ErrMalformedRecord,
		ErrInvalidInput,
		ErrUnsupportedInvoice,
		ErrNotStarted,
		ErrTemporary,
		ErrSchedulerFault,
		ErrStorageIO,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
