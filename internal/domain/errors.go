package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds returned by core operations. Callers classify with
// errors.Is and map kinds to transport-level codes at the API boundary.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrLocked           = errors.New("locked")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrStoreUnavailable = errors.New("store unavailable")
)

func Validationf(format string, args ...any) error {
	return wrapKind(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return wrapKind(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...any) error {
	return wrapKind(ErrConflict, format, args...)
}

func Lockedf(format string, args ...any) error {
	return wrapKind(ErrLocked, format, args...)
}

func Forbiddenf(format string, args ...any) error {
	return wrapKind(ErrForbidden, format, args...)
}

func InvalidStatef(format string, args ...any) error {
	return wrapKind(ErrInvalidState, format, args...)
}

func StoreUnavailablef(format string, args ...any) error {
	return wrapKind(ErrStoreUnavailable, format, args...)
}

func wrapKind(kind error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}
