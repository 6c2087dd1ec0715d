package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store and service. Callers classify with
// errors.Is or KindOf; implementations wrap them with detail using %w.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Kind is the coarse classification of an error returned by a store.
type Kind int

const (
	KindNone Kind = iota
	KindUnauthenticated
	KindNotFound
	KindValidation
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindBackend:
		return "backend_unavailable"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Errors that wrap none of the sentinels count as
// backend failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindBackend
	}
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the entity and id that was looked up.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}
