package domain

import (
	"errors"
	"fmt"
)

// Kind classifies fatal errors so callers can translate them at the boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindSecurity
	KindNotFound
	KindExecution
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSecurity:
		return "security"
	case KindNotFound:
		return "not_found"
	case KindExecution:
		return "execution"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrForbiddenOperation = errors.New("forbidden operation")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrTableNotFound      = errors.New("table does not exist")
	ErrNoSource           = errors.New("no backup file provided (via upload or server path)")
	ErrSourceNotFound     = errors.New("backup file not found")
)

// Error is a fatal error carrying the operation that failed and its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return KindUnknown
		}
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

// Wrap prefixes err with op while keeping its kind. Errors without a kind
// are classified as infrastructure failures.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindInfrastructure
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
