// Package apperr carries the error kinds the inventory core reports and maps
// them to HTTP responses at the transport boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindInvariantViolation
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Status: HTTP-код для вида ошибки.
func (k Kind) Status() int {
	switch k {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Fields/Detail name the offending fields of a conflict or validation error.
	Fields []string
	Detail map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so that errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrPersistence        = &Error{Kind: KindPersistence}
)

func InvalidArgument(op, field, format string, args ...any) *Error {
	e := &Error{Kind: KindInvalidArgument, Op: op, Message: fmt.Sprintf(format, args...)}
	if field != "" {
		e.Fields = []string{field}
	}
	return e
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func InvariantViolation(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvariantViolation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Message: "storage failure", Err: err}
}

// Conflict builds a uniqueness failure naming every offending field, in order.
// values is keyed by field name.
func Conflict(op string, fields []string, values map[string]string, cause error) *Error {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v, ok := values[f]; ok {
			parts = append(parts, fmt.Sprintf("%s %q", f, v))
		} else {
			parts = append(parts, f)
		}
	}
	msg := "duplicate value"
	if len(parts) > 0 {
		msg = "duplicate: " + strings.Join(parts, " and ") + " already exists"
	}
	return &Error{Kind: KindConflict, Op: op, Message: msg, Fields: fields, Detail: values, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
