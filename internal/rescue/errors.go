package rescue

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Error carries a kind and a stack trace captured where it was created.
type Error struct {
	kind  *Kind
	msg   string
	cause error
	stack errors.StackTrace
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.cause != nil:
		return e.msg + ": " + e.cause.Error()
	case e.msg != "":
		return e.msg
	case e.cause != nil:
		return e.cause.Error()
	}
	return e.kind.Name()
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() *Kind { return e.kind }

func (e *Error) StackTrace() errors.StackTrace { return e.stack }

func newError(kind *Kind, msg string, cause error) *Error {
	var st stackTracer
	if cause == nil || !stderrors.As(cause, &st) {
		st = errors.New("").(stackTracer)
	}
	return &Error{kind: kind, msg: msg, cause: cause, stack: trimStack(st.StackTrace())}
}

// trimStack drops the frames belonging to this file.
func trimStack(st errors.StackTrace) errors.StackTrace {
	for i, f := range st {
		if !strings.Contains(fmt.Sprintf("%+s", f), "internal/rescue/errors.go") {
			return st[i:]
		}
	}
	return st
}

// New creates an error of the given kind.
func New(kind *Kind, format string, args ...any) error {
	return newError(kind, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches kind to err. A nil err stays nil.
func Wrap(kind *Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return newError(kind, msg, err)
}

func Configuration(format string, args ...any) error {
	return New(KindConfiguration, format, args...)
}

func NotFound(resource string, id any) error {
	return New(KindRecordNotFound, "couldn't find %s with id=%v", resource, id)
}

func AccessDenied(action, resource string) error {
	return New(KindAccessDenied, "access denied: %s on %s", action, resource)
}

func BadRequest(format string, args ...any) error {
	return New(KindBadRequest, format, args...)
}

// DataLayer wraps a query engine failure. Postgres SQLSTATE codes are
// refined into sub-kinds of KindDataLayer.
func DataLayer(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kind := KindDataLayer
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			kind = KindUniqueViolation
		case pgerrcode.ForeignKeyViolation:
			kind = KindForeignKeyViolation
		case pgerrcode.NotNullViolation:
			kind = KindNotNullViolation
		case pgerrcode.CheckViolation:
			kind = KindCheckViolation
		}
	}
	return newError(kind, "", err)
}

// KindOf returns the kind carried by err, or KindError for plain errors.
func KindOf(err error) *Kind {
	var k interface{ Kind() *Kind }
	if stderrors.As(err, &k) && k.Kind() != nil {
		return k.Kind()
	}
	return KindError
}

// IsKind reports whether err is of kind or a descendant of it.
func IsKind(err error, kind *Kind) bool {
	return err != nil && KindOf(err).Is(kind)
}

// Trace renders the stack trace carried by err, one frame per line.
func Trace(err error) []string {
	var st stackTracer
	if !stderrors.As(err, &st) {
		return nil
	}
	frames := st.StackTrace()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, strings.ReplaceAll(fmt.Sprintf("%+v", f), "\n\t", " "))
	}
	return out
}
