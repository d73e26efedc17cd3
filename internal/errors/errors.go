package errors

import "fmt"

// Error is the structured error type returned by every andadb package.
// It carries enough context for the caller to branch on Kind, log
// structured details, and (for the KIP dry-run path) build the
// {kind, path} error list scenario S5 requires.
type Error struct {
	// Kind is the exhaustive failure classification (§7).
	Kind Kind

	// Message is the human-readable description.
	Message string

	// Path identifies the KIP AST location or field path the error
	// concerns, when applicable (e.g. a dry-run validation error).
	Path string

	// Severity is derived from Kind at construction time.
	Severity Severity

	// Details carries additional structured context (doc_id, page id,
	// segment id, expected/actual dimension, and so on).
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error

	// Retryable is almost always false for core errors; it exists so
	// the daemon's wire client can mark transport-level Io failures
	// retryable without needing a second error type.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, &Error{Kind: NotFound}) works as expected.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns e for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithPath sets the AST/field path the error concerns.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Severity: severityForKind(kind),
	}
}

// Wrap constructs an *Error of the given kind around an existing
// error, preserving it as Cause for errors.Unwrap chains.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:     kind,
		Message:  err.Error(),
		Severity: severityForKind(kind),
		Cause:    err,
	}
}

// NotFoundf constructs a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Duplicatef constructs a Duplicate error.
func Duplicatef(format string, args ...any) *Error {
	return New(Duplicate, fmt.Sprintf(format, args...))
}

// Validationf constructs a Validation error.
func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// DimensionMismatchf constructs a DimensionMismatch error.
func DimensionMismatchf(format string, args ...any) *Error {
	return New(DimensionMismatch, fmt.Sprintf(format, args...))
}

// Corruptionf constructs a Corruption error.
func Corruptionf(format string, args ...any) *Error {
	return New(Corruption, fmt.Sprintf(format, args...))
}

// Internalf constructs an Internal error.
func Internalf(format string, args ...any) *Error {
	return New(Internal, fmt.Sprintf(format, args...))
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

// as is a tiny local errors.As to avoid importing the stdlib package
// under the name "errors" twice within this package.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if as(err, &e) {
		return e.Retryable
	}
	return false
}

// GetKind extracts the Kind from err, or "" if err is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return ""
}
