package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLayout      Phase = "layout"      // layout construction
	PhaseEncode      Phase = "encode"      // Go value to struct buffer
	PhaseDecode      Phase = "decode"      // struct buffer to Go value
	PhaseTree        Phase = "tree"        // control tree construction
	PhaseResolve     Phase = "resolve"     // path resolution
	PhaseExchange    Phase = "exchange"    // bridge round trip
	PhaseTransaction Phase = "transaction" // transaction execution
	PhaseReport      Phase = "report"      // resolution report queries
	PhaseLoad        Phase = "load"        // profile loading
)

// Kind categorizes the error
type Kind string

const (
	KindFieldNotFound        Kind = "field_not_found"
	KindTypeMismatch         Kind = "type_mismatch"
	KindBufferSizeMismatch   Kind = "buffer_size_mismatch"
	KindPathNotFound         Kind = "path_not_found"
	KindDuplicateControlPath Kind = "duplicate_control_path"
	KindExchangeFailed       Kind = "exchange_failed"
	KindTimeout              Kind = "timeout"
	KindUnsupported          Kind = "unsupported_operation"
	KindInvalidLayout        Kind = "invalid_layout"
	KindInvalidInput         Kind = "invalid_input"
	KindReleased             Kind = "released"
)

// Sentinels for errors.Is checks that ignore the phase.
var (
	ErrFieldNotFound        = &Error{Kind: KindFieldNotFound}
	ErrTypeMismatch         = &Error{Kind: KindTypeMismatch}
	ErrBufferSizeMismatch   = &Error{Kind: KindBufferSizeMismatch}
	ErrPathNotFound         = &Error{Kind: KindPathNotFound}
	ErrDuplicateControlPath = &Error{Kind: KindDuplicateControlPath}
	ErrExchangeFailed       = &Error{Kind: KindExchangeFailed}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrUnsupported          = &Error{Kind: KindUnsupported}
	ErrInvalidLayout        = &Error{Kind: KindInvalidLayout}
	ErrReleased             = &Error{Kind: KindReleased}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	GoType    string
	FieldType string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.FieldType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.FieldType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", field type ")
			b.WriteString(e.FieldType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("field type ")
			b.WriteString(e.FieldType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.FieldType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// FieldType sets the native field type name
func (b *Builder) FieldType(t string) *Builder {
	b.err.FieldType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, fieldType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		GoType:    goType,
		FieldType: fieldType,
	}
}

// FieldNotFound creates an error for a name absent from a layout
func FieldNotFound(phase Phase, layout, field string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldNotFound,
		Path:   []string{layout, field},
		Detail: fmt.Sprintf("field %q not in layout %q", field, layout),
	}
}

// BufferSizeMismatch creates an error for a buffer that does not match a layout size
func BufferSizeMismatch(phase Phase, layout string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBufferSizeMismatch,
		Path:   []string{layout},
		Detail: fmt.Sprintf("buffer is %d bytes, layout needs %d", got, want),
		Value:  got,
	}
}

// PathNotFound creates an error for an unresolvable control path
func PathNotFound(root, path string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindPathNotFound,
		Path:   []string{root},
		Detail: fmt.Sprintf("no control at %q", path),
		Value:  path,
	}
}

// DuplicateControlPath creates a tree construction error for a path registered twice
func DuplicateControlPath(root, path string) *Error {
	return &Error{
		Phase:  PhaseTree,
		Kind:   KindDuplicateControlPath,
		Path:   []string{root},
		Detail: fmt.Sprintf("control path %q registered twice", path),
		Value:  path,
	}
}

// ExchangeFailed wraps a bridge failure
func ExchangeFailed(query string, id int32, cause error) *Error {
	return &Error{
		Phase:  PhaseExchange,
		Kind:   KindExchangeFailed,
		Path:   []string{query},
		Detail: fmt.Sprintf("exchange with query %d failed", id),
		Cause:  cause,
	}
}

// Timeout creates an error for a bounded wait that was exceeded
func Timeout(phase Phase, query string, limit time.Duration, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTimeout,
		Path:   []string{query},
		Detail: fmt.Sprintf("exceeded %s", limit),
		Value:  limit,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidLayout creates a layout construction error
func InvalidLayout(layout, detail string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindInvalidLayout,
		Path:   []string{layout},
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Released creates an error for use of a struct view after release
func Released(layout string) *Error {
	return &Error{
		Phase:  PhaseTransaction,
		Kind:   KindReleased,
		Path:   []string{layout},
		Detail: "struct view used after release",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a profile loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// Is is errors.Is from the standard library, re-exported so callers
// importing this package need no alias.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
