package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the load or call sequence the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // configuration loading
	PhaseFetch       Phase = "fetch"       // asset retrieval
	PhaseCompile     Phase = "compile"     // module compilation
	PhaseInstantiate Phase = "instantiate" // sandbox instantiation
	PhaseStart       Phase = "start"       // guest start function
	PhaseBind        Phase = "bind"        // entry point binding
	PhaseCall        Phase = "call"        // entry point invocation
	PhaseDecode      Phase = "decode"      // guest result decoding
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidData     Kind = "invalid_data"
	KindNotFound        Kind = "not_found"
	KindUnsupported     Kind = "unsupported"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindAllocation      Kind = "allocation"
	KindSignature       Kind = "signature_mismatch"
	KindMissingEntry    Kind = "missing_entry"
	KindNotInitialized  Kind = "not_initialized"
	KindTransport       Kind = "transport"
	KindTrap            Kind = "trap"
	KindInstantiation   Kind = "instantiation"
	KindUnexpectedState Kind = "unexpected_state"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
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

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Path sets the location path, e.g. the export or config key involved
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
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

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// NotInitialized creates a not-initialized error for a missing guest or engine
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
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

// OutOfBounds creates an out of bounds error for a guest memory access
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory access out of bounds: offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// SignatureMismatch creates an error for an export whose core type differs
// from the contract
func SignatureMismatch(name, want, got string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindSignature,
		Path:   []string{name},
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// Transport creates an asset transport error
func Transport(location string, cause error) *Error {
	return &Error{
		Phase:  PhaseFetch,
		Kind:   KindTransport,
		Detail: fmt.Sprintf("fetch %s", location),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Trap creates an error for a guest function that trapped or exited
func Trap(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Path:   []string{name},
		Detail: fmt.Sprintf("call %s", name),
		Cause:  cause,
	}
}

// MissingEntry represents a single entry point the guest failed to provide
type MissingEntry struct {
	Name   string // e.g., "format"
	Reason string // e.g., "not registered"
}

// MissingEntriesError is returned when a started guest does not provide
// every required entry point
type MissingEntriesError struct {
	Entries []MissingEntry
}

func (e *MissingEntriesError) Error() string {
	if len(e.Entries) == 0 {
		return "[bind] missing_entry: no entries specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d entry point(s):", len(e.Entries)))
	for _, ent := range e.Entries {
		b.WriteString("\n  - ")
		b.WriteString(ent.Name)
		if ent.Reason != "" {
			b.WriteString(" (")
			b.WriteString(ent.Reason)
			b.WriteByte(')')
		}
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingEntriesError) Is(target error) bool {
	_, ok := target.(*MissingEntriesError)
	return ok
}
