package owasm

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of the failure modes the engine can surface
// across the host/guest boundary.
type Kind int

const (
	// KindCompile indicates the WASM bytes failed validation or compilation.
	KindCompile Kind = iota
	// KindInstantiation indicates a compiled artifact could not be instantiated
	// against the given import table (missing symbol, type mismatch, ...).
	KindInstantiation
	// KindRun indicates the guest trapped for a reason other than one of the
	// more specific kinds below, or the requested entry point was missing.
	KindRun
	// KindOutOfGas indicates the metered gas budget was exhausted.
	KindOutOfGas
	// KindMemoryOutOfBound indicates a host call would read or write outside
	// current linear memory, or no memory export exists.
	KindMemoryOutOfBound
	// KindBadMemorySection indicates the module exports no memory at all.
	KindBadMemorySection
	// KindSpanTooSmall indicates the guest passed a length exceeding the
	// request's span size.
	KindSpanTooSmall
	// KindUnavailableData is raised by Env when requested data isn't ready.
	KindUnavailableData
	// KindWrongPeriodAction is raised by Env when a phase-restricted call is
	// made outside its legal phase.
	KindWrongPeriodAction
)

func (k Kind) String() string {
	switch k {
	case KindCompile:
		return "CompileError"
	case KindInstantiation:
		return "InstantiationError"
	case KindRun:
		return "RunError"
	case KindOutOfGas:
		return "OutOfGasError"
	case KindMemoryOutOfBound:
		return "MemoryOutOfBoundError"
	case KindBadMemorySection:
		return "BadMemorySectionError"
	case KindSpanTooSmall:
		return "SpanTooSmallError"
	case KindUnavailableData:
		return "UnavailableData"
	case KindWrongPeriodAction:
		return "WrongPeriodAction"
	default:
		return "UnknownError"
	}
}

// Error is the single tagged-union error type the engine returns. Every
// failure reported across a Compile/Run boundary is one of these, carrying
// a Kind that the caller can switch on or compare with errors.Is against the
// Err* sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrOutOfGas) (and the other Err* sentinels below)
// work against a *Error without comparing Message/Cause.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok {
		return false
	}
	return sentinel.Kind == e.Kind && sentinel.Message == ""
}

// newErr constructs a *Error of the given kind.
func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors usable with errors.Is, one per closed error kind. These
// carry no Message/Cause of their own; Error.Is treats any *Error of the
// same Kind as matching.
var (
	ErrCompile           = &Error{Kind: KindCompile}
	ErrInstantiation     = &Error{Kind: KindInstantiation}
	ErrRun               = &Error{Kind: KindRun}
	ErrOutOfGas          = &Error{Kind: KindOutOfGas}
	ErrMemoryOutOfBound  = &Error{Kind: KindMemoryOutOfBound}
	ErrBadMemorySection  = &Error{Kind: KindBadMemorySection}
	ErrSpanTooSmall      = &Error{Kind: KindSpanTooSmall}
	ErrUnavailableData   = &Error{Kind: KindUnavailableData}
	ErrWrongPeriodAction = &Error{Kind: KindWrongPeriodAction}
)

// CompileError wraps a compilation/validation failure with its underlying cause.
func CompileError(message string, cause error) *Error {
	return newErr(KindCompile, message, cause)
}

// InstantiationError wraps an instantiation failure with its underlying cause.
func InstantiationError(message string, cause error) *Error {
	return newErr(KindInstantiation, message, cause)
}

// RunError wraps a trap or missing-entry-point failure.
func RunError(message string, cause error) *Error {
	return newErr(KindRun, message, cause)
}

// OutOfGasError reports gas exhaustion.
func OutOfGasError() *Error {
	return newErr(KindOutOfGas, "gas budget exhausted", nil)
}

// MemoryOutOfBoundError reports a guest-memory range check failure.
func MemoryOutOfBoundError(message string) *Error {
	return newErr(KindMemoryOutOfBound, message, nil)
}

// BadMemorySectionError reports a module with no exported memory.
func BadMemorySectionError() *Error {
	return newErr(KindBadMemorySection, "module exports no memory", nil)
}

// SpanTooSmallError reports a guest-supplied length exceeding span_size.
func SpanTooSmallError() *Error {
	return newErr(KindSpanTooSmall, "length exceeds span size", nil)
}

// IsOutOfGas reports whether err is (or wraps) an out-of-gas error.
func IsOutOfGas(err error) bool {
	return errors.Is(err, ErrOutOfGas)
}

// ErrorKind reports the closed error kind of err, if err is (or wraps) a *Error.
func ErrorKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
