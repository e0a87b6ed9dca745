package netapi

import (
	"errors"
	"net/http"
)

// ErrorCode names a dispatch failure kind in the exception envelope.
type ErrorCode string

const (
	CodeRoutingError          ErrorCode = "RoutingError"
	CodeUnknownEndpoint       ErrorCode = "UnknownEndpoint"
	CodeParametersError       ErrorCode = "ParametersError"
	CodeInvalidPropertyFormat ErrorCode = "InvalidPropertyFormat"
	CodeNotAllowed            ErrorCode = "NotAllowed"
	CodeInstantiationError    ErrorCode = "InstantiationError"
	CodeApplicationError      ErrorCode = "ApplicationError"
	CodeSerializationError    ErrorCode = "SerializationError"
	CodeIOError               ErrorCode = "IOError"
	CodeIncompatibleInterface ErrorCode = "IncompatibleInterface"
)

var (
	// ErrRouting is returned for a malformed dispatch path.
	ErrRouting = errors.New("malformed dispatch path")
	// ErrUnknownEndpoint is returned when the service or exposed operation does not exist.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	// ErrParameters is returned when request parameters cannot be bound.
	ErrParameters = errors.New("parameter binding failed")
	// ErrInvalidPropertyFormat is returned when a bound argument fails validation.
	ErrInvalidPropertyFormat = errors.New("invalid property format")
	// ErrNotAllowed is returned when the security check rejects the call.
	ErrNotAllowed = errors.New("not allowed")
	// ErrInstantiation is returned when the handler cannot be constructed.
	ErrInstantiation = errors.New("handler instantiation failed")
	// ErrApplication is returned when the operation itself fails.
	ErrApplication = errors.New("operation failed")
	// ErrSerialization is returned when the result cannot be serialized.
	ErrSerialization = errors.New("serialization failed")
	// ErrIO is returned for transport and session store failures.
	ErrIO = errors.New("i/o failure")
	// ErrIncompatibleInterface is returned when a login operation does not return a security profile.
	ErrIncompatibleInterface = errors.New("incompatible interface")

	// ErrEngineNotReady is returned by Builder.Build when required dependencies are missing.
	ErrEngineNotReady = errors.New("engine is not initialized")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

var codeKinds = map[ErrorCode]error{
	CodeRoutingError:          ErrRouting,
	CodeUnknownEndpoint:       ErrUnknownEndpoint,
	CodeParametersError:       ErrParameters,
	CodeInvalidPropertyFormat: ErrInvalidPropertyFormat,
	CodeNotAllowed:            ErrNotAllowed,
	CodeInstantiationError:    ErrInstantiation,
	CodeApplicationError:      ErrApplication,
	CodeSerializationError:    ErrSerialization,
	CodeIOError:               ErrIO,
	CodeIncompatibleInterface: ErrIncompatibleInterface,
}

// Kind returns the sentinel error for c.
func (c ErrorCode) Kind() error { return codeKinds[c] }

// Status maps c to the HTTP status written with its exception envelope.
func (c ErrorCode) Status() int {
	switch c {
	case CodeRoutingError, CodeParametersError, CodeInvalidPropertyFormat:
		return http.StatusBadRequest
	case CodeUnknownEndpoint:
		return http.StatusNotFound
	case CodeNotAllowed:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Application reports whether c describes a failure of the operation body
// rather than of the dispatch machinery.
func (c ErrorCode) Application() bool {
	return c == CodeApplicationError || c == CodeIncompatibleInterface
}

// DispatchError is a failure raised anywhere in the dispatch pipeline.
// errors.Is matches both the kind sentinel and the wrapped cause.
type DispatchError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func dispatchError(code ErrorCode, message string, cause error) *DispatchError {
	return &DispatchError{Code: code, Message: message, Err: cause}
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() []error {
	out := make([]error, 0, 2)
	if kind := e.Code.Kind(); kind != nil {
		out = append(out, kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Causes returns the messages of the wrapped cause chain, outermost first.
func (e *DispatchError) Causes() []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(err error)
	walk = func(err error) {
		if err == nil {
			return
		}
		msg := err.Error()
		if _, dup := seen[msg]; !dup && msg != "" {
			seen[msg] = struct{}{}
			out = append(out, msg)
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, child := range u.Unwrap() {
				walk(child)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(e.Err)
	return out
}

// asDispatchError classifies err, wrapping foreign errors as code.
func asDispatchError(err error, code ErrorCode) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	return dispatchError(code, err.Error(), err)
}
