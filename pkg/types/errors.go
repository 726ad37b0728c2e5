// Package types defines error types for the file service.
package types

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidPath
	KindPermissionDenied
	KindLocalInvocationUnsupported
	KindStorageIO
	KindIncompleteRead
	KindFileTooLarge
	KindNotImplemented
	KindInternalMisuse
)

var kindNames = map[Kind]string{
	KindUnknown:                    "Unknown",
	KindInvalidPath:                "InvalidPath",
	KindPermissionDenied:           "PermissionDenied",
	KindLocalInvocationUnsupported: "LocalInvocationUnsupported",
	KindStorageIO:                  "StorageIOError",
	KindIncompleteRead:             "IncompleteRead",
	KindFileTooLarge:               "FileTooLarge",
	KindNotImplemented:             "NotImplemented",
	KindInternalMisuse:             "InternalMisuse",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String. Unrecognized names yield KindUnknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Sentinels, one per kind. ServiceError values match them with errors.Is.
var (
	ErrInvalidPath                = errors.New("invalid path")
	ErrPermissionDenied           = errors.New("permission denied")
	ErrLocalInvocationUnsupported = errors.New("file service doesn't make sense for local clients")
	ErrStorageIO                  = errors.New("storage i/o error")
	ErrIncompleteRead             = errors.New("could not read entire file")
	ErrFileTooLarge               = errors.New("file too large, cannot transfer")
	ErrNotImplemented             = errors.New("not implemented")
	ErrInternalMisuse             = errors.New("internal misuse")
)

var kindSentinels = map[Kind]error{
	KindInvalidPath:                ErrInvalidPath,
	KindPermissionDenied:           ErrPermissionDenied,
	KindLocalInvocationUnsupported: ErrLocalInvocationUnsupported,
	KindStorageIO:                  ErrStorageIO,
	KindIncompleteRead:             ErrIncompleteRead,
	KindFileTooLarge:               ErrFileTooLarge,
	KindNotImplemented:             ErrNotImplemented,
	KindInternalMisuse:             ErrInternalMisuse,
}

// ServiceError is the single error type returned by file service operations.
type ServiceError struct {
	Kind Kind
	Op   string // operation that failed, e.g. "put"
	Path string // client-visible path, may be empty
	Msg  string // detail; defaults to the kind's sentinel text
	Err  error  // underlying cause, may be nil
}

// NewError builds a ServiceError of the given kind.
func NewError(kind Kind, op, path, msg string) *ServiceError {
	return &ServiceError{Kind: kind, Op: op, Path: path, Msg: msg}
}

// WrapError builds a ServiceError of the given kind around cause.
func WrapError(kind Kind, op, path string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Op: op, Path: path, Err: cause}
}

func (e *ServiceError) Error() string {
	msg := e.Msg
	if msg == "" {
		if s, ok := kindSentinels[e.Kind]; ok {
			msg = s.Error()
		} else {
			msg = e.Kind.String()
		}
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ServiceError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first ServiceError in err's chain.
func KindOf(err error) Kind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
