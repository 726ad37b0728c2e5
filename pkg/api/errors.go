package api

import (
	"errors"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ajaxzhan/fileserver/pkg/types"
)

// ErrorDomain tags ErrorInfo details produced by this service.
const ErrorDomain = "fileserver"

var kindCodes = map[types.Kind]codes.Code{
	types.KindInvalidPath:                codes.InvalidArgument,
	types.KindPermissionDenied:           codes.PermissionDenied,
	types.KindLocalInvocationUnsupported: codes.FailedPrecondition,
	types.KindStorageIO:                  codes.Internal,
	types.KindIncompleteRead:             codes.DataLoss,
	types.KindFileTooLarge:               codes.ResourceExhausted,
	types.KindNotImplemented:             codes.Unimplemented,
	types.KindInternalMisuse:             codes.Internal,
}

// CodeForKind returns the gRPC code a service error kind travels as.
func CodeForKind(k types.Kind) codes.Code {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return codes.Unknown
}

// StatusFromError converts err into a gRPC status. Service errors get their
// kind attached as an ErrorInfo detail so clients can recover it.
func StatusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	var se *types.ServiceError
	if !errors.As(err, &se) {
		if st, ok := status.FromError(err); ok {
			return st
		}
		return status.New(codes.Unknown, err.Error())
	}

	st := status.New(CodeForKind(se.Kind), se.Error())
	info := &errdetails.ErrorInfo{
		Reason: se.Kind.String(),
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"op":   se.Op,
			"path": se.Path,
		},
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		return detailed
	}
	return st
}

// ToStatusError is StatusFromError(err).Err(), preserving nil.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	return StatusFromError(err).Err()
}

// ErrorFromStatus turns a gRPC error carrying a file service ErrorInfo back
// into a *types.ServiceError. Other errors are returned unchanged.
func ErrorFromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		kind := types.ParseKind(info.GetReason())
		if kind == types.KindUnknown {
			return err
		}
		md := info.GetMetadata()
		se := &types.ServiceError{Kind: kind, Op: md["op"], Path: md["path"]}
		// The status message is the formatted server-side error; keep only
		// the detail so Error() renders it the same way.
		se.Msg = strings.TrimPrefix(st.Message(), errorPrefix(se.Op, se.Path))
		return se
	}
	return err
}

// errorPrefix is the "op path: " lead ServiceError.Error puts before the detail.
func errorPrefix(op, path string) string {
	switch {
	case op != "" && path != "":
		return op + " " + path + ": "
	case op != "":
		return op + ": "
	default:
		return ""
	}
}

// KindFromStatus returns the service error kind carried by err, or
// KindUnknown.
func KindFromStatus(err error) types.Kind {
	return types.KindOf(ErrorFromStatus(err))
}
