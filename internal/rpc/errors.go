package rpc

import (
	"context"
	"errors"

	"github.com/and161185/binqr/internal/errs"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Metadata keys carried in ErrorInfo.
const (
	MetaField   = "field"
	MetaMessage = "message"
	MetaOp      = "op"
)

// codeOf maps a classified error to its gRPC code.
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, errs.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, errs.ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, errs.ErrInvalidRecoveryToken):
		return codes.InvalidArgument
	}
	switch errs.KindOf(err) {
	case errs.KindAuth:
		return codes.Unauthenticated
	case errs.KindInvite, errs.KindConflict:
		return codes.FailedPrecondition
	case errs.KindValidation:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// ToStatus converts a service error into a gRPC status error carrying an ErrorInfo
// with the stable reason. Unclassified causes are not leaked to the caller.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codeOf(err)
	reason := errs.Reason(err)
	msg := err.Error()
	meta := map[string]string{}

	var ve *errs.ValidationError
	var pe *errs.PersistenceError
	switch {
	case errors.As(err, &ve):
		meta[MetaField], meta[MetaMessage] = ve.Field, ve.Message
	case errors.As(err, &pe):
		meta[MetaOp] = pe.Op
		msg = pe.Error()
	case reason == "":
		if code == codes.Internal {
			msg = "internal"
		}
		return status.Error(code, msg)
	}

	st, derr := status.New(code, msg).WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   errs.Domain,
		Metadata: meta,
	})
	if derr != nil {
		return status.New(code, msg).Err()
	}
	return st.Err()
}

// FromStatus restores the domain error of a status produced by ToStatus.
// Statuses without a BinQR ErrorInfo map by code: Unauthenticated to ErrUnauthorized,
// NotFound to ErrNotFound; anything else is returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errs.Domain {
			continue
		}
		if e := errs.FromReason(info.GetReason(), st.Message(), info.GetMetadata()); e != nil {
			return e
		}
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return errs.ErrUnauthorized
	case codes.NotFound:
		return errs.ErrNotFound
	}
	return err
}
