package http

import (
	"errors"
	"net/http"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/quorum"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/services"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func newErrorResponse(code int, err error) ErrorResponse {
	return ErrorResponse{Code: code, Message: err.Error()}
}

// statusFor maps an application error to its HTTP status. The order of the
// cases matters: typed errors wrap their causes.
func statusFor(err error) (int, string) {
	var (
		violation *services.RuleViolationError
		quorumErr *quorum.QuorumError
		commitErr *commit.CommitError
		invariant *order.InvariantViolationError
	)

	switch {
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity, violation.Kind.String()
	case errors.As(err, &invariant):
		return http.StatusUnprocessableEntity, "InvariantBroken"
	case errors.As(err, &quorumErr):
		switch quorumErr.Kind {
		case quorum.Timeout, quorum.Unreachable:
			return http.StatusGatewayTimeout, "Quorum" + quorumErr.Kind.String()
		case quorum.Cancelled:
			return http.StatusServiceUnavailable, "Quorum" + quorumErr.Kind.String()
		default:
			return http.StatusConflict, "Quorum" + quorumErr.Kind.String()
		}
	case errors.As(err, &commitErr):
		if commitErr.Kind == commit.Conflict {
			return http.StatusConflict, commitErr.Kind.String()
		}
		return http.StatusServiceUnavailable, commitErr.Kind.String()
	case errors.Is(err, ports.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, ports.ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsOutOfRange),
		errors.Is(err, errs.ErrVersionIsInvalid):
		return http.StatusBadRequest, "Validation"
	default:
		return http.StatusInternalServerError, ""
	}
}
