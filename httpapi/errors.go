package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	authgate "github.com/altairpay/authgate"
)

// renderError maps a gateway error onto an HTTP status and the ServiceError
// envelope. Unknown errors render as a bare InternalServerError so backend
// detail never leaks to callers.
func renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	envelope := &authgate.ServiceError{
		ErrorCode: authgate.CodeInternalServerError,
		Message:   "internal server error",
	}

	var (
		vErr *authgate.VersionMismatchError
		cErr *authgate.ChallengeError
	)
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeSettingsVersionMismatch,
			Message:   "settings version not accepted",
			InnerError: &authgate.InnerError{
				Code:   authgate.CodeSettingsVersionMismatch,
				Target: vErr.Target,
			},
		}
	case errors.As(err, &cErr):
		status = http.StatusBadRequest
		envelope = &authgate.ServiceError{
			ErrorCode: cErr.ErrorCode,
			Message:   "challenge " + string(cErr.Status),
			InnerError: &authgate.InnerError{
				Code:               cErr.ErrorCode,
				UserDisplayMessage: cErr.UserDisplayMessage,
			},
		}
	case errors.Is(err, authgate.ErrInstrumentNotFound):
		status = http.StatusBadRequest
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeInstrumentNotFound,
			Message:   "payment instrument not found",
		}
	case errors.Is(err, authgate.ErrSessionNotFound):
		status = http.StatusNotFound
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeSessionNotFound,
			Message:   "payment session not found",
		}
	case errors.Is(err, authgate.ErrInvalidAccountID):
		status = http.StatusBadRequest
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeInvalidAccountID,
			Message:   "invalid account id",
		}
	case errors.Is(err, authgate.ErrInvalidRequest):
		status = http.StatusBadRequest
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeInvalidRequestData,
			Message:   err.Error(),
		}
	case errors.Is(err, authgate.ErrAttemptsExceeded):
		status = http.StatusTooManyRequests
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeInvalidRequestData,
			Message:   "authenticate attempts exceeded",
		}
	case errors.Is(err, authgate.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidToken):
		status = http.StatusUnauthorized
		envelope = &authgate.ServiceError{
			ErrorCode: authgate.CodeInvalidRequestData,
			Message:   "invalid bearer token",
		}
	}

	writeJSON(w, status, envelope)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
