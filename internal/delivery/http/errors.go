package http

import (
	"errors"
	"net/http"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	pkgErrors "github.com/vogiaan1904/ticketbottle-reservation/pkg/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/response"
)

// respondError translates domain sentinels into the wire envelope.
// Unmapped errors fall through to the 500 handling in pkg/response
// without leaking internals.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var procErr *appErrors.PaymentProcessError
	if errors.As(err, &procErr) {
		status := http.StatusConflict
		if errors.Is(procErr.Cause, appErrors.ErrInsufficientBalance) {
			status = http.StatusBadRequest
		}
		response.Error(w, pkgErrors.NewHTTPError(status, status, procErr.Cause.Error()))
		return
	}

	if httpErr := mapSentinel(err); httpErr != nil {
		response.Error(w, httpErr)
		return
	}

	h.l.Errorf(r.Context(), "http.Handler: %s %s: %v", r.Method, r.URL.Path, err)
	response.Error(w, err)
}

func mapSentinel(err error) *pkgErrors.HTTPError {
	status, ok := sentinelStatus[err]
	if !ok {
		return nil
	}

	return pkgErrors.NewHTTPError(status, status, err.Error())
}

var sentinelStatus = map[error]int{
	appErrors.ErrTokenNotFound:   http.StatusNotFound,
	appErrors.ErrTokenNotActive:  http.StatusForbidden,
	appErrors.ErrTokenExpired:    http.StatusGone,
	appErrors.ErrInvalidToken:    http.StatusUnauthorized,
	appErrors.ErrActivePoolFull:  http.StatusServiceUnavailable,
	appErrors.ErrDuplicateActive: http.StatusConflict,

	appErrors.ErrSeatNotFound: http.StatusNotFound,
	// Unavailability is one conflict family regardless of why the seat
	// is off the market.
	appErrors.ErrSeatTaken:         http.StatusConflict,
	appErrors.ErrSeatHeld:          http.StatusConflict,
	appErrors.ErrSeatNotReservable: http.StatusConflict,

	appErrors.ErrReservationNotFound: http.StatusNotFound,
	appErrors.ErrReservationNotOwned: http.StatusForbidden,
	appErrors.ErrReservationExpired:  http.StatusGone,
	appErrors.ErrReservationState:    http.StatusConflict,

	appErrors.ErrPaymentNotFound: http.StatusNotFound,
	appErrors.ErrPaymentState:    http.StatusConflict,
	appErrors.ErrPaymentInFlight: http.StatusConflict,

	appErrors.ErrInsufficientBalance: http.StatusBadRequest,
	appErrors.ErrInvalidAmount:       http.StatusBadRequest,
	appErrors.ErrUserNotFound:        http.StatusNotFound,

	lock.ErrLockTimeout: http.StatusServiceUnavailable,
}
