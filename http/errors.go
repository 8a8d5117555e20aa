package http

import (
	"errors"
	"net/http"

	"ticketchain/db"
	"ticketchain/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// kindStatus maps the stable rejection kinds to HTTP statuses. Kinds that
// describe a state conflict map to 409, bad attestations to 400.
var kindStatus = map[entities.ErrorKind]int{
	entities.ErrNotFound:            http.StatusNotFound,
	entities.ErrUnauthorized:        http.StatusForbidden,
	entities.ErrInsufficientPayment: http.StatusPaymentRequired,

	entities.ErrInvalidSignature:   http.StatusBadRequest,
	entities.ErrMessageMismatch:    http.StatusBadRequest,
	entities.ErrEventMismatch:      http.StatusBadRequest,
	entities.ErrAttestationExpired: http.StatusBadRequest,

	entities.ErrSoldOut:            http.StatusConflict,
	entities.ErrEventInactive:      http.StatusConflict,
	entities.ErrNoRevenue:          http.StatusConflict,
	entities.ErrAlreadyCheckedIn:   http.StatusConflict,
	entities.ErrSoulBound:          http.StatusConflict,
	entities.ErrAlreadyListed:      http.StatusConflict,
	entities.ErrNotListed:          http.StatusConflict,
	entities.ErrTransferNotAllowed: http.StatusConflict,
	entities.ErrSelfPurchase:       http.StatusConflict,
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var le entities.LedgerError
	if errors.As(err, &le) {
		status, ok := kindStatus[le.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}

		if err := c.JSON(status, errorResponse{Kind: string(le.Kind), Message: le.Message}); err != nil {
			log.FromContext(c.Request().Context()).WithError(err).Error("Failed to write error response")
		}
		return
	}

	// lost serialization conflicts are not retried internally, the caller
	// resubmits
	if db.IsSerializationFailure(err) {
		if err := c.JSON(http.StatusConflict, errorResponse{
			Kind:    "Conflict",
			Message: "concurrent update, retry the request",
		}); err != nil {
			log.FromContext(c.Request().Context()).WithError(err).Error("Failed to write error response")
		}
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		c.Echo().DefaultHTTPErrorHandler(err, c)
		return
	}

	log.FromContext(c.Request().Context()).WithError(err).Error("Unhandled error")
	c.Echo().DefaultHTTPErrorHandler(err, c)
}
