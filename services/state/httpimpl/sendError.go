package httpimpl

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/niklaslong/zebra/errors"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Status int32  `json:"status"`
	Code   int32  `json:"code"`
	Err    string `json:"error"`
}

func sendError(c echo.Context, status int, err error) error {
	code := errors.ERR_UNKNOWN

	var e *errors.Error
	if errors.As(err, &e) {
		code = e.Code()
	}

	return c.JSON(status, &errorResponse{
		Status: int32(status),
		Code:   int32(code),
		Err:    err.Error(),
	})
}

// statusOf maps the errors of the state service to a status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrBlockNotFound),
		errors.Is(err, errors.ErrTxNotFound),
		errors.Is(err, errors.ErrUtxoNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrBlockExists):
		return http.StatusConflict
	case errors.IsBlockRejection(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrServiceNotStarted), errors.IsTemporaryError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
