package errors

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/funnelsync/pkg/crm"
	"github.com/jordanlanch/funnelsync/pkg/domain"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/models"
	"github.com/jordanlanch/funnelsync/pkg/push"
)

// OperationIDKey is the context key under which a handler stores the push
// operation a failure belongs to. Error responses echo it back.
const OperationIDKey = "operation_id"

func respond(c echo.Context, status int, resp models.ErrorResponse) error {
	if id, ok := c.Get(OperationIDKey).(string); ok && id != "" {
		resp.OperationID = id
	}
	return c.JSON(status, resp)
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return respond(c, http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// DatabaseError returns a generic database error without exposing internal details
func DatabaseError(c echo.Context, err error) error {
	log.Printf("[DATABASE ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return respond(c, http.StatusInternalServerError, models.ErrorResponse{
		Error:   "database_error",
		Message: "A database error occurred. Please try again later.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return respond(c, http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UpstreamError reports a CRM failure. The CRM status is logged, not returned.
func UpstreamError(c echo.Context, err error) error {
	log.Printf("[UPSTREAM ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return respond(c, http.StatusBadGateway, models.ErrorResponse{
		Error:   "upstream_error",
		Message: "The CRM rejected the request. Please check the funnel's connection.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return respond(c, http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested " + resource + " was not found.",
	})
}

// ConflictError returns a generic conflict error
func ConflictError(c echo.Context, message string) error {
	return respond(c, http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message,
	})
}

// TimeoutError is returned when the client gave up before the push finished
func TimeoutError(c echo.Context, err error) error {
	log.Printf("[TIMEOUT] Path: %s, Error: %v", c.Request().URL.Path, err)

	return respond(c, http.StatusGatewayTimeout, models.ErrorResponse{
		Error:   "timeout",
		Message: "The request was cancelled before it completed.",
	})
}

// Handle maps a service error onto the matching response
func Handle(c echo.Context, err error) error {
	var httpErr *crm.HTTPError
	switch {
	case stderrors.Is(err, push.ErrPushInProgress):
		return ConflictError(c, "A push is already running for this funnel.")
	case stderrors.Is(err, push.ErrNoConnection):
		return NotFoundError(c, "CRM connection")
	case stderrors.Is(err, ledger.ErrNotFound):
		return NotFoundError(c, "push operation")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return TimeoutError(c, err)
	case stderrors.As(err, &httpErr):
		return UpstreamError(c, err)
	}

	switch domain.GetErrorCode(err) {
	case domain.ErrCodeNotFound:
		return NotFoundError(c, "resource")
	case domain.ErrCodeValidation, domain.ErrCodeBadRequest:
		return ValidationError(c, err)
	case domain.ErrCodeConflict:
		return ConflictError(c, "The request conflicts with the current state.")
	case domain.ErrCodeUpstream:
		return UpstreamError(c, err)
	}
	return InternalError(c, err)
}
