package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/apperr"
)

// errorBody renders err as {"error": code, "message": msg, ...context}.
// Anything outside the error taxonomy is reported as 503.
func errorBody(err error) (int, echo.Map) {
	if e, ok := apperr.As(err); ok {
		body := echo.Map{}
		for k, v := range e.Context {
			body[k] = v
		}
		body["error"] = e.Code
		body["message"] = e.Message
		return e.Status, body
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, echo.Map{"error": statusCode(he.Code), "message": msg}
	}
	slog.Error("request failed", "error", err)
	return http.StatusServiceUnavailable, echo.Map{
		"error":   apperr.CodeServiceUnavailable,
		"message": "service temporarily unavailable",
	}
}

// statusCode turns 404 into "NOT_FOUND".
func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// HTTPErrorHandler is installed on the echo instance so that errors
// returned by handlers and echo itself share one body shape.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorBody(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}

// validationError converts validator failures into a VALIDATION error that
// lists the failing fields and tags.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("invalid request")
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return apperr.Validation("request validation failed").With("fields", fields)
}
