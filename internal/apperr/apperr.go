// Package apperr defines the structured error returned by every guest-facing
// operation.  An Error carries the HTTP-class status, a stable machine code,
// a human message and optional context (for example the fresh session state
// attached to a STALE_STATE failure) so that callers can render it without
// guessing what went wrong.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.  They are part of the public contract with clients.
const (
	CodeStaleState         = "STALE_STATE"
	CodeNothingToPay       = "NOTHING_TO_PAY"
	CodeInvalidSplit       = "INVALID_SPLIT"
	CodeSplitPlanLocked    = "SPLIT_PLAN_LOCKED"
	CodeSplitPlanRequired  = "SPLIT_PLAN_REQUIRED"
	CodeSplitPlanNotFound  = "SPLIT_PLAN_NOT_FOUND"
	CodeItemsAlreadyPaid   = "ITEMS_ALREADY_PAID"
	CodeTipMismatch        = "TIP_MISMATCH"
	CodeInvalidTip         = "INVALID_TIP"
	CodePaidItem           = "PAID_ITEM"
	CodeOrderLocked        = "ORDER_LOCKED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeCollision          = "COLLISION"
	CodeInProgress         = "IN_PROGRESS"
	CodeQuoteInvalid       = "QUOTE_INVALID"
	CodeInvalidMode        = "INVALID_MODE"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionClosed      = "SESSION_CLOSED"
	CodeInvalidQty         = "INVALID_QTY"
	CodeEmptyCart          = "EMPTY_CART"
	CodeMenuItemNotFound   = "MENU_ITEM_NOT_FOUND"
	CodeCartItemNotFound   = "CART_ITEM_NOT_FOUND"
	CodeOrderItemNotFound  = "ORDER_ITEM_NOT_FOUND"
	CodeVenueNotFound      = "VENUE_NOT_FOUND"
	CodeValidation         = "VALIDATION"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeForbidden          = "FORBIDDEN"
	CodeRateLimited        = "RATE_LIMITED"
)

// Error is an expected, user-facing failure.
type Error struct {
	Status  int
	Code    string
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// With returns a copy of e carrying an extra context value.
func (e *Error) With(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Status: e.Status, Code: e.Code, Message: e.Message, Context: ctx}
}

// New builds an Error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// As reports whether err wraps an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func Stale(message string) *Error { return New(http.StatusConflict, CodeStaleState, message) }

func NothingToPay() *Error {
	return New(http.StatusConflict, CodeNothingToPay, "nothing left to pay")
}

func Unauthorized() *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, "invalid session token")
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, CodeValidation, message)
}

func SessionNotFound() *Error {
	return New(http.StatusNotFound, CodeSessionNotFound, "table session not found")
}

func SessionClosed() *Error {
	return New(http.StatusConflict, CodeSessionClosed, "table session is closed")
}

func QuoteInvalid() *Error {
	return New(http.StatusConflict, CodeQuoteInvalid, "quote expired or invalid")
}
