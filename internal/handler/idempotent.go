package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/idempotency"
)

const (
	// IdempotencyKeyHeader names the client-chosen retry key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from the idempotency store.
	ReplayedHeader = "Idempotent-Replayed"
	maxKeyLen      = 255
	maxBodyBytes   = 1 << 20
)

// operation runs one guest mutation and returns the status and payload of a
// successful outcome.
type operation func(ctx context.Context, body []byte) (int, any, error)

// readBody drains the request body, bounded to maxBodyBytes.
func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, apperr.Validation("unreadable request body")
	}
	if len(body) > maxBodyBytes {
		return nil, apperr.New(http.StatusRequestEntityTooLarge, apperr.CodeValidation, "request body too large")
	}
	return body, nil
}

// render turns an operation outcome into the bytes that are sent and, for
// keyed requests, cached.  Business failures are rendered; any other error
// is returned so the idempotency key is released.
func render(status int, payload any, err error) (int, []byte, error) {
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			return 0, nil, err
		}
		status, payload = errorBody(err)
	}
	body, mErr := json.Marshal(payload)
	if mErr != nil {
		return 0, nil, fmt.Errorf("encode response: %w", mErr)
	}
	return status, body, nil
}

// runIdempotent executes op once per Idempotency-Key within the session.
// Without a key the operation simply runs.
func runIdempotent(c echo.Context, exec *idempotency.Executor, sessionID string, op operation) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	key := c.Request().Header.Get(IdempotencyKeyHeader)
	if key == "" || exec == nil {
		status, out, err := render(op(ctx, body))
		if err != nil {
			return err
		}
		return c.JSONBlob(status, out)
	}
	if len(key) > maxKeyLen {
		return apperr.Validation("idempotency key too long")
	}

	req := c.Request()
	scope := fmt.Sprintf("session:%s:%s %s", sessionID, req.Method, c.Path())
	hash := idempotency.RequestHash(req.Method, req.URL.Path, body)
	resp, replay, err := exec.Do(ctx, scope, key, hash, func(ctx context.Context) (int, []byte, error) {
		return render(op(ctx, body))
	})
	if err != nil {
		return err
	}
	if replay {
		c.Response().Header().Set(ReplayedHeader, "true")
	}
	return c.JSONBlob(resp.Status, resp.Body)
}
